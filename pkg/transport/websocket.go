package transport

import (
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/qiminjie89/frdsvc/pkg/config"
)

// WebSocketPath WebSocket 升级路径
const WebSocketPath = "/frd"

// WebSocketTransport WebSocket 传输层实现
type WebSocketTransport struct {
	upgrader  websocket.Upgrader
	server    *http.Server
	connCh    chan *WebSocketConn
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport 创建 WebSocket 传输层
func NewWebSocketTransport(cfg config.WebSocketConfig) *WebSocketTransport {
	return &WebSocketTransport{
		upgrader: websocket.Upgrader{
			ReadBufferSize:   cfg.ReadBufferSize,
			WriteBufferSize:  cfg.WriteBufferSize,
			HandshakeTimeout: cfg.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				return true // 仅供本机客户端使用
			},
		},
		connCh: make(chan *WebSocketConn, 16),
		doneCh: make(chan struct{}),
	}
}

// Listen 监听地址
func (t *WebSocketTransport) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc(WebSocketPath, t.handleWebSocket)
	t.server = &http.Server{Handler: mux}

	go t.server.Serve(ln)
	return nil
}

func (t *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	wsConn := newWebSocketConn(conn, r.RemoteAddr)
	select {
	case t.connCh <- wsConn:
	case <-t.doneCh:
		conn.Close()
	}
}

// Accept 接受新连接
func (t *WebSocketTransport) Accept() (Conn, error) {
	select {
	case conn := <-t.connCh:
		return conn, nil
	case <-t.doneCh:
		return nil, ErrClosed
	}
}

// Close 关闭传输层
func (t *WebSocketTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.doneCh)
		if t.server != nil {
			err = t.server.Close()
		}
	})
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// DialWebSocket 连接 WebSocket 服务端，addr 为 host:port
func DialWebSocket(addr string) (Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+WebSocketPath, nil)
	if err != nil {
		return nil, err
	}
	return newWebSocketConn(conn, addr), nil
}

// WebSocketConn WebSocket 连接实现
// 每次 Write 发送一条二进制消息；Read 按字节流读取，消息未读完的部分留到下次
type WebSocketConn struct {
	conn       *websocket.Conn
	remoteAddr string

	readMu  sync.Mutex
	pending []byte

	writeMu sync.Mutex
}

func newWebSocketConn(conn *websocket.Conn, remoteAddr string) *WebSocketConn {
	return &WebSocketConn{conn: conn, remoteAddr: remoteAddr}
}

// Read 读取数据
func (c *WebSocketConn) Read(p []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.pending) == 0 {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		c.pending = data
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write 写入数据
func (c *WebSocketConn) Write(p []byte) (int, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close 关闭连接
func (c *WebSocketConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr 返回远程地址
func (c *WebSocketConn) RemoteAddr() string {
	return c.remoteAddr
}

// SetReadDeadline 设置读超时
func (c *WebSocketConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline 设置写超时
func (c *WebSocketConn) SetWriteDeadline(t time.Time) error {
	return c.conn.SetWriteDeadline(t)
}
