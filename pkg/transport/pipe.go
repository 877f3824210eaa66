package transport

import (
	"net"
	"sync"
)

// PipeTransport 进程内传输层，连接由 Dial 直接产生
type PipeTransport struct {
	connCh    chan Conn
	doneCh    chan struct{}
	closeOnce sync.Once
}

// NewPipeTransport 创建进程内传输层
func NewPipeTransport() *PipeTransport {
	return &PipeTransport{
		connCh: make(chan Conn),
		doneCh: make(chan struct{}),
	}
}

// Listen 无需监听
func (t *PipeTransport) Listen(string) error {
	return nil
}

// Accept 接受新连接
func (t *PipeTransport) Accept() (Conn, error) {
	select {
	case c := <-t.connCh:
		return c, nil
	case <-t.doneCh:
		return nil, ErrClosed
	}
}

// Dial 创建一对相连的管道，返回客户端一端
func (t *PipeTransport) Dial() (Conn, error) {
	server, client := net.Pipe()
	select {
	case t.connCh <- &netConn{Conn: server}:
		return &netConn{Conn: client}, nil
	case <-t.doneCh:
		server.Close()
		client.Close()
		return nil, ErrClosed
	}
}

// Close 关闭传输层
func (t *PipeTransport) Close() error {
	t.closeOnce.Do(func() { close(t.doneCh) })
	return nil
}
