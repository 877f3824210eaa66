// Package transport 提供客户端传输层抽象，支持 Unix 套接字、WebSocket 和进程内管道
package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/qiminjie89/frdsvc/pkg/config"
)

// ErrClosed 传输层已关闭
var ErrClosed = errors.New("transport closed")

// Transport 传输层接口
type Transport interface {
	// Listen 监听指定地址
	Listen(addr string) error
	// Accept 接受新连接，关闭后返回 ErrClosed
	Accept() (Conn, error)
	// Close 关闭传输层
	Close() error
}

// Conn 连接接口，Read/Write 为字节流语义
type Conn interface {
	io.ReadWriteCloser
	// RemoteAddr 返回远程地址
	RemoteAddr() string
	// SetReadDeadline 设置读超时
	SetReadDeadline(t time.Time) error
	// SetWriteDeadline 设置写超时
	SetWriteDeadline(t time.Time) error
}

// New 按配置创建传输层
func New(cfg config.TransportConfig) (Transport, error) {
	switch cfg.Type {
	case "unix":
		return NewUnixTransport(), nil
	case "websocket":
		return NewWebSocketTransport(cfg.WebSocket), nil
	default:
		return nil, fmt.Errorf("unknown transport type %q", cfg.Type)
	}
}

// Dial 按类型连接服务端
func Dial(typ, addr string) (Conn, error) {
	switch typ {
	case "unix":
		return DialUnix(addr)
	case "websocket":
		return DialWebSocket(addr)
	default:
		return nil, fmt.Errorf("unknown transport type %q", typ)
	}
}
