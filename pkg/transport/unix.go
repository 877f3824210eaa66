package transport

import (
	"errors"
	"net"
	"os"
	"sync"
)

// UnixTransport Unix 域套接字传输层
type UnixTransport struct {
	mu       sync.Mutex
	listener net.Listener
	path     string
}

// NewUnixTransport 创建 Unix 套接字传输层
func NewUnixTransport() *UnixTransport {
	return &UnixTransport{}
}

// Listen 监听套接字路径，已存在的残留文件会被移除
func (t *UnixTransport) Listen(addr string) error {
	if err := os.Remove(addr); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	ln, err := net.Listen("unix", addr)
	if err != nil {
		return err
	}
	t.mu.Lock()
	t.listener = ln
	t.path = addr
	t.mu.Unlock()
	return nil
}

// Accept 接受新连接
func (t *UnixTransport) Accept() (Conn, error) {
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		return nil, ErrClosed
	}

	c, err := ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrClosed
		}
		return nil, err
	}
	return &netConn{Conn: c}, nil
}

// Close 关闭监听，套接字文件随之删除
func (t *UnixTransport) Close() error {
	t.mu.Lock()
	ln := t.listener
	t.mu.Unlock()
	if ln == nil {
		return nil
	}
	return ln.Close()
}

// DialUnix 连接 Unix 套接字
func DialUnix(path string) (Conn, error) {
	c, err := net.Dial("unix", path)
	if err != nil {
		return nil, err
	}
	return &netConn{Conn: c}, nil
}

// netConn 包装 net.Conn
type netConn struct {
	net.Conn
}

// RemoteAddr 返回远程地址
func (c *netConn) RemoteAddr() string {
	addr := c.Conn.RemoteAddr()
	if addr == nil || addr.String() == "" {
		return "unix"
	}
	return addr.String()
}
