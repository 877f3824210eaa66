// Package client 提供 frd 服务的客户端：握手、请求/应答匹配与事件信号接收
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/transport"
)

// 客户端错误
var (
	ErrClosed        = errors.New("client closed")
	ErrUnexpectedAck = errors.New("unexpected handshake reply")
)

// signalBuffer 未读取的事件信号上限，超出后丢弃最新信号
const signalBuffer = 64

// Client 一个 frd 会话
// Call 可被多个 goroutine 并发调用，服务端按到达顺序逐个处理
type Client struct {
	conn    transport.Conn
	service string
	slot    int

	seq     atomic.Uint64
	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[uint64]chan *protocol.Frame
	err     error

	signals   chan uint32
	done      chan struct{}
	closeOnce sync.Once
}

// Connect 在 conn 上与 service 握手
// 服务拒绝时关闭连接并返回 protocol.ResultCode（ResultNotRegistered / ResultOutOfSessions）
func Connect(ctx context.Context, conn transport.Conn, service string) (*Client, error) {
	c := &Client{
		conn:    conn,
		service: service,
		pending: make(map[uint64]chan *protocol.Frame),
		signals: make(chan uint32, signalBuffer),
		done:    make(chan struct{}),
	}

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		_ = conn.SetWriteDeadline(deadline)
	}

	seq := c.seq.Add(1)
	if err := protocol.WriteFrame(conn, &protocol.Frame{
		Type:    protocol.FrameConnect,
		Seq:     seq,
		Payload: []byte(service),
	}); err != nil {
		conn.Close()
		return nil, fmt.Errorf("send connect: %w", err)
	}

	f, err := protocol.ReadFrame(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("read connect ack: %w", err)
	}
	if f.Type != protocol.FrameConnectAck || f.Seq != seq {
		conn.Close()
		return nil, fmt.Errorf("%w: type 0x%04X seq %d", ErrUnexpectedAck, f.Type, f.Seq)
	}
	ack, err := protocol.DecodeConnectAck(f.Payload)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if ack.Result != protocol.ResultSuccess {
		conn.Close()
		return nil, ack.Result
	}

	_ = conn.SetReadDeadline(time.Time{})
	_ = conn.SetWriteDeadline(time.Time{})

	c.slot = int(ack.Slot)
	go c.readLoop()
	return c, nil
}

// Dial 按传输类型建立连接并握手
func Dial(ctx context.Context, typ, addr, service string) (*Client, error) {
	conn, err := transport.Dial(typ, addr)
	if err != nil {
		return nil, err
	}
	return Connect(ctx, conn, service)
}

// Service 返回服务名
func (c *Client) Service() string {
	return c.service
}

// Slot 返回服务端分配的会话槽位
func (c *Client) Slot() int {
	return c.slot
}

// Signals 返回事件信号通道，值为被触发的句柄
// 连接断开后通道关闭
func (c *Client) Signals() <-chan uint32 {
	return c.signals
}

// Done 连接断开后关闭
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err 返回连接断开的原因
func (c *Client) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Call 发送命令请求并等待应答
func (c *Client) Call(ctx context.Context, req *ipc.Request) (*ipc.Response, error) {
	raw, err := ipc.EncodeRequest(req)
	if err != nil {
		return nil, err
	}
	out, err := c.CallRaw(ctx, raw)
	if err != nil {
		return nil, err
	}
	return ipc.DecodeResponse(out)
}

// CallRaw 发送原始命令缓冲区并返回原始应答
func (c *Client) CallRaw(ctx context.Context, raw []byte) ([]byte, error) {
	f, err := c.roundTrip(ctx, protocol.FrameRequest, raw)
	if err != nil {
		return nil, err
	}
	if f.Type != protocol.FrameReply {
		return nil, fmt.Errorf("unexpected reply frame type 0x%04X", f.Type)
	}
	return f.Payload, nil
}

// Reconnect 在已建立的会话上再次发送握手帧，服务端以 ResultInvalidCommand 拒绝
func (c *Client) Reconnect(ctx context.Context) (protocol.ConnectAck, error) {
	f, err := c.roundTrip(ctx, protocol.FrameConnect, []byte(c.service))
	if err != nil {
		return protocol.ConnectAck{}, err
	}
	return protocol.DecodeConnectAck(f.Payload)
}

func (c *Client) roundTrip(ctx context.Context, typ uint32, payload []byte) (*protocol.Frame, error) {
	seq := c.seq.Add(1)
	ch := make(chan *protocol.Frame, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.pending[seq] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	if err := c.write(&protocol.Frame{Type: typ, Seq: seq, Payload: payload}); err != nil {
		return nil, err
	}

	select {
	case f := <-ch:
		return f, nil
	case <-c.done:
		return nil, c.Err()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) write(f *protocol.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return protocol.WriteFrame(c.conn, f)
}

// readLoop 分发应答与信号，直到连接断开
func (c *Client) readLoop() {
	for {
		f, err := protocol.ReadFrame(c.conn)
		if err != nil {
			c.shutdown(err)
			return
		}

		switch f.Type {
		case protocol.FrameSignal:
			handle, err := protocol.DecodeSignal(f.Payload)
			if err != nil {
				logger.Warn("bad signal frame", zap.Error(err))
				continue
			}
			select {
			case c.signals <- handle:
			default:
				logger.Warn("signal dropped",
					zap.String("service", c.service),
					zap.Uint32("handle", handle),
				)
			}

		case protocol.FrameReply, protocol.FrameConnectAck:
			c.mu.Lock()
			ch, ok := c.pending[f.Seq]
			c.mu.Unlock()
			if !ok {
				logger.Warn("reply without pending call",
					zap.String("service", c.service),
					zap.Uint64("seq", f.Seq),
				)
				continue
			}
			ch <- f

		default:
			logger.Warn("unknown frame from server", zap.Uint32("type", f.Type))
		}
	}
}

func (c *Client) shutdown(err error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		if c.err == nil {
			c.err = err
		}
		c.mu.Unlock()
		close(c.done)
		close(c.signals)
	})
}

// Close 通知服务端关闭会话并断开连接
func (c *Client) Close() error {
	select {
	case <-c.done:
		return nil
	default:
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(time.Second))
	_ = c.write(&protocol.Frame{Type: protocol.FrameClose, Seq: c.seq.Add(1)})

	c.mu.Lock()
	if c.err == nil {
		c.err = ErrClosed
	}
	c.mu.Unlock()
	return c.conn.Close()
}
