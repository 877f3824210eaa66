package server

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/frd"
	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/kernel"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/metrics"
	"github.com/qiminjie89/frdsvc/pkg/transport"
)

var (
	errConnClosed    = errors.New("connection closed")
	errSendQueueFull = errors.New("send queue full")
)

// clientConn 客户端连接
// 除 resume/quit/sendCh/writeFailed 外的字段只由主循环访问
type clientConn struct {
	id   string
	conn transport.Conn
	svc  *service
	sess *frd.Session

	resume chan struct{}        // 主循环处理完一帧后通知 reader 继续读
	quit   chan struct{}        // 连接销毁时关闭
	sendCh chan *protocol.Frame // 下行帧队列，由 writeLoop 写出；销毁时关闭

	closed       bool
	writeErr     error
	writeFailed  atomic.Bool
	writeTimeout time.Duration
}

// inbound reader 交给主循环的一帧（或读错误）
type inbound struct {
	conn  *clientConn
	frame *protocol.Frame
	err   error
}

// control 交给主循环的电源事件
type control struct {
	event protocol.PowerEvent
	reply chan error
}

// write 将帧放入下行队列（非阻塞）
// 队列满说明客户端不再读取，记录错误后由主循环销毁该连接
func (c *clientConn) write(f *protocol.Frame) error {
	if c.closed {
		return errConnClosed
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	select {
	case c.sendCh <- f:
		return nil
	default:
		metrics.ClientWriteFailures.WithLabelValues("queue_full").Inc()
		c.writeErr = errSendQueueFull
		return c.writeErr
	}
}

// writeLoop 每连接一个 writer：依次写出下行帧，队列关闭并写完后关闭连接
// 写失败时立即关闭连接，reader 随之读到错误，主循环据此销毁会话
func (s *Server) writeLoop(c *clientConn) {
	defer s.writers.Done()
	defer c.conn.Close()

	for f := range c.sendCh {
		if c.writeTimeout > 0 {
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
		}
		if err := protocol.WriteFrame(c.conn, f); err != nil {
			c.writeFailed.Store(true)
			metrics.ClientWriteFailures.WithLabelValues("write_error").Inc()
			logger.Debug("connection write failed",
				zap.String("conn_id", c.id),
				zap.Error(err),
			)
			return
		}
	}
}

// Notify 实现 kernel.Notifier：句柄上的事件被触发时向客户端发送信号帧
// 事件只在主循环中触发，只入队不写连接
func (c *clientConn) Notify(handle uint32) {
	if c.closed {
		return
	}
	err := c.write(&protocol.Frame{
		Type:    protocol.FrameSignal,
		Payload: protocol.EncodeSignal(handle),
	})
	if err == nil {
		metrics.ClientSignals.Inc()
	}
}

var _ kernel.Notifier = (*clientConn)(nil)

// readLoop 每连接一个 reader：读一帧交给主循环，等主循环处理完再读下一帧
func (s *Server) readLoop(c *clientConn) {
	defer s.readers.Done()

	if t := s.cfg.Server.HandshakeTimeout; t > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(t))
	}
	first := true

	for {
		f, err := protocol.ReadFrame(c.conn)
		if first && err == nil {
			_ = c.conn.SetReadDeadline(time.Time{})
			first = false
		}

		select {
		case s.inboundCh <- inbound{conn: c, frame: f, err: err}:
		case <-c.quit:
			return
		case <-s.done:
			return
		}
		if err != nil {
			return
		}

		select {
		case <-c.resume:
		case <-c.quit:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) handleInbound(in inbound) {
	c := in.conn
	if c.closed {
		return
	}

	if in.err != nil {
		reason := "read_error"
		switch {
		case c.writeFailed.Load():
			reason = "write_error"
		case errors.Is(in.err, io.EOF) || errors.Is(in.err, io.ErrClosedPipe):
			reason = "peer_closed"
		}
		s.destroy(c, reason, in.err)
		s.updateHandleGauge()
		return
	}

	if c.sess == nil {
		s.handshake(c, in.frame)
	} else {
		s.handleFrame(c, in.frame)
	}

	// 处理过程中触发的信号可能写失败
	s.reapBroken()

	if !c.closed {
		select {
		case c.resume <- struct{}{}:
		default:
		}
	}
}

// handshake 首帧必须是 FrameConnect{服务名}
// 服务不存在与会话已满都先回复 ConnectAck 再关闭，客户端可以区分
func (s *Server) handshake(c *clientConn, f *protocol.Frame) {
	if f.Type != protocol.FrameConnect {
		metrics.SessionsRefused.WithLabelValues("bad_handshake").Inc()
		s.destroy(c, "bad_handshake", nil)
		return
	}

	name := string(f.Payload)
	svc, ok := s.services[name]
	if _, registered := s.registry.Lookup(name); !ok || !registered {
		s.refuse(c, f.Seq, protocol.ResultNotRegistered, "not_registered")
		return
	}

	slot, ok := svc.allocate(c)
	if !ok {
		s.refuse(c, f.Seq, protocol.ResultOutOfSessions, "out_of_sessions")
		return
	}

	s.nextPID++
	handles := kernel.NewHandleTable(s.cfg.Server.HandleLimit, c)
	c.svc = svc
	c.sess = frd.NewSession(slot, name, c.id, handles, s.queue.Head())
	c.sess.ProcessID = s.nextPID

	metrics.Sessions.WithLabelValues(name).Inc()
	s.stats.add(name, 1)

	logger.Info("session opened",
		zap.String("service", name),
		zap.Int("slot", slot),
		zap.String("conn_id", c.id),
	)

	_ = c.write(&protocol.Frame{
		Type:    protocol.FrameConnectAck,
		Seq:     f.Seq,
		Payload: protocol.EncodeConnectAck(protocol.ConnectAck{Result: protocol.ResultSuccess, Slot: uint32(slot)}),
	})
}

func (s *Server) refuse(c *clientConn, seq uint64, result protocol.ResultCode, reason string) {
	metrics.SessionsRefused.WithLabelValues(reason).Inc()
	_ = c.write(&protocol.Frame{
		Type:    protocol.FrameConnectAck,
		Seq:     seq,
		Payload: protocol.EncodeConnectAck(protocol.ConnectAck{Result: result}),
	})
	s.destroy(c, reason, nil)
}

func (s *Server) handleFrame(c *clientConn, f *protocol.Frame) {
	switch f.Type {
	case protocol.FrameRequest:
		resp := c.svc.dispatcher.DispatchRaw(f.Payload, c.sess, s.state)
		s.reply(c, f.Seq, resp)

	case protocol.FrameClose:
		s.destroy(c, "client_close", nil)

	case protocol.FrameConnect:
		_ = c.write(&protocol.Frame{
			Type:    protocol.FrameConnectAck,
			Seq:     f.Seq,
			Payload: protocol.EncodeConnectAck(protocol.ConnectAck{Result: protocol.ResultInvalidCommand, Slot: uint32(c.sess.Slot)}),
		})

	default:
		logger.Warn("unknown frame type",
			zap.Uint32("type", f.Type),
			zap.String("conn_id", c.id),
		)
		s.reply(c, f.Seq, ipc.ResultOnly(0, protocol.ResultInvalidCommand))
	}
}

func (s *Server) reply(c *clientConn, seq uint64, resp *ipc.Response) {
	raw, err := ipc.EncodeResponse(resp)
	if err != nil {
		logger.Error("encode response failed",
			zap.Uint16("command_id", resp.CommandID),
			zap.Error(err),
		)
		raw, _ = ipc.EncodeResponse(ipc.ResultOnly(resp.CommandID, protocol.ResultInvalidArguments))
	}
	_ = c.write(&protocol.Frame{Type: protocol.FrameReply, Seq: seq, Payload: raw})
}

// destroy 销毁连接：释放句柄、游标与槽位，关闭连接
func (s *Server) destroy(c *clientConn, reason string, err error) {
	if c.closed {
		return
	}
	c.closed = true
	close(c.quit)
	// writer 写完已排队的帧（如拒绝连接的 ConnectAck）后关闭连接
	close(c.sendCh)

	fields := []zap.Field{
		zap.String("conn_id", c.id),
		zap.String("reason", reason),
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}

	if c.sess != nil {
		released := c.sess.Close()
		c.svc.slots[c.sess.Slot] = nil
		metrics.Sessions.WithLabelValues(c.svc.name).Dec()
		s.stats.add(c.svc.name, -1)
		fields = append(fields,
			zap.String("service", c.svc.name),
			zap.Int("slot", c.sess.Slot),
			zap.Int("released_handles", released),
		)
	}

	delete(s.conns, c.id)
	metrics.SessionCloseReason.WithLabelValues(reason).Inc()
	logger.Info("session closed", fields...)
}
