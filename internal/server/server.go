// Package server 实现 frd 会话服务：单一主循环持有全部会话与服务状态
package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/frd"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/config"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/metrics"
	"github.com/qiminjie89/frdsvc/pkg/registry"
	"github.com/qiminjie89/frdsvc/pkg/transport"
)

// ErrStopped 服务已停止
var ErrStopped = errors.New("server stopped")

// Server frd 会话服务
//
// 协程模型：一个 acceptor、一个主循环、每连接一个 reader 和一个 writer，以及接入层的 gRPC 与 Kafka 协程。
// 会话、句柄表和 ServiceState 只由主循环访问；通知队列是唯一被并发访问的结构。
type Server struct {
	cfg       *config.ServerConfig
	transport transport.Transport
	registry  *registry.Registry
	state     *frd.ServiceState
	queue     *frd.Queue

	// 以下字段只由主循环访问
	services map[string]*service
	conns    map[string]*clientConn
	nextPID  uint32

	acceptCh  chan transport.Conn
	inboundCh chan inbound
	controlCh chan control

	intake *Intake
	stats  stats

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	readers sync.WaitGroup
	writers sync.WaitGroup
	done    chan struct{}

	startTime time.Time
}

// service 一个服务端点及其会话槽位
type service struct {
	name       string
	dispatcher *frd.Dispatcher
	slots      []*clientConn
}

// allocate 占用编号最小的空闲槽位
func (svc *service) allocate(c *clientConn) (int, bool) {
	for i, holder := range svc.slots {
		if holder == nil {
			svc.slots[i] = c
			return i, true
		}
	}
	return -1, false
}

// stats 供健康检查读取的会话计数
type stats struct {
	mu       sync.RWMutex
	sessions map[string]int
}

func (st *stats) add(service string, delta int) {
	st.mu.Lock()
	st.sessions[service] += delta
	st.mu.Unlock()
}

func (st *stats) snapshot() map[string]int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	out := make(map[string]int, len(st.sessions))
	for k, v := range st.sessions {
		out[k] = v
	}
	return out
}

// New 创建服务
func New(cfg *config.ServerConfig, tr transport.Transport) (*Server, error) {
	state, err := frd.NewServiceState(cfg.State)
	if err != nil {
		return nil, fmt.Errorf("init service state: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		transport: tr,
		registry:  registry.New(),
		state:     state,
		queue:     frd.NewQueue(cfg.Queue.Capacity),
		services:  make(map[string]*service),
		conns:     make(map[string]*clientConn),
		acceptCh:  make(chan transport.Conn),
		inboundCh: make(chan inbound),
		controlCh: make(chan control),
		stats:     stats{sessions: make(map[string]int)},
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startTime: time.Now(),
	}
	s.intake = NewIntake(s.queue, s, cfg.Intake)

	for _, sc := range cfg.Services {
		d, err := frd.NewDispatcher(sc.Name, s.queue)
		if err != nil {
			cancel()
			return nil, err
		}
		s.services[sc.Name] = &service{
			name:       sc.Name,
			dispatcher: d,
			slots:      make([]*clientConn, sc.MaxSessions),
		}
	}
	return s, nil
}

// State 返回服务状态（仅供测试与主循环使用）
func (s *Server) State() *frd.ServiceState {
	return s.state
}

// Queue 返回通知队列
func (s *Server) Queue() *frd.Queue {
	return s.queue
}

// Registry 返回服务注册表
func (s *Server) Registry() *registry.Registry {
	return s.registry
}

// Start 注册服务、开始监听并启动各协程
func (s *Server) Start() error {
	logger.Info("starting frd server",
		zap.String("id", s.cfg.Server.ID),
		zap.String("transport", s.cfg.Transport.Type),
		zap.String("addr", s.cfg.Transport.Addr),
		zap.Int("protocol_version", frd.ProtocolVersion),
	)

	for _, sc := range s.cfg.Services {
		if err := s.registry.RegisterService(&registry.ServiceInstance{
			ServiceName: sc.Name,
			MaxSessions: sc.MaxSessions,
			Metadata:    map[string]string{"server_id": s.cfg.Server.ID},
		}); err != nil {
			s.registry.DeregisterAll()
			return err
		}
	}

	if err := s.transport.Listen(s.cfg.Transport.Addr); err != nil {
		s.registry.DeregisterAll()
		return fmt.Errorf("listen %s: %w", s.cfg.Transport.Addr, err)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.acceptLoop()
	}()
	go func() {
		defer s.wg.Done()
		s.loop()
	}()

	if err := s.intake.Start(s.ctx, &s.wg); err != nil {
		s.Stop()
		return err
	}

	if s.cfg.Server.HealthAddr != "" {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runHealthServer()
		}()
	}

	logger.Info("frd server started")
	return nil
}

// Stop 停止服务：关闭监听、关闭全部会话、等待 reader 退出并注销服务
func (s *Server) Stop() {
	s.cancel()
	s.wg.Wait()
	s.writers.Wait()
	s.readers.Wait()
	logger.Info("frd server stopped")
}

// Done 服务进入关闭流程时关闭（包括收到关机电源事件）
func (s *Server) Done() <-chan struct{} {
	return s.ctx.Done()
}

// acceptLoop 接受连接并交给主循环
func (s *Server) acceptLoop() {
	for {
		conn, err := s.transport.Accept()
		if err != nil {
			if errors.Is(err, transport.ErrClosed) || s.ctx.Err() != nil {
				return
			}
			logger.Warn("accept failed", zap.Error(err))
			continue
		}

		select {
		case s.acceptCh <- conn:
		case <-s.done:
			conn.Close()
			return
		}
	}
}

// loop 主循环
func (s *Server) loop() {
	for {
		select {
		case conn := <-s.acceptCh:
			s.addConn(conn)

		case in := <-s.inboundCh:
			s.handleInbound(in)

		case <-s.queue.Wake():
			s.signalPending()

		case ctl := <-s.controlCh:
			ctl.reply <- s.applyPower(ctl.event)

		case <-s.ctx.Done():
			s.shutdown()
			return
		}
	}
}

func (s *Server) addConn(conn transport.Conn) {
	c := &clientConn{
		id:           uuid.NewString(),
		conn:         conn,
		resume:       make(chan struct{}, 1),
		quit:         make(chan struct{}),
		sendCh:       make(chan *protocol.Frame, s.sendQueueSize()),
		writeTimeout: s.cfg.Server.WriteTimeout,
	}
	s.conns[c.id] = c

	logger.Debug("connection accepted",
		zap.String("conn_id", c.id),
		zap.String("remote", conn.RemoteAddr()),
	)

	s.readers.Add(1)
	go s.readLoop(c)
	s.writers.Add(1)
	go s.writeLoop(c)
}

func (s *Server) sendQueueSize() int {
	if n := s.cfg.Server.SendQueueSize; n > 0 {
		return n
	}
	return 64
}

// signalPending 为有新通知的会话触发客户端事件
func (s *Server) signalPending() {
	for _, c := range s.conns {
		if c.sess != nil && !c.closed {
			c.sess.SignalPending(s.queue)
		}
	}
	s.reapBroken()
}

// reapBroken 销毁下行队列已满的连接
func (s *Server) reapBroken() {
	for _, c := range s.conns {
		if c.writeErr != nil {
			s.destroy(c, "send_queue_full", c.writeErr)
		}
	}
	s.updateHandleGauge()
}

func (s *Server) updateHandleGauge() {
	total := 0
	for _, c := range s.conns {
		if c.sess != nil {
			total += c.sess.Handles.Len()
		}
	}
	metrics.OpenHandles.Set(float64(total))
}

func (s *Server) shutdown() {
	close(s.done)
	if err := s.transport.Close(); err != nil {
		logger.Warn("close transport failed", zap.Error(err))
	}

	for _, c := range s.conns {
		s.destroy(c, "shutdown", nil)
	}
	s.updateHandleGauge()
	s.registry.DeregisterAll()
	logger.Info("all sessions closed")
}

// PowerEvent 将电源事件交给主循环处理
func (s *Server) PowerEvent(ctx context.Context, ev protocol.PowerEvent) error {
	ctl := control{event: ev, reply: make(chan error, 1)}
	select {
	case s.controlCh <- ctl:
	case <-s.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-ctl.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
