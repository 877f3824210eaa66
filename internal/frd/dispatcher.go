package frd

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/qiminjie89/frdsvc/internal/ipc"
	"github.com/qiminjie89/frdsvc/internal/kernel"
	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/logger"
	"github.com/qiminjie89/frdsvc/pkg/metrics"
)

// Shape 命令参数形状
// Normal 为普通参数字数（应答形状中包含结果码）；StaticIDs 依次对应 Translate 中的静态缓冲区 ID，nil 表示不检查
type Shape struct {
	Normal    int
	Translate []ipc.Kind
	StaticIDs []uint8
}

// String 返回形状描述
func (s Shape) String() string {
	return fmt.Sprintf("(%d, %v)", s.Normal, s.Translate)
}

// ShapeError 请求形状与声明不符
type ShapeError struct {
	CommandID uint16
	Want      Shape
	Normal    int
	Kinds     []ipc.Kind
	Reason    string
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("command 0x%04X: want shape %s, got (%d, %v): %s",
		e.CommandID, e.Want, e.Normal, e.Kinds, e.Reason)
}

// Match 检查请求是否符合形状
func (s Shape) Match(req *ipc.Request) error {
	kinds := req.Kinds()
	fail := func(reason string) error {
		return &ShapeError{CommandID: req.CommandID, Want: s, Normal: len(req.Normal), Kinds: kinds, Reason: reason}
	}

	if len(req.Normal) != s.Normal {
		return fail("normal word count")
	}
	if !slices.Equal(kinds, s.Translate) {
		return fail("translate kinds")
	}
	if s.StaticIDs != nil {
		i := 0
		for _, p := range req.Translate {
			if p.Kind != ipc.KindStaticBuffer {
				continue
			}
			if i >= len(s.StaticIDs) || p.BufferID != s.StaticIDs[i] {
				return fail("static buffer id")
			}
			i++
		}
	}
	for _, p := range req.Translate {
		if p.Kind == ipc.KindHandle && len(p.Handles) != 1 {
			return fail("handle count")
		}
	}
	return nil
}

// HandlerFunc 命令处理函数
// 返回 protocol.ResultCode 类型的 error 时，应答为该结果码加上按声明形状补零的参数
type HandlerFunc func(c *Call) (*ipc.Response, error)

// Handler 命令表项
type Handler struct {
	ID       uint16
	Name     string
	Request  Shape
	Response Shape
	// Uncertain 表示真实请求形状未知：不校验请求，仍按声明形状应答
	Uncertain bool
	Fn        HandlerFunc
}

// Call 一次命令调用的上下文
type Call struct {
	Req     *ipc.Request
	Params  *ipc.Parser
	Session *Session
	State   *ServiceState
	Queue   *Queue
}

// Reply 创建应答 Builder
func (c *Call) Reply() *ipc.Builder {
	return ipc.NewBuilder(c.Req.CommandID)
}

// Dispatcher 命令分发器，每个服务一个
type Dispatcher struct {
	service string
	table   Table
	queue   *Queue
}

// NewDispatcher 为服务创建分发器
func NewDispatcher(service string, queue *Queue) (*Dispatcher, error) {
	table, ok := TableFor(service)
	if !ok {
		return nil, fmt.Errorf("no command table for service %s", service)
	}
	return &Dispatcher{service: service, table: table, queue: queue}, nil
}

// Service 返回服务名
func (d *Dispatcher) Service() string {
	return d.service
}

// Table 返回命令表
func (d *Dispatcher) Table() Table {
	return d.table
}

// DispatchRaw 解码并分发原始命令缓冲区
// 解码失败时返回参数错误应答，会话保持可用
func (d *Dispatcher) DispatchRaw(raw []byte, sess *Session, state *ServiceState) *ipc.Response {
	req, err := ipc.DecodeRequest(raw)
	if err != nil {
		metrics.DecodeErrors.WithLabelValues(d.service).Inc()
		logger.Warn("decode command failed",
			zap.String("service", d.service),
			zap.Int("slot", sess.Slot),
			zap.Error(err),
		)
		var derr *ipc.DecodeError
		var id uint16
		if errors.As(err, &derr) {
			id = derr.Header.CommandID
		}
		return ipc.ResultOnly(id, protocol.ResultInvalidArguments)
	}
	return d.Dispatch(req, sess, state)
}

// Dispatch 分发已解码的命令
func (d *Dispatcher) Dispatch(req *ipc.Request, sess *Session, state *ServiceState) *ipc.Response {
	start := time.Now()
	defer func() {
		metrics.DispatchLatency.WithLabelValues(d.service).Observe(time.Since(start).Seconds())
	}()

	h, ok := d.table[req.CommandID]
	if !ok {
		d.trace(sess, "unknown", req.CommandID, protocol.ResultInvalidCommand)
		return ipc.ResultOnly(0, protocol.ResultInvalidCommand)
	}

	if !h.Uncertain {
		if err := h.Request.Match(req); err != nil {
			logger.Warn("command shape mismatch",
				zap.String("service", d.service),
				zap.Int("slot", sess.Slot),
				zap.Error(err),
			)
			d.trace(sess, h.Name, req.CommandID, protocol.ResultInvalidArguments)
			return ipc.ResultOnly(req.CommandID, protocol.ResultInvalidArguments)
		}
	}

	req = withCallerProcess(req, sess.ProcessID)

	call := &Call{
		Req:     req,
		Params:  ipc.NewParser(req),
		Session: sess,
		State:   state,
		Queue:   d.queue,
	}
	resp, err := h.Fn(call)
	if err != nil {
		resp = &ipc.Response{Result: resultOf(err)}
		var code protocol.ResultCode
		if !errors.As(err, &code) {
			logger.Warn("command failed",
				zap.String("service", d.service),
				zap.String("command", h.Name),
				zap.Int("slot", sess.Slot),
				zap.Error(err),
			)
		}
	}
	resp = conform(resp, h)
	d.trace(sess, h.Name, req.CommandID, resp.Result)
	return resp
}

// withCallerProcess 进程 ID 描述符由服务端写入调用方的真实进程 ID
// 解码后的请求不可变，需要改写时返回副本
func withCallerProcess(req *ipc.Request, pid uint32) *ipc.Request {
	if !slices.ContainsFunc(req.Translate, func(p ipc.TranslateParam) bool { return p.Kind == ipc.KindProcessID }) {
		return req
	}
	translate := slices.Clone(req.Translate)
	for i := range translate {
		if translate[i].Kind == ipc.KindProcessID {
			translate[i].ProcessID = pid
		}
	}
	return &ipc.Request{CommandID: req.CommandID, Normal: req.Normal, Translate: translate}
}

func (d *Dispatcher) trace(sess *Session, name string, id uint16, result protocol.ResultCode) {
	metrics.Commands.WithLabelValues(d.service, name, result.Name()).Inc()
	logger.Debug("dispatch",
		zap.String("service", d.service),
		zap.Int("slot", sess.Slot),
		zap.String("command", name),
		zap.Uint16("command_id", id),
		zap.String("result", fmt.Sprintf("0x%08X", uint32(result))),
	)
}

// resultOf 将 handler 错误转换为结果码
func resultOf(err error) protocol.ResultCode {
	var code protocol.ResultCode
	switch {
	case errors.As(err, &code):
		return code
	case errors.Is(err, kernel.ErrHandleTableFull):
		return protocol.ResultOutOfResource
	default:
		return protocol.ResultInvalidArguments
	}
}

// conform 使应答符合命令声明的应答形状：普通参数补零或截断，转换参数按声明类型补齐
func conform(resp *ipc.Response, h *Handler) *ipc.Response {
	resp.CommandID = h.ID
	shape := h.Response

	want := shape.Normal - 1
	switch {
	case len(resp.Normal) < want:
		resp.Normal = append(resp.Normal, make([]uint32, want-len(resp.Normal))...)
	case len(resp.Normal) > want:
		logger.Warn("response has extra words",
			zap.String("command", h.Name),
			zap.Int("want", want),
			zap.Int("got", len(resp.Normal)),
		)
		resp.Normal = resp.Normal[:want]
	}

	if slices.Equal(resp.Kinds(), shape.Translate) {
		return resp
	}
	params := make([]ipc.TranslateParam, len(shape.Translate))
	static := 0
	for i, kind := range shape.Translate {
		if i < len(resp.Translate) && resp.Translate[i].Kind == kind {
			params[i] = resp.Translate[i]
		} else {
			params[i] = zeroParam(kind)
		}
		if kind == ipc.KindStaticBuffer {
			if static < len(shape.StaticIDs) {
				params[i].BufferID = shape.StaticIDs[static]
			}
			static++
		}
	}
	resp.Translate = params
	return resp
}

func zeroParam(kind ipc.Kind) ipc.TranslateParam {
	p := ipc.TranslateParam{Kind: kind}
	switch kind {
	case ipc.KindHandle:
		p.Handles = []uint32{0}
	case ipc.KindMappedBuffer:
		p.Perm = ipc.PermWrite
	}
	return p
}
