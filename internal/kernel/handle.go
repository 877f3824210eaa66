package kernel

import (
	"errors"
	"sync"
)

var (
	ErrHandleTableFull = errors.New("handle table full")
	ErrInvalidHandle   = errors.New("invalid handle")
	ErrTableClosed     = errors.New("handle table closed")
)

const (
	// ServerHandleBase 服务端分配的句柄值带此前缀，客户端句柄不得使用
	ServerHandleBase uint32 = 0x80000000

	// DefaultHandleLimit 每会话句柄上限
	DefaultHandleLimit = 32
)

// Notifier 句柄上的事件被触发时，通知句柄持有方
type Notifier interface {
	Notify(handle uint32)
}

// NotifierFunc 函数适配器
type NotifierFunc func(handle uint32)

// Notify 实现 Notifier
func (f NotifierFunc) Notify(handle uint32) {
	f(handle)
}

type entry struct {
	event *Event
	sub   uint64
}

// HandleTable 每会话句柄表
// 会话是其句柄的唯一所有者，关闭会话时 CloseAll 释放全部句柄
type HandleTable struct {
	mu       sync.Mutex
	limit    int
	notifier Notifier
	entries  map[uint32]entry
	next     uint32
	closed   bool
}

// NewHandleTable 创建句柄表
func NewHandleTable(limit int, notifier Notifier) *HandleTable {
	if limit <= 0 {
		limit = DefaultHandleLimit
	}
	return &HandleTable{
		limit:    limit,
		notifier: notifier,
		entries:  make(map[uint32]entry),
		next:     ServerHandleBase,
	}
}

// Insert 为服务端对象分配新句柄
func (t *HandleTable) Insert(ev *Event) (uint32, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.checkLocked(); err != nil {
		return 0, err
	}
	for {
		t.next++
		if t.next < ServerHandleBase {
			t.next = ServerHandleBase + 1
		}
		if _, ok := t.entries[t.next]; !ok {
			break
		}
	}
	t.bindLocked(t.next, ev)
	return t.next, nil
}

// Import 登记客户端传入的句柄，返回与之绑定的事件
// 同一句柄值重复导入时返回已有事件
func (t *HandleTable) Import(handle uint32) (*Event, error) {
	if handle == 0 || handle&ServerHandleBase != 0 {
		return nil, ErrInvalidHandle
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil, ErrTableClosed
	}
	if e, ok := t.entries[handle]; ok {
		return e.event, nil
	}
	if err := t.checkLocked(); err != nil {
		return nil, err
	}
	ev := NewEvent("client")
	t.bindLocked(handle, ev)
	return ev, nil
}

// Get 查找句柄
func (t *HandleTable) Get(handle uint32) (*Event, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[handle]
	return e.event, ok
}

// Lookup 查找事件在本表中的句柄
func (t *HandleTable) Lookup(ev *Event) (uint32, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for h, e := range t.entries {
		if e.event == ev {
			return h, true
		}
	}
	return 0, false
}

// Close 释放句柄
func (t *HandleTable) Close(handle uint32) error {
	t.mu.Lock()
	e, ok := t.entries[handle]
	if ok {
		delete(t.entries, handle)
	}
	t.mu.Unlock()

	if !ok {
		return ErrInvalidHandle
	}
	e.event.unsubscribe(e.sub)
	return nil
}

// CloseAll 释放全部句柄并拒绝后续分配，返回释放数量
func (t *HandleTable) CloseAll() int {
	t.mu.Lock()
	entries := t.entries
	t.entries = make(map[uint32]entry)
	t.closed = true
	t.mu.Unlock()

	for _, e := range entries {
		e.event.unsubscribe(e.sub)
	}
	return len(entries)
}

// Len 返回已占用句柄数
func (t *HandleTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *HandleTable) checkLocked() error {
	if t.closed {
		return ErrTableClosed
	}
	if len(t.entries) >= t.limit {
		return ErrHandleTableFull
	}
	return nil
}

func (t *HandleTable) bindLocked(handle uint32, ev *Event) {
	var sub uint64
	if t.notifier != nil {
		n := t.notifier
		sub = ev.subscribe(func() { n.Notify(handle) })
	}
	t.entries[handle] = entry{event: ev, sub: sub}
}
