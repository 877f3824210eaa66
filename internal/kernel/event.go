// Package kernel 模拟内核对象与句柄：事件对象、每会话句柄表和信号扇出
package kernel

import (
	"sync"
	"sync/atomic"
)

var nextObjectID atomic.Uint64

// Subscriber 事件被触发时的回调
type Subscriber func()

// Event 事件对象
// 可被多个句柄表引用；Signal 时通知所有订阅者
type Event struct {
	id   uint64
	name string

	mu       sync.Mutex
	signaled bool
	subs     map[uint64]Subscriber
	nextSub  uint64
}

// NewEvent 创建事件
func NewEvent(name string) *Event {
	return &Event{
		id:   nextObjectID.Add(1),
		name: name,
		subs: make(map[uint64]Subscriber),
	}
}

// ID 返回对象 ID
func (e *Event) ID() uint64 {
	return e.id
}

// Name 返回事件名称
func (e *Event) Name() string {
	return e.name
}

// Signal 触发事件
func (e *Event) Signal() {
	e.mu.Lock()
	e.signaled = true
	subs := make([]Subscriber, 0, len(e.subs))
	for _, fn := range e.subs {
		subs = append(subs, fn)
	}
	e.mu.Unlock()

	for _, fn := range subs {
		fn()
	}
}

// Clear 复位事件
func (e *Event) Clear() {
	e.mu.Lock()
	e.signaled = false
	e.mu.Unlock()
}

// Signaled 返回事件是否处于触发状态
func (e *Event) Signaled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.signaled
}

// Subscribers 返回订阅者数量
func (e *Event) Subscribers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs)
}

func (e *Event) subscribe(fn Subscriber) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.nextSub++
	e.subs[e.nextSub] = fn
	return e.nextSub
}

func (e *Event) unsubscribe(id uint64) {
	e.mu.Lock()
	delete(e.subs, id)
	e.mu.Unlock()
}
