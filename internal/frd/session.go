package frd

import (
	"github.com/qiminjie89/frdsvc/internal/kernel"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

// Session 每个客户端连接的会话上下文
// 会话是其句柄表中全部句柄的唯一所有者
type Session struct {
	Slot      int
	ConnID    string
	Service   string
	ProcessID uint32
	Handles   *kernel.HandleTable

	ClientEvent      uint32 // AttachToEventNotification 登记的客户端事件句柄，0 表示未登记
	NotificationMask uint32 // bit (1<<kind) 置位表示屏蔽该类通知
	Cursor           uint64 // 已读到的通知序号
	signaledSeq      uint64 // 已为之触发过客户端事件的最大序号

	ClientSDKVersion   uint32
	HalfAwake          bool
	LastGameAuth       *GameAuthenticationData
	LastServiceLocator *ServiceLocateData
	ServerTimeInterval uint64
}

// NewSession 创建会话，游标从 cursor 开始（只接收此后的通知）
func NewSession(slot int, service, connID string, handles *kernel.HandleTable, cursor uint64) *Session {
	return &Session{
		Slot:        slot,
		ConnID:      connID,
		Service:     service,
		Handles:     handles,
		Cursor:      cursor,
		signaledSeq: cursor,
	}
}

// Masked 该类通知是否被屏蔽
func (s *Session) Masked(kind protocol.NotificationKind) bool {
	if kind >= 32 {
		return false
	}
	return s.NotificationMask&(1<<kind) != 0
}

// SignalPending 有未读且未屏蔽的新通知时触发客户端事件，返回是否触发
// 每条通知最多触发一次
func (s *Session) SignalPending(q *Queue) bool {
	if s.ClientEvent == 0 {
		return false
	}
	from := max(s.Cursor, s.signaledSeq)
	records, missed := q.PeekSince(from)

	pending := missed
	var last uint64
	for n := range records {
		last = n.Seq
		if !s.Masked(n.Kind) {
			pending = true
		}
	}
	if last > s.signaledSeq {
		s.signaledSeq = last
	}
	if !pending {
		return false
	}

	ev, ok := s.Handles.Get(s.ClientEvent)
	if !ok {
		return false
	}
	ev.Signal()
	return true
}

// Close 释放会话持有的全部句柄，返回释放数量
func (s *Session) Close() int {
	s.ClientEvent = 0
	s.Cursor = 0
	return s.Handles.CloseAll()
}
