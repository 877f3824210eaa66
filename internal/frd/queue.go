package frd

import (
	"iter"
	"slices"
	"sync"

	"github.com/qiminjie89/frdsvc/internal/protocol"
	"github.com/qiminjie89/frdsvc/pkg/metrics"
)

// DefaultQueueCapacity 通知队列默认容量
const DefaultQueueCapacity = 64

// Notification 通知记录
type Notification struct {
	Kind   protocol.NotificationKind
	Friend FriendKey
	Seq    uint64
}

// Queue 有界通知队列
// 序号从 1 开始连续递增；满时淘汰最旧记录。
// 会被接入 goroutine 与主循环并发访问，所有操作持锁。
type Queue struct {
	mu      sync.Mutex
	ring    []Notification
	start   int
	count   int
	nextSeq uint64

	wake chan struct{}
}

// NewQueue 创建通知队列
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCapacity
	}
	return &Queue{
		ring:    make([]Notification, capacity),
		nextSeq: 1,
		wake:    make(chan struct{}, 1),
	}
}

// Push 追加通知并返回分配了序号的记录
func (q *Queue) Push(kind protocol.NotificationKind, friend FriendKey) Notification {
	q.mu.Lock()
	n := Notification{Kind: kind, Friend: friend, Seq: q.nextSeq}
	q.nextSeq++

	evicted := false
	if q.count == len(q.ring) {
		q.start = (q.start + 1) % len(q.ring)
		q.count--
		evicted = true
	}
	q.ring[(q.start+q.count)%len(q.ring)] = n
	q.count++
	depth := q.count
	q.mu.Unlock()

	metrics.NotificationsPushed.WithLabelValues(kind.String()).Inc()
	metrics.QueueDepth.Set(float64(depth))
	if evicted {
		metrics.NotificationsEvicted.Inc()
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return n
}

// PeekSince 返回序号大于 cursor 的记录
// missed 为 true 表示 cursor 之后有记录已被淘汰
func (q *Queue) PeekSince(cursor uint64) (iter.Seq[Notification], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	minSeq := q.minSeqLocked()
	missed := cursor+1 < minSeq

	var out []Notification
	for i := 0; i < q.count; i++ {
		n := q.ring[(q.start+i)%len(q.ring)]
		if n.Seq > cursor {
			out = append(out, n)
		}
	}
	return slices.Values(out), missed
}

// Advance 推进会话游标，游标只前进且不超过队首
func (q *Queue) Advance(sess *Session, cursor uint64) {
	q.mu.Lock()
	head := q.nextSeq - 1
	q.mu.Unlock()

	if cursor > head {
		cursor = head
	}
	if cursor > sess.Cursor {
		sess.Cursor = cursor
	}
}

// Head 返回最近一次分配的序号（空队列为 0）
func (q *Queue) Head() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.nextSeq - 1
}

// MinSeq 返回仍保留的最旧记录序号；空队列时为下一个将分配的序号
func (q *Queue) MinSeq() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.minSeqLocked()
}

// Len 返回保留的记录数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Wake 每次 Push 后可读（合并多次通知）
func (q *Queue) Wake() <-chan struct{} {
	return q.wake
}

func (q *Queue) minSeqLocked() uint64 {
	if q.count == 0 {
		return q.nextSeq
	}
	return q.ring[q.start].Seq
}
