package frd

import (
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qiminjie89/frdsvc/internal/kernel"
	"github.com/qiminjie89/frdsvc/internal/protocol"
)

func seqs(q *Queue, cursor uint64) ([]uint64, bool) {
	records, missed := q.PeekSince(cursor)
	var out []uint64
	for n := range records {
		out = append(out, n.Seq)
	}
	return out, missed
}

func TestQueuePushPeek(t *testing.T) {
	q := NewQueue(4)
	assert.Equal(t, uint64(0), q.Head())
	assert.Equal(t, uint64(1), q.MinSeq())

	friend := FriendKey{PrincipalID: 7}
	n := q.Push(protocol.NotifyFriendWentOnline, friend)
	assert.Equal(t, uint64(1), n.Seq)
	q.Push(protocol.NotifyFriendWentOffline, friend)

	got, missed := seqs(q, 0)
	assert.False(t, missed)
	assert.Equal(t, []uint64{1, 2}, got)

	got, _ = seqs(q, 1)
	assert.Equal(t, []uint64{2}, got)

	select {
	case <-q.Wake():
	default:
		t.Fatal("push did not wake")
	}
}

func TestQueueEvictionReportsMissed(t *testing.T) {
	q := NewQueue(3)
	for range 5 {
		q.Push(protocol.NotifyFriendUpdatedMii, FriendKey{})
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, uint64(3), q.MinSeq())
	assert.Equal(t, uint64(5), q.Head())

	got, missed := seqs(q, 0)
	assert.True(t, missed)
	assert.Equal(t, []uint64{3, 4, 5}, got)

	_, missed = seqs(q, 2)
	assert.False(t, missed)
}

func TestQueueAdvanceMonotonic(t *testing.T) {
	q := NewQueue(4)
	q.Push(protocol.NotifyFriendWentOnline, FriendKey{})
	sess := NewSession(0, protocol.ServiceFrdU, "c", kernel.NewHandleTable(0, nil), 0)

	q.Advance(sess, 10)
	assert.Equal(t, uint64(1), sess.Cursor, "capped at head")

	q.Advance(sess, 0)
	assert.Equal(t, uint64(1), sess.Cursor, "never moves back")
}

func TestQueueConcurrentPush(t *testing.T) {
	const producers, each = 8, 50
	q := NewQueue(producers * each)

	var wg sync.WaitGroup
	for p := range producers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range each {
				q.Push(protocol.NotifyFriendUpdatedPresence, FriendKey{PrincipalID: uint32(p + 1)})
			}
		}()
	}

	// 读取与写入并发进行
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 100 {
			got, _ := seqs(q, 0)
			if !slices.IsSorted(got) {
				t.Error("peek returned unordered records")
				return
			}
		}
	}()

	wg.Wait()
	<-done

	got, missed := seqs(q, 0)
	require.False(t, missed)
	require.Len(t, got, producers*each)
	for i, s := range got {
		assert.Equal(t, uint64(i+1), s)
	}
}
