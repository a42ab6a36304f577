package notification

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/musicmind/internal/app/store"
)

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

type recordingStream struct {
	mu    sync.Mutex
	seqs  []uint64
	err   error
	block chan struct{}
}

func (s *recordingStream) Send(snap store.Snapshot) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.seqs = append(s.seqs, snap.Sequence)
	return nil
}

func (s *recordingStream) sequences() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.seqs...)
}

func TestManager_BroadcastInOrder(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	id := m.Subscribe(s)
	assert.Equal(t, 1, m.SubscriberCount())

	require.NoError(t, m.Send(id, store.Snapshot{Sequence: 3}))
	m.Broadcast(store.Snapshot{Sequence: 2}) // stale
	m.Broadcast(store.Snapshot{Sequence: 3}) // duplicate
	m.Broadcast(store.Snapshot{Sequence: 4})

	assert.Equal(t, []uint64{3, 4}, s.sequences())

	m.Unsubscribe(id)
	m.Broadcast(store.Snapshot{Sequence: 5})
	assert.Equal(t, []uint64{3, 4}, s.sequences())
	assert.NoError(t, m.Send(id, store.Snapshot{Sequence: 6}))
}

func TestManager_FirstSnapshotAlwaysDelivered(t *testing.T) {
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)

	m.Broadcast(store.Snapshot{Sequence: 0})
	assert.Equal(t, []uint64{0}, s.sequences())
}

func TestManager_DropsFailingSubscriber(t *testing.T) {
	m := NewManager()
	good := &recordingStream{}
	bad := &recordingStream{err: errors.New("stream closed")}
	m.Subscribe(good)
	m.Subscribe(bad)

	m.Broadcast(store.Snapshot{Sequence: 1})
	assert.Equal(t, 1, m.SubscriberCount())
	assert.Equal(t, []uint64{1}, good.sequences())
}

func TestManager_SlowSubscriberDoesNotBlock(t *testing.T) {
	m := NewManager()
	m.sendTimeout = 20 * time.Millisecond
	slow := &recordingStream{block: make(chan struct{})}
	fast := &recordingStream{}
	m.Subscribe(slow)
	m.Subscribe(fast)

	start := time.Now()
	m.Broadcast(store.Snapshot{Sequence: 1})
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []uint64{1}, fast.sequences())

	close(slow.block)
	assert.Eventually(t, func() bool { return len(slow.sequences()) == 1 }, waitFor, tick)
}

func TestManager_Run(t *testing.T) {
	st := store.New(store.Snapshot{Volume: 1})
	m := NewManager()
	s := &recordingStream{}
	m.Subscribe(s)

	ctx, cancel := context.WithCancel(context.Background())
	finished := make(chan struct{})
	go func() {
		m.Run(ctx, st)
		close(finished)
	}()

	assert.Eventually(t, func() bool { return st.SubscriberCount() == 1 }, waitFor, tick)
	st.Update(func(s *store.Snapshot) { s.Volume = 0.5 })

	assert.Eventually(t, func() bool {
		seqs := s.sequences()
		return len(seqs) > 0 && seqs[len(seqs)-1] == 1
	}, waitFor, tick)

	cancel()
	select {
	case <-finished:
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}

	select {
	case <-m.Done():
	default:
		t.Fatal("manager not closed")
	}
	assert.Zero(t, m.SubscriberCount())
	assert.Zero(t, st.SubscriberCount())
}

func TestManager_RunStopsWhenSourceCloses(t *testing.T) {
	st := store.New(store.Snapshot{})
	m := NewManager()

	finished := make(chan struct{})
	go func() {
		m.Run(context.Background(), st)
		close(finished)
	}()
	assert.Eventually(t, func() bool { return st.SubscriberCount() == 1 }, waitFor, tick)

	st.Close()
	select {
	case <-finished:
	case <-time.After(waitFor):
		t.Fatal("Run did not return")
	}
}
