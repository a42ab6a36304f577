// Package store holds the observable playback state.
package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/osa030/musicmind/internal/domain/track"
)

// QueueInfo summarises the queue for observers.
type QueueInfo struct {
	Length  int
	Index   int // -1 when no queue is active
	Repeat  string
	Shuffle bool
}

// Snapshot is an immutable copy of the playback state.
type Snapshot struct {
	Sequence    uint64       // Incremented on every change
	Track       *track.Track // Currently bound track (nil when none)
	Phase       string       // Engine state name
	IsPlaying   bool
	IsLoading   bool
	CurrentTime float64 // Seconds
	Duration    float64 // Seconds, 0 until the source reports it
	Volume      float64 // 0..1
	Backend     string  // Bound backend kind, empty when none
	Error       string  // Last playback error message
	ErrorKind   string
	Queue       QueueInfo
}

// HasTrack reports whether a track is bound.
func (s Snapshot) HasTrack() bool {
	return s.Track != nil
}

// Store is the single owner of the observable state. Writers call Update;
// any number of readers may Snapshot or Subscribe.
type Store struct {
	mu     sync.RWMutex
	state  Snapshot
	subs   map[string]chan Snapshot
	closed bool
}

// New creates a store with the given initial state.
func New(initial Snapshot) *Store {
	initial.Sequence = 0
	initial.Track = cloneTrack(initial.Track)
	return &Store{
		state: initial,
		subs:  make(map[string]chan Snapshot),
	}
}

// Snapshot returns the current state.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Update applies fn to a copy of the state, stores it and notifies subscribers.
// Returns the new snapshot.
func (s *Store) Update(fn func(*Snapshot)) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.state
	fn(&next)
	next.Track = cloneTrack(next.Track)
	next.Sequence = s.state.Sequence + 1
	s.state = next

	if !s.closed {
		for _, ch := range s.subs {
			offer(ch, next)
		}
	}
	return next
}

// Subscribe registers a subscriber and returns its ID and channel.
// The channel immediately holds the current state and afterwards always holds
// the latest one; intermediate states may be skipped by slow readers.
func (s *Store) Subscribe() (string, <-chan Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New().String()
	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return id, ch
	}
	ch <- s.state
	s.subs[id] = ch
	return id, ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (s *Store) Unsubscribe(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if ch, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(ch)
	}
}

// SubscriberCount returns the number of active subscribers.
func (s *Store) SubscriberCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close closes every subscriber channel. Updates are still stored afterwards.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

// offer replaces any unread snapshot in ch with snap.
func offer(ch chan Snapshot, snap Snapshot) {
	select {
	case ch <- snap:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- snap:
	default:
	}
}

func cloneTrack(t *track.Track) *track.Track {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
