// Package notification fans playback state snapshots out to streaming subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/musicmind/internal/app/store"
)

const defaultSendTimeout = 500 * time.Millisecond

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(store.Snapshot) error
}

// Source publishes snapshots, e.g. a store or the playback controller.
type Source interface {
	Subscribe() (string, <-chan store.Snapshot)
	Unsubscribe(id string)
}

// subscription represents a subscriber's subscription.
// Snapshots are delivered in sequence order; anything not newer than the
// last delivered one is dropped.
type subscription struct {
	id     string
	stream Stream

	mu   sync.Mutex
	sent bool
	last uint64
}

func (s *subscription) deliver(snap store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sent && snap.Sequence <= s.last {
		return nil
	}
	if err := s.stream.Send(snap); err != nil {
		return err
	}
	s.sent = true
	s.last = snap.Sequence
	return nil
}

// Manager manages notification subscriptions and broadcasting.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sendTimeout   time.Duration

	done      chan struct{}
	closeOnce sync.Once
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   defaultSendTimeout,
		done:          make(chan struct{}),
	}
}

// Run broadcasts every snapshot published by src until ctx is cancelled or
// src stops publishing. The manager is closed on return.
func (m *Manager) Run(ctx context.Context, src Source) {
	id, ch := src.Subscribe()
	defer m.Close()
	defer src.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			m.Broadcast(snap)
		}
	}
}

// Done is closed when the manager is closed.
func (m *Manager) Done() <-chan struct{} {
	return m.done
}

// Subscribe adds a new subscription and returns the subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:     id,
		stream: stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// Broadcast sends a snapshot to all subscribers.
// Each stream send is done in a goroutine with a timeout to prevent blocking.
// Subscribers whose send fails are dropped.
func (m *Manager) Broadcast(snap store.Snapshot) {
	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		subs = append(subs, sub)
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.deliver(snap)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: dropping subscriber %s: %v", s.id, err)
					m.Unsubscribe(s.id)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send to %s timed out (sequence %d)", s.id, snap.Sequence)
			}
		}(sub)
	}

	wg.Wait()
}

// Send sends a snapshot to a specific subscriber.
func (m *Manager) Send(subscriptionID string, snap store.Snapshot) error {
	m.mu.RLock()
	sub, ok := m.subscriptions[subscriptionID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	return sub.deliver(snap)
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close closes the manager and removes all subscriptions.
func (m *Manager) Close() {
	m.closeOnce.Do(func() { close(m.done) })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
