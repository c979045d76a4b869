// Package memory provides an in-memory implementation of the relay.EventStore
// interface. This implementation is primarily intended for testing and
// development; it forgets everything on restart, so redelivered events from
// before a restart are processed again, which the handlers tolerate.
package memory

import (
	"context"
	"sync"
	"time"
)

// Store implements relay.EventStore using an in-memory map.
type Store struct {
	mu   sync.Mutex
	seen map[string]time.Time

	// ttl bounds how long an event id is remembered. Zero means forever.
	ttl time.Duration
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithTTL bounds how long event ids are remembered. Stripe retries failed
// deliveries for up to three days, so anything beyond that only costs memory.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// New creates a new in-memory event store.
func New(opts ...Option) *Store {
	s := &Store{
		seen: make(map[string]time.Time),
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MarkProcessed implements relay.EventStore. It reports whether the event id
// was already recorded and records it if not, in one atomic step.
func (s *Store) MarkProcessed(_ context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if recordedAt, ok := s.seen[eventID]; ok {
		if s.ttl == 0 || now.Sub(recordedAt) < s.ttl {
			return true, nil
		}
		// Expired entry, treat as unseen.
	}

	s.seen[eventID] = now
	s.evictExpired(now)
	return false, nil
}

// evictExpired drops entries past their TTL. Called with the lock held.
func (s *Store) evictExpired(now time.Time) {
	if s.ttl == 0 {
		return
	}
	for id, recordedAt := range s.seen {
		if now.Sub(recordedAt) >= s.ttl {
			delete(s.seen, id)
		}
	}
}

// Len reports how many event ids are currently remembered.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
