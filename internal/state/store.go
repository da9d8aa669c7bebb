// Package state implements the session-state reconciliation engine behind
// the live dashboard: a snapshot store with identity-preserving merges, a
// stable display-order tracker, and a transient highlight tracker.
package state

import (
	"sync"

	"github.com/gatewatch/gatewatch/pkg/models"
)

// Store holds the current best-known snapshot of all sessions. Both data
// sources funnel through it, so there is exactly one place where "the
// truth" lives. Each apply is a read-merge-write executed as one atomic
// unit under the mutex; callers may invoke it from any goroutine.
//
// The Store performs no I/O and never returns an error: a malformed
// update decodes to zero values upstream and merges harmlessly.
type Store struct {
	mu      sync.Mutex
	current *models.Snapshot
}

// NewStore returns a store holding an empty snapshot.
func NewStore() *Store {
	return &Store{current: models.NewSnapshot()}
}

// ApplyFull merges a poll-sourced snapshot into the store and returns the
// merged result.
func (s *Store) ApplyFull(next *models.Snapshot) *models.Snapshot {
	return s.apply(next)
}

// ApplyPush merges a push-sourced snapshot into the store and returns the
// merged result. Push is authoritative by construction: every field of the
// payload is adopted, with the reconciler consulted only for record
// identity reuse. The separate entry point exists because only push
// updates drive the highlight tracker downstream.
func (s *Store) ApplyPush(next *models.Snapshot) *models.Snapshot {
	return s.apply(next)
}

func (s *Store) apply(next *models.Snapshot) *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Merge(s.current, next)
	return s.current
}

// Current returns the most recently merged snapshot. The snapshot and its
// records must be treated as read-only by callers.
func (s *Store) Current() *models.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}
