package state

import (
	"sort"
	"time"

	"github.com/gatewatch/gatewatch/pkg/models"
)

// DefaultVisibilityWindow is how long an idle session stays listed after
// its last activity.
const DefaultVisibilityWindow = 30 * time.Minute

// OrderTracker derives the display order of visible sessions from each
// merged snapshot without ever reordering entries the viewer is already
// looking at. Keys leave the order when they age out of visibility; new
// keys are sorted among themselves and prepended as a block; everything
// else keeps its relative position no matter how its state changes.
//
// The tracker is not safe for concurrent use; it is owned by the sync
// coordinator's event loop.
type OrderTracker struct {
	window time.Duration
	keys   []string
}

// NewOrderTracker creates a tracker with the given visibility window.
// A non-positive window falls back to DefaultVisibilityWindow.
func NewOrderTracker(window time.Duration) *OrderTracker {
	if window <= 0 {
		window = DefaultVisibilityWindow
	}
	return &OrderTracker{window: window}
}

// visible reports whether a record should appear in the list: any active
// session, or an idle one whose last activity is within the window.
func (t *OrderTracker) visible(rec *models.SessionRecord, now time.Time) bool {
	if rec.Active() {
		return true
	}
	return now.Sub(rec.LastActivity()) <= t.window
}

// Apply recomputes the tracked order against a merged snapshot and returns
// the visible records in display order. Keys that fail lookup in the
// snapshot are skipped defensively; eviction in the first pass should make
// that impossible.
func (t *OrderTracker) Apply(snap *models.Snapshot, now time.Time) []*models.SessionRecord {
	if snap == nil {
		t.keys = nil
		return nil
	}

	visible := make(map[string]bool, len(snap.Sessions))
	for key, rec := range snap.Sessions {
		if t.visible(rec, now) {
			visible[key] = true
		}
	}

	// Evict keys that aged out or vanished, preserving relative order of
	// the survivors.
	kept := t.keys[:0]
	tracked := make(map[string]bool, len(t.keys))
	for _, key := range t.keys {
		if visible[key] {
			kept = append(kept, key)
			tracked[key] = true
		}
	}

	var newcomers []string
	for key := range visible {
		if !tracked[key] {
			newcomers = append(newcomers, key)
		}
	}

	// Newcomers land at the front: active sessions first, then most recent
	// activity, then key order so simultaneous arrivals are deterministic.
	sort.Slice(newcomers, func(i, j int) bool {
		a, b := snap.Sessions[newcomers[i]], snap.Sessions[newcomers[j]]
		if a.Active() != b.Active() {
			return a.Active()
		}
		if a.LastActivityTime != b.LastActivityTime {
			return a.LastActivityTime > b.LastActivityTime
		}
		return a.Key < b.Key
	})

	t.keys = append(newcomers, kept...)

	out := make([]*models.SessionRecord, 0, len(t.keys))
	for _, key := range t.keys {
		if rec, ok := snap.Sessions[key]; ok {
			out = append(out, rec)
		}
	}
	return out
}

// Keys returns a copy of the currently tracked key order.
func (t *OrderTracker) Keys() []string {
	keys := make([]string, len(t.keys))
	copy(keys, t.keys)
	return keys
}
