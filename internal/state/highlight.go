package state

import (
	"time"

	"github.com/gatewatch/gatewatch/pkg/models"
)

// DefaultFlashDuration is how long a just-activated session stays
// highlighted.
const DefaultFlashDuration = 600 * time.Millisecond

// FlashTracker marks sessions that just transitioned into the active set
// so the UI can flash them briefly. It is a side-table of key to expiry
// time, deliberately separate from the snapshot model: flash state is
// presentation-only and must never influence reconciliation, ordering, or
// the aggregate counts.
//
// Only push-sourced updates feed the tracker. A poll is a 30-second
// fallback; transitions it reports happened up to a poll interval ago and
// flashing them would be noise rather than signal.
//
// Like OrderTracker, the FlashTracker is owned by the coordinator loop
// and is not safe for concurrent use.
type FlashTracker struct {
	duration   time.Duration
	prevActive map[string]bool
	expiry     map[string]time.Time
}

// NewFlashTracker creates a tracker with the given flash duration.
// A non-positive duration falls back to DefaultFlashDuration.
func NewFlashTracker(duration time.Duration) *FlashTracker {
	if duration <= 0 {
		duration = DefaultFlashDuration
	}
	return &FlashTracker{
		duration:   duration,
		prevActive: make(map[string]bool),
		expiry:     make(map[string]time.Time),
	}
}

// ObservePush records a push-sourced snapshot. Keys that are active now
// but were not active on the previous push start flashing; their expiry is
// fixed at now+duration and is not re-armed by later updates. The newly
// flashing keys are returned so the caller can schedule a sweep.
func (t *FlashTracker) ObservePush(snap *models.Snapshot, now time.Time) []string {
	if snap == nil {
		return nil
	}

	current := make(map[string]bool, len(snap.Sessions))
	for key, rec := range snap.Sessions {
		if rec.Active() {
			current[key] = true
		}
	}

	var started []string
	for key := range current {
		if t.prevActive[key] {
			continue
		}
		if _, flashing := t.expiry[key]; flashing {
			// Still mid-flash from an earlier transition; let its own
			// timer run out.
			continue
		}
		t.expiry[key] = now.Add(t.duration)
		started = append(started, key)
	}

	t.prevActive = current
	return started
}

// Expire removes entries whose flash window has passed and returns their
// keys. The coordinator calls this from its sweep timer.
func (t *FlashTracker) Expire(now time.Time) []string {
	var expired []string
	for key, at := range t.expiry {
		if !now.Before(at) {
			expired = append(expired, key)
			delete(t.expiry, key)
		}
	}
	return expired
}

// NextExpiry returns the earliest pending expiry, if any, so the caller
// can arm a timer for the next sweep.
func (t *FlashTracker) NextExpiry() (time.Time, bool) {
	var next time.Time
	for _, at := range t.expiry {
		if next.IsZero() || at.Before(next) {
			next = at
		}
	}
	return next, !next.IsZero()
}

// Flashing returns a copy of the currently flashing key set.
func (t *FlashTracker) Flashing() map[string]bool {
	out := make(map[string]bool, len(t.expiry))
	for key := range t.expiry {
		out[key] = true
	}
	return out
}
