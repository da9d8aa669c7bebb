package state

import (
	"github.com/gatewatch/gatewatch/pkg/models"
)

// Merge combines a newly received snapshot with the previously held one.
//
// The interesting property is identity reuse: for any key present in both
// snapshots whose records agree on the full comparison set (activity state,
// last activity time, token totals, run id, message preview), the merged
// snapshot holds the *old* record pointer. Renderers compare pointers to
// decide whether a row needs redrawing, so reusing identities is what keeps
// a forty-session list from repainting when one session changes.
//
// Keys absent from next are dropped outright; the merged key set is wholly
// determined by the latest snapshot. There are no tombstones.
//
// Aggregate counters and the connectivity flag always come from next.
// The historical-session list is carried forward from old when next does
// not supply one, since push deltas routinely omit it.
func Merge(old, next *models.Snapshot) *models.Snapshot {
	if next == nil {
		return old
	}
	if old == nil {
		return next
	}

	merged := &models.Snapshot{
		Sessions:           make(map[string]*models.SessionRecord, len(next.Sessions)),
		ActiveSessions:     next.ActiveSessions,
		TotalSessions:      next.TotalSessions,
		Timestamp:          next.Timestamp,
		Connected:          next.Connected,
		HistoricalSessions: next.HistoricalSessions,
	}
	if merged.HistoricalSessions == nil {
		merged.HistoricalSessions = old.HistoricalSessions
	}

	for key, rec := range next.Sessions {
		if prev, ok := old.Sessions[key]; ok && prev.EquivalentTo(rec) {
			merged.Sessions[key] = prev
			continue
		}
		merged.Sessions[key] = rec
	}

	return merged
}
