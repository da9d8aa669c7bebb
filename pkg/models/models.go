package models

import "time"

// ActivityState describes what an agent session is currently doing.
// "idle" is the only state that does not count as active.
type ActivityState string

const (
	ActivityIdle     ActivityState = "idle"
	ActivityBusy     ActivityState = "busy"
	ActivityThinking ActivityState = "thinking"
	ActivityToolUse  ActivityState = "tool_use"
	ActivityTyping   ActivityState = "typing"
)

// CanonicalActivity maps a wire activity string onto a known state.
// Unknown or empty values fall back to idle so a malformed payload can
// never crash or distort the view.
func CanonicalActivity(s string) ActivityState {
	switch ActivityState(s) {
	case ActivityIdle, ActivityBusy, ActivityThinking, ActivityToolUse, ActivityTyping:
		return ActivityState(s)
	default:
		return ActivityIdle
	}
}

// Active reports whether the state counts toward the active session set.
func (s ActivityState) Active() bool {
	return s != ActivityIdle && s != ""
}

// TokenUsage tracks token consumption for a session. Values are monotonic
// within a session's life and reset only when a new session starts.
type TokenUsage struct {
	Total       int64   `json:"total"`
	Context     int64   `json:"context"`
	PercentUsed float64 `json:"percentUsed"`
}

// MessagePreview is a short excerpt of the most recent message on a
// session, with its wall-clock timestamp in milliseconds.
type MessagePreview struct {
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// SessionRecord is the live state of one agent session as reported by the
// gateway. Key is stable and never reused for a different logical session
// within a process lifetime. Records are only ever replaced by
// reconciliation, never mutated in place by consumers.
type SessionRecord struct {
	Key                string          `json:"key"`
	ActivityState      ActivityState   `json:"activityState"`
	LastActivityTime   int64           `json:"lastActivityTime"` // wall-clock ms
	TokenUsage         TokenUsage      `json:"tokenUsage"`
	LastMessagePreview *MessagePreview `json:"lastMessagePreview,omitempty"`
	RunID              string          `json:"runId,omitempty"`
}

// Active reports whether the session counts as active.
func (r *SessionRecord) Active() bool {
	return r.ActivityState.Active()
}

// LastActivity converts the millisecond timestamp to a time.Time.
func (r *SessionRecord) LastActivity() time.Time {
	return time.UnixMilli(r.LastActivityTime)
}

// EquivalentTo reports whether two records agree on every field the
// reconciler compares. When they do, the previously held record keeps its
// identity so downstream renderers can skip unchanged rows.
func (r *SessionRecord) EquivalentTo(other *SessionRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.ActivityState != other.ActivityState ||
		r.LastActivityTime != other.LastActivityTime ||
		r.TokenUsage.Total != other.TokenUsage.Total ||
		r.TokenUsage.PercentUsed != other.TokenUsage.PercentUsed ||
		r.RunID != other.RunID {
		return false
	}
	if (r.LastMessagePreview == nil) != (other.LastMessagePreview == nil) {
		return false
	}
	if r.LastMessagePreview != nil {
		if r.LastMessagePreview.Text != other.LastMessagePreview.Text ||
			r.LastMessagePreview.Timestamp != other.LastMessagePreview.Timestamp {
			return false
		}
	}
	return true
}

// HistoricalSession summarizes a terminated session. The gateway includes
// the list on poll responses but may omit it from push deltas.
type HistoricalSession struct {
	Key           string `json:"key"`
	EndedAt       int64  `json:"endedAt"`
	TotalTokens   int64  `json:"totalTokens"`
	Summary       string `json:"summary,omitempty"`
	ActivityState string `json:"activityState,omitempty"`
}

// Snapshot is a full point-in-time view of all sessions plus aggregates.
// Sessions is keyed by SessionRecord.Key. A nil HistoricalSessions slice
// means the source did not supply one, which reconciliation treats as
// "carry the previous list forward".
type Snapshot struct {
	Sessions           map[string]*SessionRecord
	ActiveSessions     int
	TotalSessions      int
	Timestamp          int64
	Connected          bool
	HistoricalSessions []HistoricalSession
}

// NewSnapshot returns an empty snapshot with an allocated session map.
func NewSnapshot() *Snapshot {
	return &Snapshot{Sessions: make(map[string]*SessionRecord)}
}

// SnapshotPayload is the wire shape shared by the poll endpoint and the
// push feed: sessions as a flat list plus aggregate counters.
type SnapshotPayload struct {
	Sessions           []*SessionRecord    `json:"sessions"`
	ActiveSessions     int                 `json:"activeSessions"`
	TotalSessions      int                 `json:"totalSessions"`
	Timestamp          int64               `json:"timestamp"`
	Connected          bool                `json:"connected"`
	HistoricalSessions []HistoricalSession `json:"historicalSessions,omitempty"`
}

// Snapshot converts the wire payload into the keyed in-memory form.
// Records without a key are dropped and activity states are canonicalized;
// malformed input degrades this way instead of erroring.
func (p *SnapshotPayload) Snapshot() *Snapshot {
	snap := &Snapshot{
		Sessions:           make(map[string]*SessionRecord, len(p.Sessions)),
		ActiveSessions:     p.ActiveSessions,
		TotalSessions:      p.TotalSessions,
		Timestamp:          p.Timestamp,
		Connected:          p.Connected,
		HistoricalSessions: p.HistoricalSessions,
	}
	for _, rec := range p.Sessions {
		if rec == nil || rec.Key == "" {
			continue
		}
		rec.ActivityState = CanonicalActivity(string(rec.ActivityState))
		snap.Sessions[rec.Key] = rec
	}
	return snap
}
