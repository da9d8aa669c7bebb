package mockgateway

import (
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gatewatch/gatewatch/pkg/models"
)

func quietServer() *Server {
	return New(log.New(io.Discard))
}

func TestStepKeepsSessionsPopulated(t *testing.T) {
	s := quietServer()

	for i := 0; i < 50; i++ {
		s.step()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) == 0 {
		t.Error("synthetic loop should keep spawning sessions")
	}
	for key, rec := range s.sessions {
		if rec.Key != key {
			t.Errorf("session stored under wrong key: %q vs %q", key, rec.Key)
		}
		if rec.RunID == "" {
			t.Errorf("session %s missing run ID", key)
		}
	}
}

func TestPayloadCountsActiveSessions(t *testing.T) {
	s := quietServer()
	now := time.Now().UnixMilli()
	s.SetSessions(
		&models.SessionRecord{Key: "a", ActivityState: models.ActivityBusy, LastActivityTime: now},
		&models.SessionRecord{Key: "b", ActivityState: models.ActivityIdle, LastActivityTime: now},
	)
	s.SetHistory(models.HistoricalSession{Key: "gone", EndedAt: now})

	s.mu.Lock()
	full := s.payloadLocked(true)
	delta := s.payloadLocked(false)
	s.mu.Unlock()

	if full.ActiveSessions != 1 || full.TotalSessions != 2 {
		t.Errorf("aggregates wrong: active=%d total=%d", full.ActiveSessions, full.TotalSessions)
	}
	if len(full.HistoricalSessions) != 1 {
		t.Errorf("full payload should include history, got %d", len(full.HistoricalSessions))
	}
	if delta.HistoricalSessions != nil {
		t.Error("push payload should omit history")
	}
}

func TestPayloadClonesRecords(t *testing.T) {
	s := quietServer()
	rec := &models.SessionRecord{
		Key:                "a",
		ActivityState:      models.ActivityBusy,
		LastActivityTime:   time.Now().UnixMilli(),
		LastMessagePreview: &models.MessagePreview{Text: "original"},
	}
	s.SetSessions(rec)

	s.mu.Lock()
	payload := s.payloadLocked(false)
	s.mu.Unlock()

	payload.Sessions[0].LastMessagePreview.Text = "mutated"
	if rec.LastMessagePreview.Text != "original" {
		t.Error("payload must not alias server state")
	}
}
