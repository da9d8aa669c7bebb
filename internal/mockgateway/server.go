// Package mockgateway implements an in-process agent gateway serving the
// same REST and WebSocket surface as the real one, with synthetic session
// activity. It backs the mock-gateway command for local demos and gives
// package tests a real wire to talk to.
package mockgateway

import (
	"context"
	"encoding/json"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/gatewatch/gatewatch/internal/gateway"
	"github.com/gatewatch/gatewatch/pkg/models"
)

var activeStates = []models.ActivityState{
	models.ActivityBusy,
	models.ActivityThinking,
	models.ActivityToolUse,
	models.ActivityTyping,
}

var previewLines = []string{
	"Refactoring the retry loop as discussed",
	"Running the integration suite now",
	"Found the failing assertion, fixing it",
	"Summarizing the diff before opening the PR",
	"Waiting on the tool result",
}

// Server is a fake gateway. Session state lives in memory and is mutated
// by Run's tick loop or directly by test helpers.
type Server struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	sessions map[string]*models.SessionRecord
	history  []models.HistoricalSession
	clients  map[*websocket.Conn]bool
	rng      *rand.Rand
	seq      int
}

// New creates an empty mock gateway.
func New(logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		logger:   logger,
		sessions: make(map[string]*models.SessionRecord),
		clients:  make(map[*websocket.Conn]bool),
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Router returns the HTTP routes: the poll endpoint and the push stream.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc(gateway.SessionsPath, s.handleSessions).Methods(http.MethodGet)
	r.HandleFunc(gateway.StreamPath, s.handleStream)
	return r
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	payload := s.payloadLocked(true)
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Debug("failed to encode sessions payload", "err", err)
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", "err", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()
	s.logger.Debug("push client connected", "remote", conn.RemoteAddr())

	// Drain incoming frames so close/ping handling works; the stream is
	// one-directional from the server's point of view.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropClient(conn)
				return
			}
		}
	}()
}

func (s *Server) dropClient(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// payloadLocked builds the wire payload from current state. Push deltas
// omit the historical list, mirroring the real gateway.
func (s *Server) payloadLocked(includeHistory bool) models.SnapshotPayload {
	payload := models.SnapshotPayload{
		Timestamp: time.Now().UnixMilli(),
		Connected: true,
	}
	for _, rec := range s.sessions {
		clone := *rec
		if rec.LastMessagePreview != nil {
			preview := *rec.LastMessagePreview
			clone.LastMessagePreview = &preview
		}
		payload.Sessions = append(payload.Sessions, &clone)
		if clone.Active() {
			payload.ActiveSessions++
		}
	}
	payload.TotalSessions = len(payload.Sessions)
	if includeHistory {
		payload.HistoricalSessions = append([]models.HistoricalSession(nil), s.history...)
	}
	return payload
}

// Broadcast pushes the current state to every connected stream client.
func (s *Server) Broadcast() {
	s.mu.Lock()
	payload := s.payloadLocked(false)
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Debug("failed to marshal push payload", "err", err)
		return
	}
	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			s.dropClient(conn)
		}
	}
}

// SetSessions replaces the session table. Test helper.
func (s *Server) SetSessions(records ...*models.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*models.SessionRecord, len(records))
	for _, rec := range records {
		s.sessions[rec.Key] = rec
	}
}

// SetHistory replaces the historical-session list. Test helper.
func (s *Server) SetHistory(history ...models.HistoricalSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = history
}

// Run drives synthetic activity: each tick spawns, mutates, or terminates
// sessions and broadcasts the result to stream clients. Blocks until the
// context is cancelled.
func (s *Server) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 2 * time.Second
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	s.step()
	s.Broadcast()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.step()
			s.Broadcast()
		}
	}
}

// step applies one round of synthetic mutations.
func (s *Server) step() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UnixMilli()

	// Occasionally spawn a session, more eagerly when the table is small.
	if len(s.sessions) < 3 || s.rng.Intn(4) == 0 {
		s.seq++
		key := uuid.New().String()[:8]
		rec := &models.SessionRecord{
			Key:              key,
			ActivityState:    activeStates[s.rng.Intn(len(activeStates))],
			LastActivityTime: now,
			RunID:            uuid.New().String(),
			TokenUsage:       models.TokenUsage{Total: int64(s.rng.Intn(2000)), Context: 200000},
		}
		s.sessions[key] = rec
		s.logger.Info("spawned session", "key", key, "state", rec.ActivityState)
	}

	for key, rec := range s.sessions {
		switch s.rng.Intn(10) {
		case 0, 1:
			// Drift to another active state.
			rec.ActivityState = activeStates[s.rng.Intn(len(activeStates))]
			rec.LastActivityTime = now
		case 2:
			rec.ActivityState = models.ActivityIdle
		case 3:
			if rec.ActivityState == models.ActivityIdle {
				rec.ActivityState = activeStates[s.rng.Intn(len(activeStates))]
				rec.LastActivityTime = now
			}
		case 4:
			if len(s.sessions) > 2 {
				s.history = append(s.history, models.HistoricalSession{
					Key:           key,
					EndedAt:       now,
					TotalTokens:   rec.TokenUsage.Total,
					ActivityState: string(rec.ActivityState),
					Summary:       "run " + rec.RunID[:8] + " finished",
				})
				delete(s.sessions, key)
				s.logger.Info("terminated session", "key", key)
				continue
			}
		}

		if rec.Active() {
			grow := int64(s.rng.Intn(1500))
			rec.TokenUsage.Total += grow
			rec.TokenUsage.PercentUsed = float64(rec.TokenUsage.Total) / float64(rec.TokenUsage.Context) * 100
			rec.LastActivityTime = now
			rec.LastMessagePreview = &models.MessagePreview{
				Text:      previewLines[s.rng.Intn(len(previewLines))],
				Timestamp: now,
			}
		}
	}
}
