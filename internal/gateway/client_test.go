package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/internal/gateway"
	"github.com/gatewatch/gatewatch/internal/mockgateway"
	"github.com/gatewatch/gatewatch/pkg/models"
)

func TestFetchSnapshot(t *testing.T) {
	mock := mockgateway.New(nil)
	mock.SetSessions(
		&models.SessionRecord{
			Key:              "alpha",
			ActivityState:    models.ActivityBusy,
			LastActivityTime: time.Now().UnixMilli(),
			RunID:            "run-1",
			TokenUsage:       models.TokenUsage{Total: 4200, Context: 200000, PercentUsed: 2.1},
		},
		&models.SessionRecord{
			Key:              "beta",
			ActivityState:    models.ActivityIdle,
			LastActivityTime: time.Now().Add(-5 * time.Minute).UnixMilli(),
		},
	)
	mock.SetHistory(models.HistoricalSession{Key: "gone", EndedAt: time.Now().UnixMilli()})

	srv := httptest.NewServer(mock.Router())
	defer srv.Close()

	client := gateway.NewClient(srv.URL, 0)
	snap, err := client.FetchSnapshot(context.Background())
	if err != nil {
		t.Fatalf("FetchSnapshot failed: %v", err)
	}

	if len(snap.Sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(snap.Sessions))
	}
	alpha, ok := snap.Sessions["alpha"]
	if !ok {
		t.Fatal("missing session alpha")
	}
	if alpha.RunID != "run-1" || alpha.TokenUsage.Total != 4200 {
		t.Errorf("alpha fields not carried over: %+v", alpha)
	}
	if snap.ActiveSessions != 1 || snap.TotalSessions != 2 {
		t.Errorf("aggregates wrong: active=%d total=%d", snap.ActiveSessions, snap.TotalSessions)
	}
	if !snap.Connected {
		t.Error("expected connected snapshot")
	}
	if len(snap.HistoricalSessions) != 1 {
		t.Errorf("expected 1 historical session, got %d", len(snap.HistoricalSessions))
	}
}

func TestFetchSnapshotNonOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := gateway.NewClient(srv.URL, 0)
	if _, err := client.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}

func TestFetchSnapshotGatewayDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := gateway.NewClient(url, time.Second)
	if _, err := client.FetchSnapshot(context.Background()); err == nil {
		t.Fatal("expected an error when the gateway is unreachable")
	}
}

func TestFetchSnapshotContextCancelled(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := gateway.NewClient(srv.URL, 0)
	if _, err := client.FetchSnapshot(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
}
