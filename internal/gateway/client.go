// Package gateway talks to the agent gateway's session API: a REST poll
// endpoint for full snapshots and a WebSocket stream for push updates.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gatewatch/gatewatch/pkg/models"
)

// API paths served by the gateway (and by the mock gateway).
const (
	SessionsPath = "/api/v1/sessions"
	StreamPath   = "/api/v1/sessions/stream"
)

// DefaultRequestTimeout bounds a single poll fetch.
const DefaultRequestTimeout = 10 * time.Second

// Client fetches full session snapshots from the gateway's REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a poll client for the gateway at baseURL. A
// non-positive timeout falls back to DefaultRequestTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchSnapshot retrieves the current full snapshot. Errors are returned
// to the caller; the sync coordinator swallows them and keeps the last
// good snapshot on screen.
func (c *Client) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+SessionsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build sessions request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sessions fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}

	var payload models.SnapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode sessions payload: %w", err)
	}

	return payload.Snapshot(), nil
}
