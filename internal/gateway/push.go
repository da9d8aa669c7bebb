package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"github.com/gatewatch/gatewatch/pkg/models"
)

// Subscriber maintains a WebSocket subscription to the gateway's session
// stream and delivers decoded snapshots on a channel. Delivery is
// at-least-once from the gateway's perspective; the reconciler makes
// duplicates harmless.
type Subscriber struct {
	url    string
	logger *log.Logger
}

// NewSubscriber creates a subscriber for the gateway at baseURL. The
// http(s) scheme is rewritten to ws(s).
func NewSubscriber(baseURL string, logger *log.Logger) (*Subscriber, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway URL: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("unsupported gateway URL scheme %q", u.Scheme)
	}
	u.Path = StreamPath
	if logger == nil {
		logger = log.Default()
	}
	return &Subscriber{url: u.String(), logger: logger}, nil
}

// Run connects, reads, and reconnects until the context is cancelled.
// Connection failures back off exponentially and reset on a successful
// connect. Malformed messages are discarded; a push feed outage is never
// surfaced to the view, since the poll fallback keeps running.
func (s *Subscriber) Run(ctx context.Context, out chan<- *models.Snapshot) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // retry forever

	for {
		if ctx.Err() != nil {
			return
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.url, nil)
		if err != nil {
			wait := bo.NextBackOff()
			s.logger.Debug("push connect failed", "url", s.url, "err", err, "retry_in", wait)
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return
			}
		}

		bo.Reset()
		s.logger.Info("push stream connected", "url", s.url)
		s.readLoop(ctx, conn, out)
		conn.Close()

		if ctx.Err() == nil {
			s.logger.Debug("push stream disconnected, reconnecting")
		}
	}
}

// readLoop decodes messages until the connection drops or the context is
// cancelled. Cancelling the context closes the connection to unblock the
// pending read.
func (s *Subscriber) readLoop(ctx context.Context, conn *websocket.Conn, out chan<- *models.Snapshot) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var payload models.SnapshotPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			s.logger.Debug("discarding malformed push payload", "err", err)
			continue
		}

		select {
		case out <- payload.Snapshot():
		case <-ctx.Done():
			return
		}
	}
}
