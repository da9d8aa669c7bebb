// Package monitor coordinates the two session data sources: a periodic
// HTTP poll and the WebSocket push feed. Both producers funnel into one
// serialized reducer loop that owns the snapshot store, the order
// tracker, and the flash tracker, and emits ready-to-render updates.
package monitor

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/gatewatch/gatewatch/internal/state"
	"github.com/gatewatch/gatewatch/pkg/models"
)

// SyncState is the coordinator's data-source state machine.
type SyncState int

const (
	// Uninitialized means no data has arrived from either source yet.
	Uninitialized SyncState = iota
	// Polling means at least one poll succeeded; the view is live on
	// poll data alone.
	Polling
	// PushActive means the push feed has delivered at least once. The
	// transition is informational: polling continues as a correctness
	// backstop either way.
	PushActive
)

func (s SyncState) String() string {
	switch s {
	case Polling:
		return "polling"
	case PushActive:
		return "push"
	default:
		return "connecting"
	}
}

// Source identifies which input produced an update.
type Source int

const (
	SourcePoll Source = iota
	SourcePush
	// SourceFlashExpiry marks updates emitted only because a highlight
	// timed out; the snapshot itself is unchanged.
	SourceFlashExpiry
)

// Update is one ready-to-render view state: the merged snapshot, the
// stable display order, and the flashing key set. Consumers treat all
// three as read-only.
type Update struct {
	Snapshot *models.Snapshot
	Ordered  []*models.SessionRecord
	Flashing map[string]bool
	Source   Source
	State    SyncState
	At       time.Time
}

// Fetcher is the poll source.
type Fetcher interface {
	FetchSnapshot(ctx context.Context) (*models.Snapshot, error)
}

// PushSource is the push feed; Run delivers snapshots on out until the
// context is cancelled.
type PushSource interface {
	Run(ctx context.Context, out chan<- *models.Snapshot)
}

// Journal receives terminated-session notifications. Implementations must
// tolerate duplicates.
type Journal interface {
	RecordTermination(rec *models.SessionRecord, endedAt time.Time) error
	RecordHistorical(h models.HistoricalSession) error
}

// Options configures a Coordinator. Zero values fall back to defaults.
type Options struct {
	PollInterval     time.Duration // default 30s
	VisibilityWindow time.Duration // default state.DefaultVisibilityWindow
	FlashDuration    time.Duration // default state.DefaultFlashDuration
	Journal          Journal       // optional
	Logger           *log.Logger
	Now              func() time.Time // test hook
}

// DefaultPollInterval is the fallback poll cadence. It never stops, even
// while the push feed is healthy, because push delivery is not
// guaranteed.
const DefaultPollInterval = 30 * time.Second

// Coordinator drives the snapshot store from both sources. All tracker
// mutation happens on the Run loop goroutine; the store carries its own
// mutex so Current is safe from anywhere.
type Coordinator struct {
	fetcher Fetcher
	push    PushSource
	store   *state.Store
	order   *state.OrderTracker
	flash   *state.FlashTracker
	journal Journal
	logger  *log.Logger
	now     func() time.Time

	interval  time.Duration
	updates   chan Update
	syncState SyncState

	// recordedHistory de-duplicates historical entries across snapshots.
	recordedHistory map[string]bool
}

// NewCoordinator wires a coordinator from its two sources.
func NewCoordinator(fetcher Fetcher, push PushSource, opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Coordinator{
		fetcher:         fetcher,
		push:            push,
		store:           state.NewStore(),
		order:           state.NewOrderTracker(opts.VisibilityWindow),
		flash:           state.NewFlashTracker(opts.FlashDuration),
		journal:         opts.Journal,
		logger:          opts.Logger,
		now:             opts.Now,
		interval:        opts.PollInterval,
		updates:         make(chan Update, 16),
		recordedHistory: make(map[string]bool),
	}
}

// Updates is the stream of render states. It is closed when Run returns.
func (c *Coordinator) Updates() <-chan Update {
	return c.updates
}

// Store exposes the snapshot store for one-shot readers.
func (c *Coordinator) Store() *state.Store {
	return c.store
}

// Run executes the reducer loop until the context is cancelled. The poll
// ticker, any in-flight fetches, and the push subscription all terminate
// with the context; nothing outlives it.
func (c *Coordinator) Run(ctx context.Context) {
	defer close(c.updates)

	pollResults := make(chan *models.Snapshot, 2)
	pushResults := make(chan *models.Snapshot, 8)

	if c.push != nil {
		go c.push.Run(ctx, pushResults)
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// The sweep timer is armed only while highlights are pending.
	sweep := time.NewTimer(time.Hour)
	if !sweep.Stop() {
		<-sweep.C
	}
	defer sweep.Stop()
	sweepArmed := false

	c.startPoll(ctx, pollResults)

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			c.startPoll(ctx, pollResults)

		case snap := <-pollResults:
			c.handlePoll(ctx, snap)

		case snap := <-pushResults:
			c.handlePush(ctx, snap)
			sweepArmed = c.armSweep(sweep, sweepArmed)

		case <-sweep.C:
			sweepArmed = false
			c.handleSweep(ctx)
			sweepArmed = c.armSweep(sweep, sweepArmed)
		}
	}
}

// startPoll launches one poll fetch. A failed fetch is logged and
// swallowed; the prior snapshot stays on screen and the next tick
// retries. Overlapping fetches are fine: results are serialized through
// the loop and each merge is atomic.
func (c *Coordinator) startPoll(ctx context.Context, results chan<- *models.Snapshot) {
	go func() {
		snap, err := c.fetcher.FetchSnapshot(ctx)
		if err != nil {
			if ctx.Err() == nil {
				c.logger.Debug("poll fetch failed", "err", err)
			}
			return
		}
		select {
		case results <- snap:
		case <-ctx.Done():
		}
	}()
}

func (c *Coordinator) handlePoll(ctx context.Context, snap *models.Snapshot) {
	prev := c.store.Current()
	merged := c.store.ApplyFull(snap)
	if c.syncState == Uninitialized {
		c.syncState = Polling
		c.logger.Info("seeded from first poll", "sessions", len(merged.Sessions))
	}
	c.recordTerminations(prev, merged)
	c.emit(ctx, merged, SourcePoll)
}

func (c *Coordinator) handlePush(ctx context.Context, snap *models.Snapshot) {
	prev := c.store.Current()
	merged := c.store.ApplyPush(snap)
	if c.syncState != PushActive {
		c.syncState = PushActive
		c.logger.Info("push feed active")
	}
	if started := c.flash.ObservePush(merged, c.now()); len(started) > 0 {
		c.logger.Debug("flashing sessions", "keys", started)
	}
	c.recordTerminations(prev, merged)
	c.emit(ctx, merged, SourcePush)
}

func (c *Coordinator) handleSweep(ctx context.Context) {
	if expired := c.flash.Expire(c.now()); len(expired) == 0 {
		return
	}
	c.emit(ctx, c.store.Current(), SourceFlashExpiry)
}

// armSweep points the sweep timer at the earliest pending flash expiry.
func (c *Coordinator) armSweep(sweep *time.Timer, armed bool) bool {
	next, ok := c.flash.NextExpiry()
	if !ok {
		return armed
	}
	if armed && !sweep.Stop() {
		select {
		case <-sweep.C:
		default:
		}
	}
	wait := time.Until(next)
	if wait < 0 {
		wait = 0
	}
	sweep.Reset(wait)
	return true
}

func (c *Coordinator) emit(ctx context.Context, merged *models.Snapshot, source Source) {
	update := Update{
		Snapshot: merged,
		Ordered:  c.order.Apply(merged, c.now()),
		Flashing: c.flash.Flashing(),
		Source:   source,
		State:    c.syncState,
		At:       c.now(),
	}
	select {
	case c.updates <- update:
	case <-ctx.Done():
	}
}

// recordTerminations journals sessions that vanished from the raw
// snapshot and historical entries not seen before. Journal failures are
// logged and ignored; the journal is a convenience log, not a system of
// record.
func (c *Coordinator) recordTerminations(prev, merged *models.Snapshot) {
	if c.journal == nil || prev == nil || merged == nil {
		return
	}

	endedAt := c.now()
	for key, rec := range prev.Sessions {
		if _, ok := merged.Sessions[key]; ok {
			continue
		}
		if err := c.journal.RecordTermination(rec, endedAt); err != nil {
			c.logger.Debug("failed to journal termination", "key", key, "err", err)
		}
	}

	for _, h := range merged.HistoricalSessions {
		id := h.Key + "@" + time.UnixMilli(h.EndedAt).UTC().Format(time.RFC3339Nano)
		if c.recordedHistory[id] {
			continue
		}
		c.recordedHistory[id] = true
		if err := c.journal.RecordHistorical(h); err != nil {
			c.logger.Debug("failed to journal historical session", "key", h.Key, "err", err)
		}
	}
}
