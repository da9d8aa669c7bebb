package monitor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/pkg/models"
)

// scriptedFetcher replays a fixed sequence of poll results, repeating the
// final entry once the script runs out.
type scriptedFetcher struct {
	mu     sync.Mutex
	script []pollResult
	calls  int
}

type pollResult struct {
	snap *models.Snapshot
	err  error
}

func (f *scriptedFetcher) FetchSnapshot(ctx context.Context) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	f.calls++
	res := f.script[idx]
	return res.snap, res.err
}

// fakePush forwards snapshots written to its channel.
type fakePush struct {
	ch chan *models.Snapshot
}

func newFakePush() *fakePush {
	return &fakePush{ch: make(chan *models.Snapshot, 4)}
}

func (p *fakePush) Run(ctx context.Context, out chan<- *models.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-p.ch:
			select {
			case out <- snap:
			case <-ctx.Done():
				return
			}
		}
	}
}

type recordingJournal struct {
	mu           sync.Mutex
	terminations []string
	historical   []string
}

func (j *recordingJournal) RecordTermination(rec *models.SessionRecord, endedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.terminations = append(j.terminations, rec.Key)
	return nil
}

func (j *recordingJournal) RecordHistorical(h models.HistoricalSession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.historical = append(j.historical, h.Key)
	return nil
}

func sessionSnapshot(records ...*models.SessionRecord) *models.Snapshot {
	snap := models.NewSnapshot()
	for _, rec := range records {
		snap.Sessions[rec.Key] = rec
	}
	snap.TotalSessions = len(records)
	for _, rec := range records {
		if rec.Active() {
			snap.ActiveSessions++
		}
	}
	snap.Connected = true
	return snap
}

func liveRecord(key string, activity models.ActivityState) *models.SessionRecord {
	return &models.SessionRecord{
		Key:              key,
		ActivityState:    activity,
		LastActivityTime: time.Now().UnixMilli(),
	}
}

func receiveUpdate(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-updates:
		if !ok {
			t.Fatal("updates channel closed unexpectedly")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update{}
}

func TestCoordinatorSeedsFromFirstPoll(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: sessionSnapshot(liveRecord("s1", models.ActivityBusy))},
	}}
	c := NewCoordinator(fetcher, newFakePush(), Options{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	u := receiveUpdate(t, c.Updates())
	if u.Source != SourcePoll {
		t.Errorf("first update source = %v, want poll", u.Source)
	}
	if u.State != Polling {
		t.Errorf("state = %v, want Polling", u.State)
	}
	if len(u.Ordered) != 1 || u.Ordered[0].Key != "s1" {
		t.Errorf("ordered = %v", u.Ordered)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}
	// The updates channel closes with the loop.
	for range c.Updates() {
	}
}

func TestCoordinatorSwallowsPollFailures(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{err: errors.New("connection refused")},
		{err: errors.New("connection refused")},
		{snap: sessionSnapshot(liveRecord("s1", models.ActivityBusy))},
	}}
	c := NewCoordinator(fetcher, newFakePush(), Options{PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	// No update is emitted for the failed fetches; the first thing to
	// arrive is the eventual success.
	u := receiveUpdate(t, c.Updates())
	if u.Source != SourcePoll || len(u.Ordered) != 1 {
		t.Errorf("unexpected first update: %+v", u)
	}
}

func TestCoordinatorPushDrivesFlashAndExpiry(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: sessionSnapshot(liveRecord("s1", models.ActivityIdle))},
	}}
	push := newFakePush()
	c := NewCoordinator(fetcher, push, Options{
		PollInterval:  time.Hour,
		FlashDuration: 50 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	first := receiveUpdate(t, c.Updates())
	if len(first.Flashing) != 0 {
		t.Errorf("poll update should not flash, got %v", first.Flashing)
	}

	push.ch <- sessionSnapshot(liveRecord("s1", models.ActivityBusy))

	pushed := receiveUpdate(t, c.Updates())
	if pushed.Source != SourcePush || pushed.State != PushActive {
		t.Errorf("push update source=%v state=%v", pushed.Source, pushed.State)
	}
	if !pushed.Flashing["s1"] {
		t.Error("idle-to-active push transition should flash s1")
	}

	expiry := receiveUpdate(t, c.Updates())
	if expiry.Source != SourceFlashExpiry {
		t.Errorf("expected flash expiry update, got source %v", expiry.Source)
	}
	if len(expiry.Flashing) != 0 {
		t.Errorf("flash should have expired, got %v", expiry.Flashing)
	}
}

func TestCoordinatorPollTransitionsDoNotFlash(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: sessionSnapshot(liveRecord("s1", models.ActivityIdle))},
		{snap: sessionSnapshot(liveRecord("s1", models.ActivityBusy))},
	}}
	c := NewCoordinator(fetcher, newFakePush(), Options{PollInterval: 20 * time.Millisecond})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	for i := 0; i < 2; i++ {
		u := receiveUpdate(t, c.Updates())
		if len(u.Flashing) != 0 {
			t.Errorf("poll-sourced transition must not flash, got %v", u.Flashing)
		}
	}
}

func TestCoordinatorJournalsTerminations(t *testing.T) {
	fetcher := &scriptedFetcher{script: []pollResult{
		{snap: sessionSnapshot(liveRecord("s1", models.ActivityBusy))},
	}}
	push := newFakePush()
	journal := &recordingJournal{}
	c := NewCoordinator(fetcher, push, Options{
		PollInterval:  time.Hour,
		FlashDuration: time.Hour, // keep expiry updates out of the sequence
		Journal:       journal,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go c.Run(ctx)

	receiveUpdate(t, c.Updates())

	// s1 vanishes from the push snapshot, which also carries a
	// historical entry.
	next := sessionSnapshot(liveRecord("s2", models.ActivityBusy))
	next.HistoricalSessions = []models.HistoricalSession{{Key: "s1", EndedAt: 1000}}
	push.ch <- next
	receiveUpdate(t, c.Updates())

	// The same historical entry on a later snapshot is not re-recorded.
	again := sessionSnapshot(liveRecord("s2", models.ActivityBusy))
	again.HistoricalSessions = []models.HistoricalSession{{Key: "s1", EndedAt: 1000}}
	push.ch <- again
	receiveUpdate(t, c.Updates())

	journal.mu.Lock()
	defer journal.mu.Unlock()
	if len(journal.terminations) != 1 || journal.terminations[0] != "s1" {
		t.Errorf("terminations = %v, want [s1]", journal.terminations)
	}
	if len(journal.historical) != 1 || journal.historical[0] != "s1" {
		t.Errorf("historical = %v, want [s1]", journal.historical)
	}
}
