package state

import (
	"reflect"
	"testing"
	"time"

	"github.com/gatewatch/gatewatch/pkg/models"
)

var orderNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

// recordAt builds a record whose last activity was `ago` before orderNow.
func recordAt(key string, activity models.ActivityState, ago time.Duration) *models.SessionRecord {
	return record(key, activity, orderNow.Add(-ago).UnixMilli())
}

func keysOf(records []*models.SessionRecord) []string {
	keys := make([]string, len(records))
	for i, rec := range records {
		keys[i] = rec.Key
	}
	return keys
}

func TestOrderNewcomersSortedActiveFirstThenRecency(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	snap := snapshotOf(
		recordAt("idle-recent", models.ActivityIdle, 1*time.Minute),
		recordAt("busy-old", models.ActivityBusy, 20*time.Minute),
		recordAt("busy-new", models.ActivityBusy, 1*time.Minute),
		recordAt("idle-older", models.ActivityIdle, 10*time.Minute),
	)

	got := keysOf(tracker.Apply(snap, orderNow))
	want := []string{"busy-new", "busy-old", "idle-recent", "idle-older"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestOrderTieBreakByKey(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	snap := snapshotOf(
		recordAt("bbb", models.ActivityBusy, 5*time.Minute),
		recordAt("aaa", models.ActivityBusy, 5*time.Minute),
		recordAt("ccc", models.ActivityBusy, 5*time.Minute),
	)

	got := keysOf(tracker.Apply(snap, orderNow))
	want := []string{"aaa", "bbb", "ccc"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

// TestOrderStableAcrossStateChanges verifies the no-jumping guarantee:
// once tracked, a key keeps its relative position even as its activity
// state and recency change.
func TestOrderStableAcrossStateChanges(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	tracker.Apply(snapshotOf(
		recordAt("s1", models.ActivityBusy, 2*time.Minute),
		recordAt("s2", models.ActivityBusy, 1*time.Minute),
	), orderNow)

	// s1 becomes the hot session; s2 goes idle. Neither may move.
	later := orderNow.Add(time.Minute)
	got := keysOf(tracker.Apply(snapshotOf(
		record("s1", models.ActivityToolUse, later.UnixMilli()),
		recordAt("s2", models.ActivityIdle, 5*time.Minute),
	), later))

	want := []string{"s2", "s1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestOrderNewcomerPrependedAheadOfTracked(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	tracker.Apply(snapshotOf(
		recordAt("old-1", models.ActivityBusy, 2*time.Minute),
		recordAt("old-2", models.ActivityBusy, 1*time.Minute),
	), orderNow)

	got := keysOf(tracker.Apply(snapshotOf(
		recordAt("old-1", models.ActivityBusy, 2*time.Minute),
		recordAt("old-2", models.ActivityBusy, 1*time.Minute),
		recordAt("fresh", models.ActivityThinking, 0),
	), orderNow))

	if got[0] != "fresh" {
		t.Errorf("newcomer should be first, got %v", got)
	}
	if !reflect.DeepEqual(got[1:], []string{"old-2", "old-1"}) {
		t.Errorf("tracked tail reordered: %v", got)
	}
}

// TestOrderEvictsAgedOutIdleSession covers the visibility window: idle
// for longer than the window means gone from the order, even though the
// raw snapshot still lists the key.
func TestOrderEvictsAgedOutIdleSession(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	snap := snapshotOf(
		recordAt("s1", models.ActivityBusy, time.Minute),
		recordAt("s2", models.ActivityIdle, 40*time.Minute),
	)

	got := keysOf(tracker.Apply(snap, orderNow))
	if !reflect.DeepEqual(got, []string{"s1"}) {
		t.Errorf("aged-out idle session should be excluded, got %v", got)
	}
}

func TestOrderActiveSessionVisibleRegardlessOfAge(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	snap := snapshotOf(recordAt("s1", models.ActivityBusy, 3*time.Hour))
	got := keysOf(tracker.Apply(snap, orderNow))

	if !reflect.DeepEqual(got, []string{"s1"}) {
		t.Errorf("active session should stay visible, got %v", got)
	}
}

func TestOrderVanishedKeyDropped(t *testing.T) {
	tracker := NewOrderTracker(30 * time.Minute)

	tracker.Apply(snapshotOf(
		recordAt("s1", models.ActivityBusy, time.Minute),
		recordAt("s2", models.ActivityBusy, time.Minute),
	), orderNow)

	got := keysOf(tracker.Apply(snapshotOf(
		recordAt("s1", models.ActivityBusy, time.Minute),
	), orderNow))

	if !reflect.DeepEqual(got, []string{"s1"}) {
		t.Errorf("vanished key should drop from the order, got %v", got)
	}

	// A key that returns later is a newcomer again and goes to the front.
	got = keysOf(tracker.Apply(snapshotOf(
		recordAt("s1", models.ActivityBusy, time.Minute),
		recordAt("s2", models.ActivityBusy, 0),
	), orderNow))

	if !reflect.DeepEqual(got, []string{"s2", "s1"}) {
		t.Errorf("returning key should re-enter at the front, got %v", got)
	}
}

func TestOrderNilSnapshotClears(t *testing.T) {
	tracker := NewOrderTracker(0)
	tracker.Apply(snapshotOf(recordAt("s1", models.ActivityBusy, 0)), orderNow)

	if got := tracker.Apply(nil, orderNow); got != nil {
		t.Errorf("nil snapshot should clear the order, got %v", got)
	}
	if len(tracker.Keys()) != 0 {
		t.Error("tracked keys should be empty after nil snapshot")
	}
}
