package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gatewatch/gatewatch/internal/journal"
	"github.com/gatewatch/gatewatch/internal/monitor"
)

// Message types for async events feeding the dashboard.
type (
	// UpdateMsg carries one reconciled view state from the coordinator.
	UpdateMsg monitor.Update

	// UpdatesClosedMsg signals that the coordinator loop has stopped.
	UpdatesClosedMsg struct{}

	// JournalLoadedMsg contains loaded journal entries.
	JournalLoadedMsg struct {
		Entries []journal.Entry
		Error   error
	}

	// TickMsg refreshes relative timestamps in the status bar.
	TickMsg time.Time
)

// waitForUpdate blocks on the coordinator's update stream and converts
// the next value into a message. The Update handler re-issues it, so
// exactly one reader is pending at any time.
func waitForUpdate(updates <-chan monitor.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-updates
		if !ok {
			return UpdatesClosedMsg{}
		}
		return UpdateMsg(u)
	}
}

// loadJournalCmd loads recent journal entries asynchronously.
func loadJournalCmd(j *journal.Journal, limit int) tea.Cmd {
	return func() tea.Msg {
		if j == nil {
			return JournalLoadedMsg{}
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		entries, err := j.Recent(ctx, limit)
		return JournalLoadedMsg{Entries: entries, Error: err}
	}
}

// tickCmd drives the once-a-second status bar refresh.
func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
