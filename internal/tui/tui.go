package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/gatewatch/gatewatch/internal/journal"
	"github.com/gatewatch/gatewatch/internal/monitor"
	"github.com/gatewatch/gatewatch/pkg/models"
)

type viewMode int

const (
	sessionsView viewMode = iota
	journalView
)

type model struct {
	updates <-chan monitor.Update
	journal *journal.Journal

	mode       viewMode
	snapshot   *models.Snapshot
	ordered    []*models.SessionRecord
	flashing   map[string]bool
	syncState  monitor.SyncState
	lastUpdate time.Time
	closed     bool

	cursor      int
	selectedKey string

	journalEntries []journal.Entry
	journalErr     error

	// rowCache memoizes formatted rows per record identity. The
	// reconciler reuses record pointers for unchanged sessions, so a
	// cache hit here is exactly "this row does not need reformatting".
	rowCache map[*models.SessionRecord]string

	listViewport    viewport.Model
	detailViewport  viewport.Model
	journalViewport viewport.Model
	ready           bool
	width           int
	height          int
}

func initialModel(updates <-chan monitor.Update, j *journal.Journal) model {
	return model{
		updates:  updates,
		journal:  j,
		mode:     sessionsView,
		flashing: map[string]bool{},
		rowCache: map[*models.SessionRecord]string{},
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForUpdate(m.updates), tickCmd())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeViewports()
		// Row text depends on the list width.
		m.rowCache = map[*models.SessionRecord]string{}
		m.refreshContent()

	case UpdateMsg:
		m.applyUpdate(monitor.Update(msg))
		m.refreshContent()
		cmds = append(cmds, waitForUpdate(m.updates))

	case UpdatesClosedMsg:
		m.closed = true
		m.refreshContent()

	case JournalLoadedMsg:
		m.journalEntries = msg.Entries
		m.journalErr = msg.Error
		m.refreshContent()

	case TickMsg:
		cmds = append(cmds, tickCmd())

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "tab":
			if m.mode == sessionsView {
				m.mode = journalView
				cmds = append(cmds, loadJournalCmd(m.journal, 100))
			} else {
				m.mode = sessionsView
			}
			m.refreshContent()

		case "up", "k":
			if m.mode == sessionsView && m.cursor > 0 {
				m.cursor--
				m.rememberSelection()
				m.refreshContent()
			}

		case "down", "j":
			if m.mode == sessionsView && m.cursor < len(m.ordered)-1 {
				m.cursor++
				m.rememberSelection()
				m.refreshContent()
			}
		}
	}

	// Let the active viewports process scroll events.
	if m.ready {
		var cmd tea.Cmd
		switch m.mode {
		case sessionsView:
			m.detailViewport, cmd = m.detailViewport.Update(msg)
			cmds = append(cmds, cmd)
		case journalView:
			m.journalViewport, cmd = m.journalViewport.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// applyUpdate adopts a coordinator update while keeping the cursor on the
// session the operator is looking at: selection follows the key, not the
// index, so new entries prepended to the list never steal the cursor.
func (m *model) applyUpdate(u monitor.Update) {
	m.snapshot = u.Snapshot
	m.ordered = u.Ordered
	m.flashing = u.Flashing
	m.syncState = u.State
	m.lastUpdate = u.At

	if m.selectedKey != "" {
		for i, rec := range m.ordered {
			if rec.Key == m.selectedKey {
				m.cursor = i
				return
			}
		}
	}
	if m.cursor >= len(m.ordered) {
		m.cursor = len(m.ordered) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.rememberSelection()
}

func (m *model) rememberSelection() {
	if m.cursor >= 0 && m.cursor < len(m.ordered) {
		m.selectedKey = m.ordered[m.cursor].Key
	} else {
		m.selectedKey = ""
	}
}

func (m *model) selectedRecord() *models.SessionRecord {
	if m.cursor >= 0 && m.cursor < len(m.ordered) {
		return m.ordered[m.cursor]
	}
	return nil
}

func (m *model) resizeViewports() {
	leftWidth := m.width/2 - 1
	rightWidth := m.width - leftWidth - 1
	viewHeight := m.height - 3

	if !m.ready {
		m.listViewport = viewport.New(leftWidth, viewHeight)
		m.detailViewport = viewport.New(rightWidth, viewHeight)
		m.journalViewport = viewport.New(m.width, viewHeight)
		m.ready = true
		return
	}
	m.listViewport.Width = leftWidth
	m.listViewport.Height = viewHeight
	m.detailViewport.Width = rightWidth
	m.detailViewport.Height = viewHeight
	m.journalViewport.Width = m.width
	m.journalViewport.Height = viewHeight
}

func (m *model) refreshContent() {
	if !m.ready {
		return
	}
	switch m.mode {
	case sessionsView:
		m.listViewport.SetContent(m.renderSessionList())
		m.detailViewport.SetContent(m.renderDetail())
	case journalView:
		m.journalViewport.SetContent(m.renderJournal())
	}
}

func (m model) View() string {
	if !m.ready {
		return "\n  Connecting..."
	}

	header := m.renderHeader()
	footer := m.renderFooter()

	if m.mode == journalView {
		return fmt.Sprintf("%s\n%s\n%s", header, m.journalViewport.View(), footer)
	}
	return fmt.Sprintf("%s\n%s\n%s", header, m.renderSplitView(), footer)
}

func (m model) renderSplitView() string {
	leftStyle := lipgloss.NewStyle().
		Width(m.listViewport.Width).
		Height(m.listViewport.Height)

	rightStyle := lipgloss.NewStyle().
		Width(m.detailViewport.Width).
		Height(m.detailViewport.Height)

	dividerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("238"))

	divider := strings.TrimRight(strings.Repeat("│\n", m.listViewport.Height), "\n")

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		leftStyle.Render(m.listViewport.View()),
		dividerStyle.Render(divider),
		rightStyle.Render(m.detailViewport.View()),
	)
}

func (m model) renderHeader() string {
	title := "gatewatch"
	if m.mode == journalView {
		title = "gatewatch - journal"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("63")).
		Padding(0, 1)

	return lipgloss.JoinHorizontal(lipgloss.Center,
		titleStyle.Render(title),
		" ",
		m.renderStatusBar(),
	)
}

// renderStatusBar shows connectivity, aggregate counters, the data-source
// state, and the age of the last update.
func (m model) renderStatusBar() string {
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	badStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var parts []string

	if m.closed {
		parts = append(parts, badStyle.Render("stream ended"))
	} else if m.snapshot == nil {
		parts = append(parts, dimStyle.Render("waiting for gateway"))
	} else {
		if m.snapshot.Connected {
			parts = append(parts, okStyle.Render("connected"))
		} else {
			parts = append(parts, badStyle.Render("disconnected"))
		}
		parts = append(parts, dimStyle.Render(
			fmt.Sprintf("%d active / %d total", m.snapshot.ActiveSessions, m.snapshot.TotalSessions)))
		parts = append(parts, dimStyle.Render(m.syncState.String()))
		if !m.lastUpdate.IsZero() {
			parts = append(parts, dimStyle.Render(fmt.Sprintf("updated %s ago", relativeAge(m.lastUpdate))))
		}
	}

	return strings.Join(parts, dimStyle.Render(" • "))
}

func (m model) renderSessionList() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))
	s.WriteString(headerStyle.Render("Sessions") + "\n")
	s.WriteString(strings.Repeat("─", max(m.listViewport.Width-2, 10)) + "\n")

	if len(m.ordered) == 0 {
		emptyStyle := lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true)
		s.WriteString("\n" + emptyStyle.Render("No sessions in the visibility window"))
		return s.String()
	}

	for i, rec := range m.ordered {
		cursor := "  "
		if i == m.cursor {
			cursor = "> "
		}

		row, ok := m.rowCache[rec]
		if !ok {
			row = m.formatRow(rec)
			m.rowCache[rec] = row
		}

		style := lipgloss.NewStyle()
		switch {
		case m.flashing[rec.Key]:
			// Just-activated flash: short-lived emphasis, cleared by the
			// coordinator's expiry update.
			style = style.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(true)
		case i == m.cursor:
			style = style.Foreground(lipgloss.Color("212")).Bold(true)
		case !rec.Active():
			style = style.Foreground(lipgloss.Color("243"))
		}

		s.WriteString(style.Render(cursor+row) + "\n")
	}

	return s.String()
}

// formatRow renders the width-dependent plain text of one list row. It is
// the expensive part, which is why its result is memoized per record
// identity.
func (m model) formatRow(rec *models.SessionRecord) string {
	badge := activityBadge(rec.ActivityState)

	key := rec.Key
	if len(key) > 12 {
		key = key[:12]
	}

	row := fmt.Sprintf("%s %-12s %5.1f%%  %s",
		badge,
		key,
		rec.TokenUsage.PercentUsed,
		rec.LastActivity().Local().Format("15:04:05"))

	if rec.LastMessagePreview != nil {
		remaining := m.listViewport.Width - lipgloss.Width(row) - 4
		if remaining > 8 {
			row += "  " + truncate(rec.LastMessagePreview.Text, remaining)
		}
	}
	return row
}

// renderDetail renders the right-hand pane for the selected session. Any
// panic while deriving the detail text is confined here and replaced by
// an inline notice; the session list must survive a bad record.
func (m model) renderDetail() (out string) {
	defer func() {
		if r := recover(); r != nil {
			out = lipgloss.NewStyle().
				Foreground(lipgloss.Color("203")).
				Render(fmt.Sprintf("detail unavailable: %v", r))
		}
	}()

	rec := m.selectedRecord()

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))

	var s strings.Builder
	s.WriteString(headerStyle.Render("Session Detail") + "\n")
	s.WriteString(strings.Repeat("─", max(m.detailViewport.Width-2, 10)) + "\n\n")

	if rec == nil {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).Render("Nothing selected"))
		return s.String()
	}

	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	field := func(label, value string) {
		s.WriteString(labelStyle.Render(fmt.Sprintf("%-14s", label)) + valueStyle.Render(value) + "\n")
	}

	field("Key", rec.Key)
	field("State", fmt.Sprintf("%s %s", activityBadge(rec.ActivityState), rec.ActivityState))
	field("Last activity", rec.LastActivity().Local().Format("2006-01-02 15:04:05"))
	if rec.RunID != "" {
		field("Run", rec.RunID)
	}
	field("Tokens", fmt.Sprintf("%d total, %d context, %.1f%% used",
		rec.TokenUsage.Total, rec.TokenUsage.Context, rec.TokenUsage.PercentUsed))

	if rec.LastMessagePreview != nil {
		s.WriteString("\n" + labelStyle.Render("Last message") + "\n")
		wrapWidth := max(m.detailViewport.Width-4, 20)
		for _, line := range wrapText(rec.LastMessagePreview.Text, wrapWidth) {
			s.WriteString("  " + valueStyle.Render(line) + "\n")
		}
		s.WriteString(labelStyle.Render("  at "+time.UnixMilli(rec.LastMessagePreview.Timestamp).Local().Format("15:04:05")) + "\n")
	}

	return s.String()
}

func (m model) renderJournal() string {
	var s strings.Builder

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("229"))
	s.WriteString(headerStyle.Render("Terminated Sessions") + "\n")
	s.WriteString(strings.Repeat("─", max(m.width-2, 10)) + "\n\n")

	if m.journalErr != nil {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Render(
			fmt.Sprintf("journal unavailable: %v", m.journalErr)))
		return s.String()
	}
	if len(m.journalEntries) == 0 {
		s.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true).Render("No journaled sessions yet"))
		return s.String()
	}

	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	for _, e := range m.journalEntries {
		line := fmt.Sprintf("%s  %-12s %8d tok",
			e.EndedAt.Local().Format("01-02 15:04"),
			truncate(e.Key, 12),
			e.TotalTokens)
		s.WriteString(valueStyle.Render(line))
		if e.Summary != "" {
			s.WriteString(dimStyle.Render("  " + truncate(e.Summary, max(m.width-len(line)-4, 10))))
		}
		s.WriteString("\n")
	}

	return s.String()
}

func (m model) renderFooter() string {
	info := "↑/↓: navigate • tab: journal • q: quit"
	if m.mode == journalView {
		info = "tab: sessions • q: quit"
	}

	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Render(info)
}

// activityBadge maps a state to a colored glyph.
func activityBadge(state models.ActivityState) string {
	var glyph, color string
	switch state {
	case models.ActivityBusy:
		glyph, color = "●", "214"
	case models.ActivityThinking:
		glyph, color = "◐", "177"
	case models.ActivityToolUse:
		glyph, color = "⚙", "75"
	case models.ActivityTyping:
		glyph, color = "✎", "86"
	default:
		glyph, color = "○", "240"
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(glyph)
}

// relativeAge formats how long ago t was, coarsely.
func relativeAge(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Second:
		return "0s"
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
}

// wrapText wraps text to fit within the specified width.
func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{text}
	}

	var lines []string
	currentLine := words[0]
	for _, word := range words[1:] {
		if len(currentLine)+1+len(word) > width {
			lines = append(lines, currentLine)
			currentLine = word
		} else {
			currentLine += " " + word
		}
	}
	if currentLine != "" {
		lines = append(lines, currentLine)
	}

	return lines
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Run displays the dashboard until the user quits or the context is
// cancelled.
func Run(ctx context.Context, updates <-chan monitor.Update, j *journal.Journal) error {
	p := tea.NewProgram(
		initialModel(updates, j),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)

	_, err := p.Run()
	if err != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, context.Canceled)) {
		return nil
	}
	return err
}
