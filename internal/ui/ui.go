// Package ui renders the live watch screen for the triage queue on top of
// Bubbletea and Lipgloss: a status panel, the per-class queue listing and a
// scrolling event feed.
package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lucasdoreac/triage/internal/queue"
	"github.com/lucasdoreac/triage/internal/task"
)

// maxEvents bounds the event feed so a long watch session stays small.
const maxEvents = 200

// refreshEvery is how often the model re-polls the queue reader.
const refreshEvery = time.Second

// Panel identifies which panel has keyboard focus.
type Panel int

const (
	PanelStatus Panel = iota
	PanelQueues
	PanelEvents
	panelCount
)

// RunStatus represents what the run loop is currently doing.
type RunStatus int

const (
	StatusIdle RunStatus = iota
	StatusWatching
	StatusDraining
)

func (s RunStatus) String() string {
	switch s {
	case StatusWatching:
		return "Watching"
	case StatusDraining:
		return "Draining"
	case StatusIdle:
		return "Idle"
	}
	return "Unknown"
}

// EventItem is one line in the event feed.
type EventItem struct {
	Time    time.Time
	Kind    string // submit, dispatch, reject
	Message string
}

// QueueReader is the read-only slice of the dispatcher the TUI polls.
type QueueReader interface {
	Stats() queue.Stats
	Peek() (task.Task, bool)
	Snapshot() []queue.ClassSnapshot
}

// EventMsg delivers a queue event to the running TUI via Program.Send.
type EventMsg struct {
	Event queue.Event
}

// StatusMsg updates the run loop status line.
type StatusMsg struct {
	Status RunStatus
}

// tickMsg fires on every refresh interval.
type tickMsg time.Time

// Model holds the watch screen state.
type Model struct {
	width       int
	height      int
	activePanel Panel
	quitting    bool

	reader      QueueReader
	labelFor    func(int) string
	previewLen  int
	nextRunFunc func() time.Time // optional, reports the next scheduled drain

	stats    queue.Stats
	next     task.Task
	hasNext  bool
	snapshot []queue.ClassSnapshot

	runStatus   RunStatus
	queueScroll int
	eventScroll int
	events      []EventItem
	frame       int

	styles *Styles
}

// Styles holds the lipgloss styles the panels draw with.
type Styles struct {
	ActiveBorder   lipgloss.Style
	InactiveBorder lipgloss.Style

	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Label     lipgloss.Style
	Value     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style

	StatusOK      lipgloss.Style
	StatusWarn    lipgloss.Style
	StatusRunning lipgloss.Style

	EventSubmit   lipgloss.Style
	EventDispatch lipgloss.Style
	EventReject   lipgloss.Style

	HelpKey  lipgloss.Style
	HelpText lipgloss.Style
}

func newStyles() *Styles {
	dim := lipgloss.AdaptiveColor{Light: "#57606a", Dark: "#8b949e"}
	accent := lipgloss.AdaptiveColor{Light: "#8250df", Dark: "#a371f7"}
	ok := lipgloss.AdaptiveColor{Light: "#1a7f37", Dark: "#2ea043"}
	warn := lipgloss.AdaptiveColor{Light: "#9a6700", Dark: "#bb8009"}
	bad := lipgloss.AdaptiveColor{Light: "#cf222e", Dark: "#ff7b72"}
	info := lipgloss.AdaptiveColor{Light: "#0969da", Dark: "#79c0ff"}

	border := lipgloss.NewStyle().Border(lipgloss.RoundedBorder())
	return &Styles{
		ActiveBorder:   border.BorderForeground(accent),
		InactiveBorder: border.BorderForeground(dim),

		Title:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		Subtitle:  lipgloss.NewStyle().Bold(true),
		Label:     lipgloss.NewStyle().Foreground(dim),
		Value:     lipgloss.NewStyle().Bold(true),
		Highlight: lipgloss.NewStyle().Bold(true).Foreground(accent),
		Muted:     lipgloss.NewStyle().Foreground(dim),

		StatusOK:      lipgloss.NewStyle().Bold(true).Foreground(ok),
		StatusWarn:    lipgloss.NewStyle().Bold(true).Foreground(warn),
		StatusRunning: lipgloss.NewStyle().Bold(true).Foreground(info),

		EventSubmit:   lipgloss.NewStyle().Foreground(info),
		EventDispatch: lipgloss.NewStyle().Foreground(ok),
		EventReject:   lipgloss.NewStyle().Foreground(bad),

		HelpKey:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		HelpText: lipgloss.NewStyle().Foreground(dim),
	}
}

// New creates a TUI model over a queue reader. reader may be nil, in which
// case the model shows whatever was pushed into it, which tests rely on.
func New(reader QueueReader) *Model {
	m := &Model{
		width:      80,
		height:     24,
		reader:     reader,
		labelFor:   task.Label,
		previewLen: 50,
		styles:     newStyles(),
	}
	m.refresh()
	return m
}

// SetLabeler overrides the class label lookup.
func (m *Model) SetLabeler(labelFor func(int) string) {
	if labelFor != nil {
		m.labelFor = labelFor
	}
}

// SetPreviewLength sets the description truncation width for the queue panel.
func (m *Model) SetPreviewLength(n int) {
	if n > 0 {
		m.previewLen = n
	}
}

// SetStatus updates the run loop status line.
func (m *Model) SetStatus(s RunStatus) {
	m.runStatus = s
}

// SetNextRunFunc wires the scheduler's next-run clock into the status panel.
func (m *Model) SetNextRunFunc(fn func() time.Time) {
	m.nextRunFunc = fn
}

// AddEvent appends an entry to the feed, following the tail unless the user
// has scrolled away from it.
func (m *Model) AddEvent(e queue.Event) {
	m.events = append(m.events, EventItem{Time: e.Time, Kind: eventKind(e.Type), Message: e.Message})
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}
	if m.eventScroll >= len(m.events)-2 {
		m.eventScroll = len(m.events) - 1
	}
}

func eventKind(t queue.EventType) string {
	switch t {
	case queue.EventSubmitted:
		return "submit"
	case queue.EventDispatched:
		return "dispatch"
	case queue.EventRejected:
		return "reject"
	}
	return "?"
}

// refresh polls the reader for current queue state.
func (m *Model) refresh() {
	if m.reader == nil {
		return
	}
	m.stats = m.reader.Stats()
	m.next, m.hasNext = m.reader.Peek()
	m.snapshot = m.reader.Snapshot()
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tick(), tea.EnterAltScreen)
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.frame++
		m.refresh()
		return m, tick()

	case EventMsg:
		m.AddEvent(msg.Event)
		m.refresh()
		return m, nil

	case StatusMsg:
		m.runStatus = msg.Status
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

// handleKey processes keyboard input. Large scroll deltas land on the first
// or last row.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	case "tab", "right", "l":
		m.activePanel = (m.activePanel + 1) % panelCount
	case "shift+tab", "left", "h":
		m.activePanel = (m.activePanel + panelCount - 1) % panelCount
	case "up", "k":
		m = m.scroll(-1)
	case "down", "j":
		m = m.scroll(1)
	case "home", "g":
		m = m.scroll(-1 << 20)
	case "end", "G":
		m = m.scroll(1 << 20)
	}
	return m, nil
}

// scroll moves the focused panel's offset by delta rows, clamped to content.
func (m Model) scroll(delta int) Model {
	switch m.activePanel {
	case PanelQueues:
		m.queueScroll = clamp(m.queueScroll+delta, len(m.queueLines()))
	case PanelEvents:
		m.eventScroll = clamp(m.eventScroll+delta, len(m.events))
	}
	return m
}

// clamp keeps a scroll offset inside [0, n).
func clamp(v, n int) int {
	if v >= n {
		v = n - 1
	}
	if v < 0 {
		v = 0
	}
	return v
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	topH := m.height / 2
	bottomH := m.height - topH - 3 // the help bar and borders take three rows
	leftW := m.width / 2
	rightW := m.width - leftW

	status := m.panelBorder(PanelStatus).Width(leftW - 2).Height(topH - 2).
		Render(m.renderStatus(leftW - 2))
	queues := m.panelBorder(PanelQueues).Width(rightW - 2).Height(topH - 2).
		Render(m.renderQueues(topH - 2))
	events := m.panelBorder(PanelEvents).Width(m.width - 2).Height(bottomH - 2).
		Render(m.renderEvents(m.width-2, bottomH-2))

	top := lipgloss.JoinHorizontal(lipgloss.Top, status, queues)
	return lipgloss.JoinVertical(lipgloss.Left, top, events, m.helpBar())
}

func (m Model) panelBorder(p Panel) lipgloss.Style {
	if m.activePanel == p {
		return m.styles.ActiveBorder
	}
	return m.styles.InactiveBorder
}

// renderStatus draws the left-hand panel: run status, queue depth, the next
// task and one gauge per class.
func (m Model) renderStatus(width int) string {
	status := m.runStatus.String()
	style := m.styles.StatusWarn
	switch m.runStatus {
	case StatusWatching:
		style = m.styles.StatusRunning
		status = m.spinner() + " Watching"
	case StatusDraining:
		style = m.styles.StatusOK
	}

	lines := []string{
		m.styles.Title.Render("Triage Queue"),
		"",
		m.styles.Label.Render("Status: ") + style.Render(status),
		"",
		m.styles.Label.Render("Queued: ") + m.styles.Value.Render(strconv.Itoa(m.stats.Total)),
		"",
	}

	next := m.styles.Muted.Render("None")
	if m.hasNext {
		next = m.styles.Highlight.Render(fmt.Sprintf("%s (%s)", m.next.Name, m.labelFor(m.next.Class)))
	}
	lines = append(lines, m.styles.Label.Render("Next: ")+next, "")

	fullest := 0
	for _, c := range m.snapshot {
		if len(c.Tasks) > fullest {
			fullest = len(c.Tasks)
		}
	}
	for _, c := range m.snapshot {
		lines = append(lines,
			m.styles.Label.Render(fmt.Sprintf("%-8s", m.labelFor(c.Class)))+
				m.gauge(len(c.Tasks), fullest, width-16)+
				m.styles.Value.Render(fmt.Sprintf(" %d", len(c.Tasks))))
	}

	if m.nextRunFunc != nil {
		lines = append(lines, "", m.styles.Label.Render("Next drain: ")+m.renderNextRun())
	}

	return strings.Join(lines, "\n")
}

func (m Model) renderNextRun() string {
	at := m.nextRunFunc()
	if at.IsZero() {
		return m.styles.Muted.Render("not scheduled")
	}
	until := time.Until(at)
	if until < 0 {
		until = 0
	}
	return m.styles.Value.Render(fmt.Sprintf("%s (in %s)", at.Format("15:04:05"), formatDuration(until)))
}

// gauge draws count as a bar scaled against the fullest class.
func (m Model) gauge(count, fullest, width int) string {
	if width < 10 {
		width = 10
	}
	filled := 0
	if fullest > 0 {
		filled = width * count / fullest
		if filled == 0 && count > 0 {
			filled = 1
		}
		if filled > width {
			filled = width
		}
	}

	style := m.styles.Muted
	switch {
	case count > 0 && count == fullest:
		style = m.styles.StatusWarn
	case count > 0:
		style = m.styles.StatusOK
	}
	bar := strings.Repeat("#", filled) + strings.Repeat("-", width-filled)
	return "[" + style.Render(bar) + "]"
}

// queueLines flattens the per-class snapshot into one list of display rows.
func (m Model) queueLines() []string {
	var lines []string
	for _, c := range m.snapshot {
		lines = append(lines, m.styles.Subtitle.Render(fmt.Sprintf("%s (%d)", m.labelFor(c.Class), len(c.Tasks))))
		if len(c.Tasks) == 0 {
			lines = append(lines, m.styles.Muted.Render("  (empty)"))
			continue
		}
		for i, tk := range c.Tasks {
			row := fmt.Sprintf("  %d. %s", i+1, tk.Name)
			if tk.Description != "" {
				row += m.styles.Muted.Render(" - " + truncate(tk.Description, m.previewLen))
			}
			lines = append(lines, row)
		}
	}
	return lines
}

// window picks the visible slice of rows for a panel of the given height,
// keeping the view pinned to the end when scrolled past it. The second
// return value is a scroll marker, empty when everything fits.
func window(lines []string, scroll, height int) ([]string, string) {
	visible := height - 4
	if visible < 1 {
		visible = 1
	}
	start := scroll
	if start > len(lines)-visible {
		start = len(lines) - visible
	}
	if start < 0 {
		start = 0
	}
	end := start + visible
	if end > len(lines) {
		end = len(lines)
	}
	marker := ""
	if len(lines) > visible {
		marker = fmt.Sprintf(" [%d/%d]", start+1, len(lines))
	}
	return lines[start:end], marker
}

// renderQueues draws the per-class task listing.
func (m Model) renderQueues(height int) string {
	lines := m.queueLines()
	if len(lines) == 0 {
		return m.styles.Title.Render("Queues") + "\n\n" + m.styles.Muted.Render("No classes configured")
	}
	rows, marker := window(lines, m.queueScroll, height)
	out := m.styles.Title.Render("Queues") + "\n\n" + strings.Join(rows, "\n")
	if marker != "" {
		out += "\n" + m.styles.Muted.Render(marker)
	}
	return out
}

// renderEvents draws the scrolling event feed.
func (m Model) renderEvents(width, height int) string {
	if len(m.events) == 0 {
		return m.styles.Title.Render("Events") + "\n\n" + m.styles.Muted.Render("No events yet")
	}
	lines := make([]string, 0, len(m.events))
	for _, ev := range m.events {
		lines = append(lines, m.eventLine(ev, width))
	}
	rows, marker := window(lines, m.eventScroll, height)
	out := m.styles.Title.Render("Events") + "\n\n" + strings.Join(rows, "\n")
	if marker != "" {
		out += "\n" + m.styles.Muted.Render(marker)
	}
	return out
}

// eventLine renders one feed entry, trimming the message to the panel width.
func (m Model) eventLine(ev EventItem, width int) string {
	style := m.styles.Muted
	switch ev.Kind {
	case "submit":
		style = m.styles.EventSubmit
	case "dispatch":
		style = m.styles.EventDispatch
	case "reject":
		style = m.styles.EventReject
	}
	msg := ev.Message
	if limit := width - 22; limit > 3 && len(msg) > limit {
		msg = msg[:limit-3] + "..."
	}
	return fmt.Sprintf("%s %s %s",
		m.styles.Muted.Render(ev.Time.Format("15:04:05")),
		style.Render(fmt.Sprintf("[%-8s]", ev.Kind)),
		msg)
}

func (m Model) helpBar() string {
	keys := [][2]string{{"tab", "switch panel"}, {"j/k", "scroll"}, {"g/G", "top/bottom"}, {"q", "quit"}}
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = m.styles.HelpKey.Render(k[0]) + " " + m.styles.HelpText.Render(k[1])
	}
	return "  " + strings.Join(parts, "  |  ")
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m Model) spinner() string {
	return spinnerFrames[m.frame%len(spinnerFrames)]
}

// truncate shortens s to n runes with a "..." suffix.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// formatDuration renders a wait like "45s", "12m" or "3h".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return fmt.Sprintf("%dd", int(d.Hours())/24)
}

// RunWithProgram starts the TUI in the background and returns the program so
// callers can push EventMsg and StatusMsg into it.
func (m *Model) RunWithProgram() (*tea.Program, error) {
	p := tea.NewProgram(*m, tea.WithAltScreen())
	go func() { _, _ = p.Run() }()
	return p, nil
}
