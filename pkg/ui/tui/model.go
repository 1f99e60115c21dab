package tui

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"docharvest/pkg/traversal"
)

// EntryStatus is the state of one catalog entry in the view
type EntryStatus int

const (
	EntryActive EntryStatus = iota
	EntryCompleted
	EntryKeptName
	EntrySkipped
)

// EntryItem is one attempted catalog entry
type EntryItem struct {
	Position   int
	Title      string
	File       string
	Reason     string
	Status     EntryStatus
	StartTime  time.Time
	FinishedAt time.Time
}

// Label is the title, or the 1-based position when there is none
func (e *EntryItem) Label() string {
	if e.Title != "" {
		return e.Title
	}
	return fmt.Sprintf("#%d", e.Position+1)
}

// Model is the bubbletea model for a harvest run
type Model struct {
	spinner  spinner.Model
	progress progress.Model

	label   string
	entries map[int]*EntryItem
	order   []int
	current int

	known         int
	cursor        int
	processed     int
	expansions    int
	moreAvailable bool

	completed int
	keptNames int
	skipped   int

	finished   bool
	doneReason traversal.DoneReason
	finalErr   error

	sessionStartTime time.Time

	width          int
	height         int
	showHelp       bool
	logMessages    []LogMessage
	maxLogMessages int

	// onQuit runs once when the user asks to quit
	onQuit func()

	mu sync.RWMutex
}

// LogMessage represents a log entry
type LogMessage struct {
	Time    time.Time
	Level   string
	Message string
	Color   lipgloss.Color
}

// NewModel creates a model for a run over the catalog named label
func NewModel(label string) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(neonCyan)

	p := progress.New(progress.WithDefaultGradient())
	p.Width = 40

	return &Model{
		spinner:          s,
		progress:         p,
		label:            label,
		entries:          make(map[int]*EntryItem),
		current:          -1,
		moreAvailable:    true,
		sessionStartTime: time.Now(),
		maxLogMessages:   50,
	}
}

// Init starts the spinner and the refresh tick
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tickCmd())
}

// SetSnapshot records the size of the catalog the run starts from
func (m *Model) SetSnapshot(size, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.known = size
	m.cursor = cursor
}

// StartEntry marks position as the entry being worked on
func (m *Model) StartEntry(position int, title string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[position]; !ok {
		m.order = append(m.order, position)
	}
	m.entries[position] = &EntryItem{
		Position:  position,
		Title:     title,
		Status:    EntryActive,
		StartTime: time.Now(),
	}
	m.current = position
}

// CompleteEntry records a settled download
func (m *Model) CompleteEntry(file traversal.DownloadedFile, cursor, processed int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.entry(file.Position, file.Title)
	item.File = file.Final
	item.Status = EntryCompleted
	item.FinishedAt = time.Now()
	if file.RenameFailed {
		item.Status = EntryKeptName
		item.Reason = file.RenameError
		m.keptNames++
	}

	m.completed++
	m.cursor = cursor
	m.processed = processed
	m.current = -1
}

// SkipEntry records an abandoned entry
func (m *Model) SkipEntry(entry traversal.SkippedEntry, cursor int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item := m.entry(entry.Position, entry.Title)
	item.Status = EntrySkipped
	item.Reason = fmt.Sprintf("%s: %s", entry.Reason, entry.Message)
	item.FinishedAt = time.Now()

	m.skipped++
	m.cursor = cursor
	m.current = -1
}

// SetExpanded records the outcome of an expansion
func (m *Model) SetExpanded(size int, more bool, expansions int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.known = size
	m.moreAvailable = more
	m.expansions = expansions
}

// Finish records the end of the run
func (m *Model) Finish(reason traversal.DoneReason, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.finished = true
	m.doneReason = reason
	m.finalErr = err
	m.current = -1
}

// entry returns the item for position, creating it if the start was missed.
// Callers hold the lock.
func (m *Model) entry(position int, title string) *EntryItem {
	item, ok := m.entries[position]
	if !ok {
		item = &EntryItem{Position: position, Title: title, StartTime: time.Now()}
		m.entries[position] = item
		m.order = append(m.order, position)
	}
	return item
}

// AddLogMessage adds a log message
func (m *Model) AddLogMessage(level, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	color := dimWhite
	switch level {
	case "ERROR":
		color = lipgloss.Color("#FF0000")
	case "WARN":
		color = neonOrange
	case "SUCCESS":
		color = neonGreen
	case "INFO":
		color = neonCyan
	}

	m.logMessages = append(m.logMessages, LogMessage{
		Time:    time.Now(),
		Level:   level,
		Message: message,
		Color:   color,
	})

	if len(m.logMessages) > m.maxLogMessages {
		m.logMessages = m.logMessages[len(m.logMessages)-m.maxLogMessages:]
	}
}

// Stats is a consistent copy of the counters shown by the view
type Stats struct {
	Known         int
	Cursor        int
	Processed     int
	Expansions    int
	MoreAvailable bool
	Completed     int
	KeptNames     int
	Skipped       int
	Finished      bool
	DoneReason    traversal.DoneReason
	Err           error
	Elapsed       time.Duration
	Current       *EntryItem
}

// GetStats returns the current counters
func (m *Model) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		Known:         m.known,
		Cursor:        m.cursor,
		Processed:     m.processed,
		Expansions:    m.expansions,
		MoreAvailable: m.moreAvailable,
		Completed:     m.completed,
		KeptNames:     m.keptNames,
		Skipped:       m.skipped,
		Finished:      m.finished,
		DoneReason:    m.doneReason,
		Err:           m.finalErr,
		Elapsed:       time.Since(m.sessionStartTime),
	}
	if item, ok := m.entries[m.current]; ok && m.current >= 0 {
		cp := *item
		s.Current = &cp
	}
	return s
}

// GetRecentEntries returns up to n finished entries, most recent last
func (m *Model) GetRecentEntries(n int) []EntryItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []EntryItem
	for i := len(m.order) - 1; i >= 0 && len(out) < n; i-- {
		item := m.entries[m.order[i]]
		if item.Status == EntryActive {
			continue
		}
		out = append(out, *item)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Ratio is the share of known entries already attempted
func (s Stats) Ratio() float64 {
	if s.Known == 0 {
		return 0
	}
	r := float64(s.Cursor) / float64(s.Known)
	if r > 1 {
		r = 1
	}
	return r
}

// ETA extrapolates the time left for the known entries from the pace so far
func (s Stats) ETA() time.Duration {
	if s.Cursor == 0 || s.Known <= s.Cursor {
		return 0
	}
	per := s.Elapsed / time.Duration(s.Cursor)
	return per * time.Duration(s.Known-s.Cursor)
}
