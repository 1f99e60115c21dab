package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"docharvest/pkg/traversal"
)

// Message types for the TUI. Each carries copies of the run counters since
// the RunState keeps changing after the message is sent.

// SnapshotMsg is sent once the initial catalog snapshot is loaded
type SnapshotMsg struct {
	Size   int
	Cursor int
}

// EntryStartedMsg is sent when an entry is picked up
type EntryStartedMsg struct {
	Position int
	Title    string
}

// EntryCompletedMsg is sent when an entry's download settled
type EntryCompletedMsg struct {
	File      traversal.DownloadedFile
	Cursor    int
	Processed int
}

// EntrySkippedMsg is sent when an entry is abandoned
type EntrySkippedMsg struct {
	Entry  traversal.SkippedEntry
	Cursor int
}

// ExpandedMsg is sent after every expansion attempt
type ExpandedMsg struct {
	Size          int
	MoreAvailable bool
	Expansions    int
}

// FinishedMsg is sent when the run ends
type FinishedMsg struct {
	Reason traversal.DoneReason
	Err    error
}

// LogMsg is sent to add a log message
type LogMsg struct {
	Level   string
	Message string
}

// TickMsg is sent periodically to update the UI
type TickMsg time.Time

// Update handles all messages and updates the model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.progress.Width = max(msg.Width/2-12, 10)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.progress.Update(msg)
		if p, ok := pm.(progress.Model); ok {
			m.progress = p
		}
		return m, cmd

	case TickMsg:
		return m, tickCmd()

	case SnapshotMsg:
		m.SetSnapshot(msg.Size, msg.Cursor)
		m.AddLogMessage("INFO", fmt.Sprintf("Catalog loaded: %d entries", msg.Size))
		return m, nil

	case EntryStartedMsg:
		m.StartEntry(msg.Position, msg.Title)
		return m, nil

	case EntryCompletedMsg:
		m.CompleteEntry(msg.File, msg.Cursor, msg.Processed)
		if msg.File.RenameFailed {
			m.AddLogMessage("WARN", "Kept downloaded name: "+msg.File.Detected)
		} else {
			m.AddLogMessage("SUCCESS", "Saved "+msg.File.Final)
		}
		return m, nil

	case EntrySkippedMsg:
		m.SkipEntry(msg.Entry, msg.Cursor)
		m.AddLogMessage("ERROR", fmt.Sprintf("Skipped #%d (%s)", msg.Entry.Position+1, msg.Entry.Reason))
		return m, nil

	case ExpandedMsg:
		m.SetExpanded(msg.Size, msg.MoreAvailable, msg.Expansions)
		if msg.MoreAvailable {
			m.AddLogMessage("INFO", fmt.Sprintf("Catalog expanded to %d entries", msg.Size))
		} else {
			m.AddLogMessage("WARN", "No more results")
		}
		return m, nil

	case FinishedMsg:
		m.Finish(msg.Reason, msg.Err)
		if msg.Err != nil {
			m.AddLogMessage("ERROR", "Run ended: "+msg.Err.Error())
		} else {
			m.AddLogMessage("SUCCESS", "Run finished: "+string(msg.Reason))
		}
		return m, nil

	case LogMsg:
		m.AddLogMessage(msg.Level, msg.Message)
		return m, nil
	}

	return m, nil
}

// handleKeyPress handles keyboard input
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "Q", "ctrl+c":
		if m.onQuit != nil {
			m.onQuit()
			m.onQuit = nil
		}
		return m, tea.Quit

	case "?":
		m.showHelp = !m.showHelp
		return m, nil

	case "ctrl+l":
		m.mu.Lock()
		m.logMessages = []LogMessage{}
		m.mu.Unlock()
		return m, nil
	}

	return m, nil
}

// tickCmd returns a command that sends a tick message
func tickCmd() tea.Cmd {
	return tea.Tick(time.Millisecond*200, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
