// Package tui is the full-screen progress view of a harvest run. TUI is a
// traversal.Observer that forwards engine notifications to a bubbletea
// program.
package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"docharvest/pkg/traversal"
)

// TUI represents the terminal user interface
type TUI struct {
	program *tea.Program
	model   *Model
}

var _ traversal.Observer = (*TUI)(nil)

// NewTUI creates a TUI for a run over label. onQuit is called when the user
// quits, typically to cancel the run.
func NewTUI(label string, onQuit func(), opts ...tea.ProgramOption) *TUI {
	model := NewModel(label)
	model.onQuit = onQuit

	opts = append([]tea.ProgramOption{tea.WithAltScreen()}, opts...)
	return &TUI{
		program: tea.NewProgram(model, opts...),
		model:   model,
	}
}

// Start runs the program until the user quits or Stop is called
func (t *TUI) Start() error {
	_, err := t.program.Run()
	return err
}

// Stop stops the TUI gracefully
func (t *TUI) Stop() {
	t.program.Quit()
}

// Send sends a message to the TUI
func (t *TUI) Send(msg tea.Msg) {
	if t.program != nil {
		t.program.Send(msg)
	}
}

// Model returns the model backing the view
func (t *TUI) Model() *Model {
	return t.model
}

func (t *TUI) SnapshotLoaded(size int, state *traversal.RunState) {
	t.Send(SnapshotMsg{Size: size, Cursor: state.Cursor})
}

func (t *TUI) EntryStarted(position int, title string, state *traversal.RunState) {
	t.Send(EntryStartedMsg{Position: position, Title: title})
}

func (t *TUI) EntryCompleted(file traversal.DownloadedFile, state *traversal.RunState) {
	t.Send(EntryCompletedMsg{File: file, Cursor: state.Cursor, Processed: state.Processed})
}

func (t *TUI) EntrySkipped(entry traversal.SkippedEntry, state *traversal.RunState) {
	t.Send(EntrySkippedMsg{Entry: entry, Cursor: state.Cursor})
}

func (t *TUI) Expanded(size int, more bool, state *traversal.RunState) {
	t.Send(ExpandedMsg{Size: size, MoreAvailable: more, Expansions: state.Expansions})
}

func (t *TUI) Finished(state *traversal.RunState, err error) {
	t.Send(FinishedMsg{Reason: state.DoneReason, Err: err})
}

// Log sends a log message to the TUI
func (t *TUI) Log(level, format string, args ...interface{}) {
	t.Send(LogMsg{Level: level, Message: fmt.Sprintf(format, args...)})
}

// LogInfo logs an info message
func (t *TUI) LogInfo(format string, args ...interface{}) {
	t.Log("INFO", format, args...)
}

// LogWarning logs a warning message
func (t *TUI) LogWarning(format string, args ...interface{}) {
	t.Log("WARN", format, args...)
}

// LogError logs an error message
func (t *TUI) LogError(format string, args ...interface{}) {
	t.Log("ERROR", format, args...)
}
