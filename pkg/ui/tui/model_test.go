package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	errs "docharvest/pkg/errors"
	"docharvest/pkg/traversal"
)

func TestModel(t *testing.T) {
	model := NewModel("amf")

	model.SetSnapshot(3, 0)
	model.StartEntry(0, "Alpha")

	stats := model.GetStats()
	if stats.Current == nil || stats.Current.Title != "Alpha" {
		t.Fatalf("Expected Alpha to be the current entry, got %+v", stats.Current)
	}

	model.CompleteEntry(traversal.DownloadedFile{Position: 0, Title: "Alpha", Detected: "a.pdf", Final: "Alpha_a.pdf"}, 1, 1)
	model.StartEntry(1, "")
	model.SkipEntry(traversal.SkippedEntry{Position: 1, Reason: errs.ErrorTypeDownloadTimeout, Message: "timed out"}, 2)
	model.StartEntry(2, "Gamma")
	model.CompleteEntry(traversal.DownloadedFile{Position: 2, Title: "Gamma", Detected: "g.pdf", Final: "g.pdf", RenameFailed: true, RenameError: "exists"}, 3, 2)

	stats = model.GetStats()
	if stats.Completed != 2 {
		t.Errorf("Expected 2 completed, got %d", stats.Completed)
	}
	if stats.KeptNames != 1 {
		t.Errorf("Expected 1 kept name, got %d", stats.KeptNames)
	}
	if stats.Skipped != 1 {
		t.Errorf("Expected 1 skipped, got %d", stats.Skipped)
	}
	if stats.Cursor != 3 || stats.Processed != 2 {
		t.Errorf("Expected cursor 3 and processed 2, got %d and %d", stats.Cursor, stats.Processed)
	}
	if stats.Current != nil {
		t.Errorf("Expected no current entry, got %+v", stats.Current)
	}
	if stats.Ratio() != 1 {
		t.Errorf("Expected ratio 1, got %f", stats.Ratio())
	}

	recent := model.GetRecentEntries(2)
	if len(recent) != 2 {
		t.Fatalf("Expected 2 recent entries, got %d", len(recent))
	}
	if recent[0].Position != 1 || recent[1].Position != 2 {
		t.Errorf("Expected positions 1 then 2, got %d then %d", recent[0].Position, recent[1].Position)
	}
	if recent[0].Label() != "#2" {
		t.Errorf("Expected untitled entry to be labelled #2, got %q", recent[0].Label())
	}
	if recent[1].Status != EntryKeptName {
		t.Errorf("Expected kept name status, got %v", recent[1].Status)
	}

	model.SetExpanded(10, false, 1)
	stats = model.GetStats()
	if stats.Known != 10 || stats.MoreAvailable || stats.Expansions != 1 {
		t.Errorf("Unexpected expansion stats: %+v", stats)
	}

	model.Finish(traversal.DoneExpansionExhausted, nil)
	if !model.GetStats().Finished {
		t.Error("Expected the model to be finished")
	}
}

func TestModelLogRetention(t *testing.T) {
	model := NewModel("amf")
	for i := 0; i < 60; i++ {
		model.AddLogMessage("INFO", "message")
	}
	if len(model.logMessages) != 50 {
		t.Errorf("Expected 50 log messages, got %d", len(model.logMessages))
	}
}

func TestUpdateHandlesRunMessages(t *testing.T) {
	model := NewModel("amf")

	model.Update(SnapshotMsg{Size: 5})
	model.Update(EntryStartedMsg{Position: 0, Title: "Alpha"})
	model.Update(EntryCompletedMsg{File: traversal.DownloadedFile{Position: 0, Final: "Alpha_a.pdf"}, Cursor: 1, Processed: 1})
	model.Update(EntrySkippedMsg{Entry: traversal.SkippedEntry{Position: 1, Reason: errs.ErrorTypeTrigger}, Cursor: 2})
	model.Update(ExpandedMsg{Size: 8, MoreAvailable: true, Expansions: 1})
	model.Update(FinishedMsg{Reason: traversal.DoneAborted, Err: errors.New("catalog gone")})

	stats := model.GetStats()
	if stats.Known != 8 || stats.Cursor != 2 || stats.Completed != 1 || stats.Skipped != 1 {
		t.Errorf("Unexpected stats after messages: %+v", stats)
	}
	if stats.DoneReason != traversal.DoneAborted || stats.Err == nil {
		t.Errorf("Expected aborted run with error, got %v / %v", stats.DoneReason, stats.Err)
	}

	var levels []string
	for _, m := range model.logMessages {
		levels = append(levels, m.Level)
	}
	if got := strings.Join(levels, ","); got != "INFO,SUCCESS,ERROR,INFO,ERROR" {
		t.Errorf("Unexpected log levels %s", got)
	}
}

func TestQuitKeyCallsOnQuit(t *testing.T) {
	model := NewModel("amf")
	calls := 0
	model.onQuit = func() { calls++ }

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Fatal("Expected a quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("Expected tea.QuitMsg")
	}
	model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if calls != 1 {
		t.Errorf("Expected onQuit to run once, got %d", calls)
	}
}

func TestViewRenders(t *testing.T) {
	model := NewModel("amf")
	if got := model.View(); got != "Initializing..." {
		t.Errorf("Expected placeholder before the first resize, got %q", got)
	}

	model.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
	model.Update(SnapshotMsg{Size: 2})
	model.Update(EntryStartedMsg{Position: 0, Title: "Alpha"})

	view := model.View()
	for _, want := range []string{"RUN STATS", "CURRENT ENTRY", "CATALOG", "Alpha", "0/2"} {
		if !strings.Contains(view, want) {
			t.Errorf("Expected view to contain %q", want)
		}
	}
}

func TestStatsETA(t *testing.T) {
	s := Stats{Known: 10, Cursor: 2, Elapsed: 20 * time.Second}
	if got := s.ETA(); got != 80*time.Second {
		t.Errorf("Expected 80s, got %v", got)
	}
	if got := (Stats{Known: 10}).ETA(); got != 0 {
		t.Errorf("Expected 0 without progress, got %v", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "00:00"},
		{65 * time.Second, "01:05"},
		{time.Hour + 2*time.Minute + 3*time.Second, "01:02:03"},
		{-time.Second, "00:00"},
	}

	for _, test := range tests {
		if got := formatDuration(test.d); got != test.expected {
			t.Errorf("formatDuration(%v) = %s, expected %s", test.d, got, test.expected)
		}
	}
}
