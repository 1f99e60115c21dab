package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"docharvest/pkg/traversal"
)

// ProgressDisplay renders a single updating progress line for a run. It is a
// traversal.Observer.
type ProgressDisplay struct {
	mu         sync.Mutex
	out        io.Writer
	clock      clockwork.Clock
	label      string
	known      int
	done       int
	skipped    int
	keptNames  int
	current    string
	startTime  time.Time
	isDebug    bool
}

var _ traversal.Observer = (*ProgressDisplay)(nil)

// NewProgressDisplay creates a display writing to stdout
func NewProgressDisplay(label string, debug bool) *ProgressDisplay {
	return NewProgressDisplayTo(os.Stdout, clockwork.NewRealClock(), label, debug)
}

// NewProgressDisplayTo creates a display writing to out
func NewProgressDisplayTo(out io.Writer, clock clockwork.Clock, label string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		out:       out,
		clock:     clock,
		label:     label,
		startTime: clock.Now(),
		isDebug:   debug,
	}
}

func (p *ProgressDisplay) SnapshotLoaded(size int, state *traversal.RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.known = size
	p.done = len(state.Completed)
	p.skipped = len(state.Skipped)
	p.printProgress(state)
}

func (p *ProgressDisplay) EntryStarted(position int, title string, state *traversal.RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if title == "" {
		title = fmt.Sprintf("#%d", position+1)
	}
	p.current = title
	if !p.isDebug {
		p.printProgress(state)
	}
}

func (p *ProgressDisplay) EntryCompleted(file traversal.DownloadedFile, state *traversal.RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.done++
	if file.RenameFailed {
		p.keptNames++
	}
	p.current = ""

	if p.isDebug {
		mark := Green("✓")
		if file.RenameFailed {
			mark = Yellow("✓")
		}
		fmt.Fprintf(p.out, "\n%s #%d %s • %s\n", mark, file.Position+1, file.Final, Dim(file.Detected))
		return
	}
	p.printProgress(state)
}

func (p *ProgressDisplay) EntrySkipped(entry traversal.SkippedEntry, state *traversal.RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	p.current = ""

	if p.isDebug {
		fmt.Fprintf(p.out, "\n%s #%d skipped (%s): %s\n", Red("✗"), entry.Position+1, entry.Reason, entry.Message)
		return
	}
	p.printProgress(state)
}

func (p *ProgressDisplay) Expanded(size int, more bool, state *traversal.RunState) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.known = size
	if p.isDebug {
		if more {
			fmt.Fprintf(p.out, "\n%s Catalog expanded to %d entries\n", Magenta("→"), size)
		} else {
			fmt.Fprintf(p.out, "\n%s No more results\n", Magenta("→"))
		}
	}
}

// Finished prints the closing lines for the run
func (p *ProgressDisplay) Finished(state *traversal.RunState, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.clock.Since(p.startTime)
	if err != nil && state.DoneReason == traversal.DoneAborted {
		fmt.Fprintf(p.out, "\n\n%s Run aborted after %d documents: %v\n", Red("✗"), p.done, err)
		return
	}

	fmt.Fprintf(p.out, "\n\n%s Harvested %d documents from %s\n", Green("✓"), p.done, p.label)
	fmt.Fprintf(p.out, "  %s %s (%.1f docs/min) • %s\n",
		Dim("•"),
		formatDuration(elapsed),
		ratePerMinute(p.done, elapsed),
		state.DoneReason,
	)
	if p.skipped > 0 {
		fmt.Fprintf(p.out, "  %s %d entries skipped\n", Dim("•"), p.skipped)
	}
	if p.keptNames > 0 {
		fmt.Fprintf(p.out, "  %s %d files kept their downloaded name\n", Dim("•"), p.keptNames)
	}
}

func (p *ProgressDisplay) printProgress(state *traversal.RunState) {
	elapsed := p.clock.Since(p.startTime)

	line := fmt.Sprintf("%s [%s] %d/%d • %.1f/min",
		Cyan(truncate(p.label, 30)),
		renderBar(state.Cursor, p.known),
		state.Cursor,
		p.known,
		ratePerMinute(p.done, elapsed),
	)
	if p.current != "" {
		line += " • " + truncate(p.current, 40)
	}
	if p.skipped > 0 {
		line += " • " + Red(fmt.Sprintf("%d skipped", p.skipped))
	}

	fmt.Fprintf(p.out, "\r%s\r%s", strings.Repeat(" ", 120), line)
}
