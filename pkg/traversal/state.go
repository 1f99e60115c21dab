package traversal

import (
	"time"

	"github.com/google/uuid"

	errs "docharvest/pkg/errors"
)

// DoneReason says why a run stopped.
type DoneReason string

const (
	// DoneExhausted means every known position was attempted and no further
	// expansion was tried.
	DoneExhausted DoneReason = "exhausted"
	// DoneExpansionExhausted means the catalog reported no more content.
	DoneExpansionExhausted DoneReason = "expansion_exhausted"
	// DoneCancelled means the context was cancelled mid run.
	DoneCancelled DoneReason = "cancelled"
	// DoneAborted means the catalog surface could not supply a snapshot.
	DoneAborted DoneReason = "aborted"
)

// DownloadedFile records one settled download.
type DownloadedFile struct {
	Position  int    `json:"position"`
	Title     string `json:"title,omitempty"`
	Detected  string `json:"detected"`
	Extension string `json:"extension"`
	// Final is the name the file ended up under. It equals Detected when the
	// rename failed.
	Final        string    `json:"final"`
	RenameFailed bool      `json:"rename_failed,omitempty"`
	RenameError  string    `json:"rename_error,omitempty"`
	CompletedAt  time.Time `json:"completed_at"`
}

// SkippedEntry records an entry that was abandoned.
type SkippedEntry struct {
	Position  int            `json:"position"`
	Title     string         `json:"title,omitempty"`
	Reason    errs.ErrorType `json:"reason"`
	Message   string         `json:"message"`
	SkippedAt time.Time      `json:"skipped_at"`
}

// RunState is everything a run accumulates. It is passed through the loop,
// returned at the end and persisted by checkpoints.
type RunState struct {
	RunID string `json:"run_id"`
	// Cursor counts positions attempted, whether advanced or skipped.
	Cursor int `json:"cursor"`
	// Processed counts advanced positions only and drives the expansion
	// cadence.
	Processed  int              `json:"processed"`
	Expansions int              `json:"expansions"`
	Completed  []DownloadedFile `json:"completed"`
	Skipped    []SkippedEntry   `json:"skipped"`
	DoneReason DoneReason       `json:"done_reason,omitempty"`
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at,omitempty"`
}

// NewRunState returns an empty state with a fresh run ID.
func NewRunState() *RunState {
	return &RunState{
		RunID:     uuid.NewString(),
		Completed: []DownloadedFile{},
		Skipped:   []SkippedEntry{},
	}
}

// Renamed counts completed files that reached their composed name.
func (s *RunState) Renamed() int {
	n := 0
	for _, f := range s.Completed {
		if !f.RenameFailed {
			n++
		}
	}
	return n
}

// Done reports whether the run finished the catalog. A cancelled or aborted
// run is not done and can be resumed.
func (s *RunState) Done() bool {
	return s.DoneReason == DoneExhausted || s.DoneReason == DoneExpansionExhausted
}
