// Package manifest writes the audit trail of a run next to the documents it
// downloaded.
package manifest

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"docharvest/pkg/config"
	"docharvest/pkg/traversal"
)

// Settings are the tunables the run used
type Settings struct {
	Source           string `json:"source"`
	Detector         string `json:"detector"`
	Timeout          string `json:"timeout"`
	QuiescenceWindow string `json:"quiescence_window"`
	ExpansionCadence int    `json:"expansion_cadence"`
}

// Manifest is the audit trail of one run
type Manifest struct {
	RunID      string    `json:"run_id"`
	CatalogURL string    `json:"catalog_url"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Duration   string    `json:"duration"`
	DoneReason string    `json:"done_reason"`
	Error      string    `json:"error,omitempty"`

	Cursor     int `json:"cursor"`
	Processed  int `json:"processed"`
	Renamed    int `json:"renamed"`
	Expansions int `json:"expansions"`

	Settings Settings                   `json:"settings"`
	Files    []traversal.DownloadedFile `json:"files"`
	Skipped  []traversal.SkippedEntry   `json:"skipped"`
}

// Build assembles the manifest of a finished or aborted run
func Build(state *traversal.RunState, cfg *config.Config, runErr error) *Manifest {
	m := &Manifest{
		RunID:      state.RunID,
		CatalogURL: cfg.Catalog.URL,
		StartedAt:  state.StartedAt,
		FinishedAt: state.FinishedAt,
		Duration:   state.FinishedAt.Sub(state.StartedAt).Round(time.Millisecond).String(),
		DoneReason: string(state.DoneReason),
		Cursor:     state.Cursor,
		Processed:  state.Processed,
		Renamed:    state.Renamed(),
		Expansions: state.Expansions,
		Settings: Settings{
			Source:           cfg.Catalog.Source,
			Detector:         cfg.Download.Detector,
			Timeout:          cfg.Download.Timeout.String(),
			QuiescenceWindow: cfg.Download.QuiescenceWindow.String(),
			ExpansionCadence: cfg.Traversal.ExpansionCadence,
		},
		Files:   state.Completed,
		Skipped: state.Skipped,
	}
	if runErr != nil {
		m.Error = runErr.Error()
	}
	if m.Files == nil {
		m.Files = []traversal.DownloadedFile{}
	}
	if m.Skipped == nil {
		m.Skipped = []traversal.SkippedEntry{}
	}
	return m
}

// Save writes the manifest as indented JSON, replacing any previous one
func (m *Manifest) Save(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}

	tempPath := path + ".tmp"
	if err := afero.WriteFile(fs, tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest file: %w", err)
	}
	if err := fs.Rename(tempPath, path); err != nil {
		fs.Remove(tempPath)
		return fmt.Errorf("failed to replace manifest file: %w", err)
	}
	return nil
}

// Load reads a manifest
func Load(fs afero.Fs, path string) (*Manifest, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest file: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal manifest: %w", err)
	}
	return &m, nil
}

// FileFor returns the record of the document downloaded for position
func (m *Manifest) FileFor(position int) (traversal.DownloadedFile, bool) {
	for _, f := range m.Files {
		if f.Position == position {
			return f, true
		}
	}
	return traversal.DownloadedFile{}, false
}
