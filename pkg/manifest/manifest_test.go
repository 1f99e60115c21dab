package manifest

import (
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docharvest/pkg/config"
	"docharvest/pkg/traversal"
)

func sampleState() *traversal.RunState {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	state := traversal.NewRunState()
	state.StartedAt = start
	state.FinishedAt = start.Add(90 * time.Second)
	state.Cursor = 3
	state.Processed = 2
	state.DoneReason = traversal.DoneExhausted
	state.Completed = []traversal.DownloadedFile{
		{Position: 0, Title: "Alpha Corp", Detected: "001.pdf", Extension: ".pdf", Final: "Alpha_Corp_001.pdf"},
		{Position: 2, Detected: "003.pdf", Extension: ".pdf", Final: "003.pdf", RenameFailed: true, RenameError: "exists"},
	}
	state.Skipped = []traversal.SkippedEntry{{Position: 1, Reason: "download_timeout", Message: "no file settled"}}
	return state
}

func TestBuild(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Catalog.URL = "https://catalog.example.com"

	m := Build(sampleState(), cfg, nil)

	assert.Equal(t, "https://catalog.example.com", m.CatalogURL)
	assert.Equal(t, "1m30s", m.Duration)
	assert.Equal(t, "exhausted", m.DoneReason)
	assert.Equal(t, 1, m.Renamed)
	assert.Equal(t, 20, m.Settings.ExpansionCadence)
	assert.Equal(t, "1s", m.Settings.QuiescenceWindow)
	assert.Empty(t, m.Error)
	assert.Len(t, m.Files, 2)
}

func TestBuild_RecordsError(t *testing.T) {
	m := Build(traversal.NewRunState(), config.DefaultConfig(), errors.New("catalog gone"))
	assert.Equal(t, "catalog gone", m.Error)
	assert.NotNil(t, m.Files)
	assert.NotNil(t, m.Skipped)
}

func TestSaveLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/dl", 0755))
	m := Build(sampleState(), config.DefaultConfig(), nil)

	require.NoError(t, m.Save(fs, "/dl/manifest.json"))
	exists, _ := afero.Exists(fs, "/dl/manifest.json.tmp")
	assert.False(t, exists)

	loaded, err := Load(fs, "/dl/manifest.json")
	require.NoError(t, err)
	assert.Equal(t, m.RunID, loaded.RunID)

	f, ok := loaded.FileFor(2)
	require.True(t, ok)
	assert.True(t, f.RenameFailed)
	_, ok = loaded.FileFor(1)
	assert.False(t, ok)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nope.json")
	assert.Error(t, err)
}
