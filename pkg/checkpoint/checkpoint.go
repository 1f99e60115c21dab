package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"

	"docharvest/pkg/logger"
	"docharvest/pkg/traversal"
)

// Version of the checkpoint file layout
const Version = 1

// Checkpoint is the persisted state of an interrupted run
type Checkpoint struct {
	CatalogURL string             `json:"catalog_url"`
	Key        string             `json:"key"`
	State      traversal.RunState `json:"state"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
	Version    int                `json:"version"`
}

// Manager handles checkpoint operations for one catalog URL
type Manager struct {
	fs             afero.Fs
	catalogURL     string
	checkpointPath string
	createdAt      time.Time
	clock          clockwork.Clock
	logger         logger.Logger
}

// Key derives a stable file key from the catalog URL
func Key(catalogURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(catalogURL)).String()
}

// NewManager creates a manager storing its file under the user data directory
func NewManager(catalogURL string) (*Manager, error) {
	dataDir, err := getDataDirectory()
	if err != nil {
		return nil, fmt.Errorf("failed to get data directory: %w", err)
	}
	return NewManagerIn(afero.NewOsFs(), filepath.Join(dataDir, "checkpoints"), catalogURL)
}

// NewManagerIn creates a manager storing its file in dir on fs
func NewManagerIn(fs afero.Fs, dir, catalogURL string) (*Manager, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create checkpoints directory: %w", err)
	}

	return &Manager{
		fs:             fs,
		catalogURL:     catalogURL,
		checkpointPath: filepath.Join(dir, Key(catalogURL)+".checkpoint.json"),
		clock:          clockwork.NewRealClock(),
		logger:         logger.GetLogger().WithField("component", "checkpoint"),
	}, nil
}

// SetLogger replaces the manager's logger
func (m *Manager) SetLogger(l logger.Logger) {
	m.logger = l
}

// SetClock replaces the clock used to stamp checkpoints
func (m *Manager) SetClock(c clockwork.Clock) {
	m.clock = c
}

// Path returns the checkpoint file location
func (m *Manager) Path() string {
	return m.checkpointPath
}

// Load reads the checkpoint. It returns nil, nil when none exists.
func (m *Manager) Load() (*Checkpoint, error) {
	data, err := afero.ReadFile(m.fs, m.checkpointPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read checkpoint file: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("failed to decode checkpoint: %w", err)
	}
	if cp.Version != Version {
		return nil, fmt.Errorf("unsupported checkpoint version %d", cp.Version)
	}
	if cp.CatalogURL != m.catalogURL {
		return nil, fmt.Errorf("checkpoint belongs to %s, not %s", cp.CatalogURL, m.catalogURL)
	}
	m.createdAt = cp.CreatedAt

	m.logger.InfoWithFields("Checkpoint loaded", map[string]interface{}{
		"run_id":     cp.State.RunID,
		"cursor":     cp.State.Cursor,
		"processed":  cp.State.Processed,
		"updated_at": cp.UpdatedAt,
	})

	return &cp, nil
}

// Save writes state to disk atomically. It satisfies traversal.Checkpointer.
func (m *Manager) Save(state *traversal.RunState) error {
	now := m.clock.Now()
	if m.createdAt.IsZero() {
		m.createdAt = now
	}

	cp := Checkpoint{
		CatalogURL: m.catalogURL,
		Key:        Key(m.catalogURL),
		State:      *state,
		CreatedAt:  m.createdAt,
		UpdatedAt:  now,
		Version:    Version,
	}

	data, err := json.MarshalIndent(cp, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint: %w", err)
	}

	tempPath := m.checkpointPath + ".tmp"
	file, err := m.fs.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}

	// Ensure data is written to disk
	if err := file.Sync(); err != nil {
		file.Close()
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}

	if err := file.Close(); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := m.fs.Rename(tempPath, m.checkpointPath); err != nil {
		m.fs.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}

	m.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"cursor":    state.Cursor,
		"processed": state.Processed,
	})

	return nil
}

// Delete removes the checkpoint file
func (m *Manager) Delete() error {
	if err := m.fs.Remove(m.checkpointPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete checkpoint: %w", err)
	}
	m.createdAt = time.Time{}

	m.logger.Info("Checkpoint deleted")
	return nil
}

// Exists checks if a checkpoint file exists
func (m *Manager) Exists() bool {
	_, err := m.fs.Stat(m.checkpointPath)
	return err == nil
}

// Info returns a summary of the checkpoint, or nil when none exists
func (m *Manager) Info() (map[string]interface{}, error) {
	cp, err := m.Load()
	if err != nil || cp == nil {
		return nil, err
	}

	return map[string]interface{}{
		"run_id":     cp.State.RunID,
		"cursor":     cp.State.Cursor,
		"processed":  cp.State.Processed,
		"skipped":    len(cp.State.Skipped),
		"created_at": cp.CreatedAt,
		"updated_at": cp.UpdatedAt,
		"age":        m.clock.Since(cp.UpdatedAt),
	}, nil
}

// getDataDirectory returns the appropriate data directory for the current OS
func getDataDirectory() (string, error) {
	var dataDir string

	switch runtime.GOOS {
	case "linux":
		if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
			dataDir = filepath.Join(xdgDataHome, "docharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			dataDir = filepath.Join(home, ".local", "share", "docharvest")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		dataDir = filepath.Join(home, "Library", "Application Support", "docharvest")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		dataDir = filepath.Join(appData, "docharvest")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return dataDir, nil
}
