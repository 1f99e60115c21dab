package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	errs "docharvest/pkg/errors"
)

// Manager owns the download directory
type Manager struct {
	fs  afero.Fs
	dir string
	mu  sync.Mutex
}

// NewManager creates a storage manager for dir on fs. Nothing is touched on
// disk until Prepare is called.
func NewManager(fs afero.Fs, dir string) *Manager {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Manager{fs: fs, dir: dir}
}

// Prepare creates the download directory and, when clear is set, removes
// everything already in it so the next file to appear belongs to this run.
func (m *Manager) Prepare(clear bool) error {
	if err := m.fs.MkdirAll(m.dir, 0755); err != nil {
		return fmt.Errorf("failed to create download directory: %w", err)
	}
	if !clear {
		return nil
	}

	entries, err := afero.ReadDir(m.fs, m.dir)
	if err != nil {
		return fmt.Errorf("failed to read download directory: %w", err)
	}
	for _, entry := range entries {
		if err := m.fs.RemoveAll(filepath.Join(m.dir, entry.Name())); err != nil {
			return fmt.Errorf("failed to clear %s: %w", entry.Name(), err)
		}
	}
	return nil
}

// Rename moves from to to inside the download directory. An existing target
// is never overwritten.
func (m *Manager) Rename(from, to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	src := m.Path(from)
	dst := m.Path(to)
	if src == dst {
		return nil
	}

	if _, err := m.fs.Stat(dst); err == nil {
		return errs.NewRenameError(from, to, os.ErrExist)
	}
	if err := m.fs.Rename(src, dst); err != nil {
		return errs.NewRenameError(from, to, err)
	}
	return nil
}

// Save streams r into name. The data is first written to name+tempSuffix and
// renamed once complete, the same pattern a browser download follows.
func (m *Manager) Save(r io.Reader, name, tempSuffix string) (int64, error) {
	filename := m.Path(name)
	tempFile := filename + tempSuffix

	out, err := m.fs.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		m.fs.Remove(tempFile)
		return n, fmt.Errorf("failed to save document data: %w", err)
	}
	if closeErr != nil {
		m.fs.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := m.fs.Rename(tempFile, filename); err != nil {
		m.fs.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return n, nil
}

// Exists reports whether name is present in the download directory
func (m *Manager) Exists(name string) bool {
	_, err := m.fs.Stat(m.Path(name))
	return err == nil
}

// Path joins name onto the download directory
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, filepath.Base(name))
}

// Dir returns the download directory
func (m *Manager) Dir() string {
	return m.dir
}

// Fs returns the filesystem the manager works on
func (m *Manager) Fs() afero.Fs {
	return m.fs
}
