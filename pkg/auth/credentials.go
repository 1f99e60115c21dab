// Package auth stores the session cookie a catalog needs between runs. The
// cookie is kept in the system keychain when one is available, otherwise in
// an encrypted file, and can always be supplied through DOCHARVEST_COOKIE.
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"
)

// Session is a named catalog session
type Session struct {
	Name         string    `json:"name"`
	Host         string    `json:"host,omitempty"`
	Cookie       string    `json:"cookie"`
	UserAgent    string    `json:"user_agent,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// CredentialStore is the interface for storing and retrieving sessions
type CredentialStore interface {
	// Store saves the session under its name
	Store(session *Session) error

	// Retrieve gets the session stored under name
	Retrieve(name string) (*Session, error)

	// List returns all stored sessions
	List() ([]*Session, error)

	// Delete removes the session stored under name
	Delete(name string) error

	// Exists checks if a session is stored under name
	Exists(name string) bool
}

// Manager handles session storage with fallback mechanisms
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager over the keychain, the encrypted file in the
// config directory and the environment, in that order
func NewManager() (*Manager, error) {
	var stores []CredentialStore

	keyringStore, err := NewKeyringStore()
	if err == nil {
		stores = append(stores, keyringStore)
	}

	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	encryptedStore, err := NewEncryptedFileStore(filepath.Join(configDir, "sessions.enc"))
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypted store: %w", err)
	}
	stores = append(stores, encryptedStore)

	stores = append(stores, NewEnvironmentStore())

	return &Manager{stores: stores}, nil
}

// NewManagerWithStores creates a manager over the given stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves the session using the first store that accepts it
func (m *Manager) Store(session *Session) error {
	if session == nil || session.Name == "" {
		return errors.New("session name is required")
	}
	if len(ParseCookie(session.Cookie)) == 0 {
		return errors.New("cookie is required")
	}

	session.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(session)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store session: %w", lastErr)
	}
	return errors.New("no available credential stores")
}

// Retrieve gets the session from the first store that has it
func (m *Manager) Retrieve(name string) (*Session, error) {
	for _, store := range m.stores {
		if session, err := store.Retrieve(name); err == nil && session != nil {
			return session, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
}

// RetrieveDefault returns the environment session if set, otherwise the most
// recently stored one
func (m *Manager) RetrieveDefault() (*Session, error) {
	for _, store := range m.stores {
		if env, ok := store.(*EnvironmentStore); ok {
			if session, err := env.Retrieve(""); err == nil {
				return session, nil
			}
		}
	}

	sessions, err := m.List()
	if err == nil && len(sessions) > 0 {
		return sessions[0], nil
	}

	return nil, ErrCredentialsNotFound
}

// List returns the sessions of every store, newest first. A name stored in
// more than one place is reported once with its most recent version.
func (m *Manager) List() ([]*Session, error) {
	byName := make(map[string]*Session)

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			continue
		}
		for _, session := range sessions {
			if existing, ok := byName[session.Name]; !ok || session.LastModified.After(existing.LastModified) {
				byName[session.Name] = session
			}
		}
	}

	result := make([]*Session, 0, len(byName))
	for _, session := range byName {
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].LastModified.Equal(result[j].LastModified) {
			return result[i].Name < result[j].Name
		}
		return result[i].LastModified.After(result[j].LastModified)
	})

	return result, nil
}

// Delete removes the session from all stores
func (m *Manager) Delete(name string) error {
	var deleted bool
	var lastErr error

	for _, store := range m.stores {
		if err := store.Delete(name); err == nil {
			deleted = true
		} else {
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete session: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrCredentialsNotFound, name)
	}

	return nil
}

// getConfigDir returns the configuration directory path
func getConfigDir() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "docharvest")
	case "windows":
		configDir = filepath.Join(os.Getenv("APPDATA"), "docharvest")
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			configDir = filepath.Join(xdgConfig, "docharvest")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			configDir = filepath.Join(home, ".config", "docharvest")
		}
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}

	return configDir, nil
}

// ParseCookie splits a Cookie header value into its name=value pairs.
// Malformed pairs are dropped.
func ParseCookie(header string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range strings.Split(header, ";") {
		name, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			continue
		}
		pairs[name] = strings.TrimSpace(value)
	}
	return pairs
}

// SanitizeSession creates a copy of the session with cookie values masked
func SanitizeSession(session *Session) *Session {
	if session == nil {
		return nil
	}

	pairs := ParseCookie(session.Cookie)
	names := make([]string, 0, len(pairs))
	for name := range pairs {
		names = append(names, name)
	}
	sort.Strings(names)

	masked := make([]string, 0, len(names))
	for _, name := range names {
		masked = append(masked, name+"="+maskString(pairs[name]))
	}

	cp := *session
	cp.Cookie = strings.Join(masked, "; ")
	return &cp
}

// maskString masks all but the first 4 and last 4 characters of a string
func maskString(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
