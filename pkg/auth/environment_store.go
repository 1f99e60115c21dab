package auth

import (
	"os"
	"time"
)

const (
	// CookieEnv holds a raw Cookie header for the catalog
	CookieEnv = "DOCHARVEST_COOKIE"
	// UserAgentEnv optionally overrides the browser user agent
	UserAgentEnv = "DOCHARVEST_USER_AGENT"

	envSessionName = "env"
)

// EnvironmentStore is a read-only CredentialStore backed by DOCHARVEST_COOKIE
type EnvironmentStore struct{}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{}
}

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(session *Session) error {
	return ErrStoreUnavailable
}

// Retrieve returns the environment session under whatever name is asked for
func (e *EnvironmentStore) Retrieve(name string) (*Session, error) {
	cookie := os.Getenv(CookieEnv)
	if len(ParseCookie(cookie)) == 0 {
		return nil, ErrCredentialsNotFound
	}

	if name == "" {
		name = envSessionName
	}

	return &Session{
		Name:         name,
		Cookie:       cookie,
		UserAgent:    os.Getenv(UserAgentEnv),
		LastModified: time.Now(),
	}, nil
}

func (e *EnvironmentStore) List() ([]*Session, error) {
	session, err := e.Retrieve("")
	if err != nil {
		return []*Session{}, nil
	}
	return []*Session{session}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(name string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) Exists(name string) bool {
	return len(ParseCookie(os.Getenv(CookieEnv))) > 0
}
