package auth

import (
	"sync"
)

// MockStore is an in-memory CredentialStore with error injection for tests
type MockStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex

	StoreError    error
	RetrieveError error
	ListError     error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

func (m *MockStore) Store(session *Session) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if session == nil || session.Name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	cp := *session
	m.sessions[session.Name] = &cp
	return nil
}

func (m *MockStore) Retrieve(name string) (*Session, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	cp := *session
	return &cp, nil
}

func (m *MockStore) List() ([]*Session, error) {
	if m.ListError != nil {
		return nil, m.ListError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		cp := *session
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MockStore) Delete(name string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}
	if name == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[name]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.sessions, name)
	return nil
}

func (m *MockStore) Exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.sessions[name]
	return ok
}

// Count returns the number of stored sessions
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.sessions)
}

// NewMockManager creates a Manager over a single mock store
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
