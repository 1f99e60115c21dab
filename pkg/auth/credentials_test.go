package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"
)

func TestCredentialManager(t *testing.T) {
	manager, mockStore := NewMockManager()

	session := &Session{
		Name:      "amf",
		Host:      "bdif.amf-france.org",
		Cookie:    "session=abcdefghijklmnop; XSRF-TOKEN=0123456789abcdef",
		UserAgent: "TestAgent/1.0",
	}

	if err := manager.Store(session); err != nil {
		t.Fatalf("Failed to store session: %v", err)
	}
	if session.LastModified.IsZero() {
		t.Error("Expected LastModified to be set on store")
	}

	retrieved, err := manager.Retrieve("amf")
	if err != nil {
		t.Fatalf("Failed to retrieve session: %v", err)
	}
	if retrieved.Cookie != session.Cookie {
		t.Errorf("Cookie mismatch: got %s, want %s", retrieved.Cookie, session.Cookie)
	}
	if retrieved.Host != session.Host {
		t.Errorf("Host mismatch: got %s, want %s", retrieved.Host, session.Host)
	}

	sessions, err := manager.List()
	if err != nil {
		t.Errorf("Failed to list sessions: %v", err)
	}
	if len(sessions) != 1 {
		t.Errorf("Expected 1 session in list, got %d", len(sessions))
	}

	if err := manager.Delete("amf"); err != nil {
		t.Errorf("Failed to delete session: %v", err)
	}
	if _, err := manager.Retrieve("amf"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound after deletion, got %v", err)
	}
	if mockStore.Count() != 0 {
		t.Errorf("Expected 0 sessions after deletion, got %d", mockStore.Count())
	}
}

func TestManagerStoreValidation(t *testing.T) {
	manager, _ := NewMockManager()

	tests := []struct {
		name    string
		session *Session
	}{
		{"nil", nil},
		{"no name", &Session{Cookie: "a=b"}},
		{"no cookie", &Session{Name: "amf"}},
		{"malformed cookie", &Session{Name: "amf", Cookie: "just-a-token"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := manager.Store(tt.session); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestManagerFallsBackToNextStore(t *testing.T) {
	failing := NewMockStore()
	failing.StoreError = errors.New("locked")
	fallback := NewMockStore()

	manager := NewManagerWithStores(failing, fallback)
	if err := manager.Store(&Session{Name: "amf", Cookie: "a=b"}); err != nil {
		t.Fatalf("Expected fallback store to accept the session: %v", err)
	}
	if !fallback.Exists("amf") {
		t.Error("Expected session in fallback store")
	}

	fallback.StoreError = errors.New("full")
	err := manager.Store(&Session{Name: "other", Cookie: "a=b"})
	if err == nil || !strings.Contains(err.Error(), "full") {
		t.Errorf("Expected last store error, got %v", err)
	}
}

func TestManagerListKeepsNewest(t *testing.T) {
	older := NewMockStore()
	newer := NewMockStore()
	now := time.Now()

	_ = older.Store(&Session{Name: "amf", Cookie: "v=old", LastModified: now.Add(-time.Hour)})
	_ = newer.Store(&Session{Name: "amf", Cookie: "v=new", LastModified: now})
	_ = older.Store(&Session{Name: "sec", Cookie: "v=1", LastModified: now.Add(-2 * time.Hour)})

	sessions, err := NewManagerWithStores(older, newer).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 2 {
		t.Fatalf("Expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].Name != "amf" || sessions[0].Cookie != "v=new" {
		t.Errorf("Expected newest amf session first, got %+v", sessions[0])
	}
	if sessions[1].Name != "sec" {
		t.Errorf("Expected sec second, got %s", sessions[1].Name)
	}
}

func TestRetrieveDefaultPrefersEnvironment(t *testing.T) {
	t.Setenv(CookieEnv, "session=from-env")

	store := NewMockStore()
	_ = store.Store(&Session{Name: "amf", Cookie: "session=stored", LastModified: time.Now()})

	session, err := NewManagerWithStores(store, NewEnvironmentStore()).RetrieveDefault()
	if err != nil {
		t.Fatal(err)
	}
	if session.Cookie != "session=from-env" {
		t.Errorf("Expected environment cookie, got %s", session.Cookie)
	}

	t.Setenv(CookieEnv, "")
	session, err = NewManagerWithStores(store, NewEnvironmentStore()).RetrieveDefault()
	if err != nil {
		t.Fatal(err)
	}
	if session.Cookie != "session=stored" {
		t.Errorf("Expected stored cookie, got %s", session.Cookie)
	}

	if _, err := NewManagerWithStores(NewMockStore()).RetrieveDefault(); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
}

func TestEncryptedFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.enc")
	t.Setenv(PassphraseEnv, "test_passphrase_123")

	store, err := NewEncryptedFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create encrypted store: %v", err)
	}

	session := &Session{Name: "amf", Cookie: "session=encrypted_session_value"}
	if err := store.Store(session); err != nil {
		t.Fatalf("Failed to store in encrypted file: %v", err)
	}
	if err := store.Store(&Session{Name: "sec", Cookie: "session=second"}); err != nil {
		t.Fatalf("Failed to store second session: %v", err)
	}

	retrieved, err := store.Retrieve("amf")
	if err != nil {
		t.Fatalf("Failed to retrieve from encrypted file: %v", err)
	}
	if retrieved.Cookie != session.Cookie {
		t.Errorf("Cookie mismatch after encryption/decryption")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("encrypted_session_value")) {
		t.Error("File contains plaintext cookie")
	}

	sessions, err := store.List()
	if err != nil || len(sessions) != 2 {
		t.Errorf("Expected 2 sessions, got %d (%v)", len(sessions), err)
	}

	if err := store.Delete("amf"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}
	if store.Exists("amf") {
		t.Error("Expected amf to be gone")
	}
	if err := store.Delete("sec"); err != nil {
		t.Errorf("Failed to delete: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("Expected the file to be removed with the last session")
	}
}

func TestEncryptedFileStoreWrongPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.enc")

	if err := NewEncryptedFileStoreWithPassphrase(path, "right").Store(&Session{Name: "amf", Cookie: "a=b"}); err != nil {
		t.Fatal(err)
	}

	_, err := NewEncryptedFileStoreWithPassphrase(path, "wrong").Retrieve("amf")
	if err == nil || errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected a decryption error, got %v", err)
	}
}

func TestEncryptedFileStoreGeneratesPassphrase(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(PassphraseEnv, "")

	store, err := NewEncryptedFileStore(filepath.Join(dir, "sessions.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Store(&Session{Name: "amf", Cookie: "a=b"}); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(filepath.Join(dir, ".passphrase")); err != nil {
		t.Fatalf("Expected passphrase file: %v", err)
	}

	reopened, err := NewEncryptedFileStore(filepath.Join(dir, "sessions.enc"))
	if err != nil {
		t.Fatal(err)
	}
	if !reopened.Exists("amf") {
		t.Error("Expected reopened store to decrypt with the saved passphrase")
	}
}

func TestEnvironmentStore(t *testing.T) {
	t.Setenv(CookieEnv, "session=env_session")
	t.Setenv(UserAgentEnv, "EnvAgent/1.0")

	store := NewEnvironmentStore()

	session, err := store.Retrieve("")
	if err != nil {
		t.Fatalf("Failed to retrieve from environment: %v", err)
	}
	if session.Name != "env" || session.Cookie != "session=env_session" || session.UserAgent != "EnvAgent/1.0" {
		t.Errorf("Unexpected session %+v", session)
	}
	if !store.Exists("") {
		t.Error("Expected environment session to exist")
	}
	if err := store.Store(session); !errors.Is(err, ErrStoreUnavailable) {
		t.Errorf("Expected ErrStoreUnavailable, got %v", err)
	}

	t.Setenv(CookieEnv, "")
	if _, err := store.Retrieve(""); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if sessions, _ := store.List(); len(sessions) != 0 {
		t.Errorf("Expected empty list, got %d", len(sessions))
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	store, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("Expected mock keyring to be available: %v", err)
	}

	if err := store.Store(&Session{Name: "amf", Cookie: "session=kc"}); err != nil {
		t.Fatal(err)
	}
	session, err := store.Retrieve("amf")
	if err != nil {
		t.Fatal(err)
	}
	if session.Cookie != "session=kc" {
		t.Errorf("Cookie mismatch: %s", session.Cookie)
	}
	if !store.Exists("amf") {
		t.Error("Expected amf to exist")
	}

	if err := store.Delete("amf"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Retrieve("amf"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound, got %v", err)
	}
	if err := store.Delete("amf"); !errors.Is(err, ErrCredentialsNotFound) {
		t.Errorf("Expected ErrCredentialsNotFound on second delete, got %v", err)
	}
}

func TestParseCookie(t *testing.T) {
	pairs := ParseCookie(" session = abc ; XSRF-TOKEN=x=y;; broken ;=nope")

	if len(pairs) != 2 {
		t.Fatalf("Expected 2 pairs, got %v", pairs)
	}
	if pairs["session"] != "abc" {
		t.Errorf("session = %q", pairs["session"])
	}
	if pairs["XSRF-TOKEN"] != "x=y" {
		t.Errorf("XSRF-TOKEN = %q", pairs["XSRF-TOKEN"])
	}
}

func TestSanitizeSession(t *testing.T) {
	session := &Session{Name: "amf", Cookie: "session=abcdefghijklmnop; id=short"}

	sanitized := SanitizeSession(session)
	if sanitized.Cookie != "id=********; session=abcd...mnop" {
		t.Errorf("Unexpected masked cookie %q", sanitized.Cookie)
	}
	if session.Cookie != "session=abcdefghijklmnop; id=short" {
		t.Error("SanitizeSession must not modify its argument")
	}
	if SanitizeSession(nil) != nil {
		t.Error("Expected nil for nil session")
	}
}

func TestShowCookieExtractionGuide(t *testing.T) {
	var buf bytes.Buffer
	ShowCookieExtractionGuide(&buf, "https://catalog.example")

	if !strings.Contains(buf.String(), "https://catalog.example") {
		t.Error("Expected guide to mention the catalog URL")
	}
	if !strings.Contains(buf.String(), "Cookie:") {
		t.Error("Expected guide to point at the Cookie header")
	}
}
