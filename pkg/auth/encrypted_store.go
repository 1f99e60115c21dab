package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

// PassphraseEnv overrides the generated passphrase of the encrypted store
const PassphraseEnv = "DOCHARVEST_PASSPHRASE"

const (
	saltSize   = 32
	keySize    = 32
	iterations = 100000
	fileFormat = 1
)

// EncryptedFileStore implements CredentialStore with an AES-GCM encrypted
// file whose key is derived from a passphrase with PBKDF2
type EncryptedFileStore struct {
	path       string
	passphrase string
	mu         sync.RWMutex
}

// envelope is the on-disk form of the store
type envelope struct {
	Version   int       `json:"version"`
	Salt      string    `json:"salt"`
	Encrypted string    `json:"encrypted"`
	Modified  time.Time `json:"modified"`
}

// NewEncryptedFileStore creates a store at path. The passphrase comes from
// DOCHARVEST_PASSPHRASE, or from a generated file next to the store.
func NewEncryptedFileStore(path string) (*EncryptedFileStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	passphrase, err := loadPassphrase(filepath.Join(dir, ".passphrase"))
	if err != nil {
		return nil, fmt.Errorf("failed to get passphrase: %w", err)
	}

	return NewEncryptedFileStoreWithPassphrase(path, passphrase), nil
}

// NewEncryptedFileStoreWithPassphrase creates a store at path using passphrase
func NewEncryptedFileStoreWithPassphrase(path, passphrase string) *EncryptedFileStore {
	return &EncryptedFileStore{path: path, passphrase: passphrase}
}

func (e *EncryptedFileStore) Store(session *Session) error {
	if session == nil || session.Name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sessions, salt, err := e.load()
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load existing data: %w", err)
	}
	if sessions == nil {
		sessions = make(map[string]Session)
	}

	sessions[session.Name] = *session
	return e.save(sessions, salt)
}

func (e *EncryptedFileStore) Retrieve(name string) (*Session, error) {
	if name == "" {
		return nil, ErrInvalidCredentials
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	sessions, _, err := e.load()
	if os.IsNotExist(err) {
		return nil, ErrCredentialsNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	session, ok := sessions[name]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	return &session, nil
}

func (e *EncryptedFileStore) List() ([]*Session, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	sessions, _, err := e.load()
	if os.IsNotExist(err) {
		return []*Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load data: %w", err)
	}

	out := make([]*Session, 0, len(sessions))
	for _, session := range sessions {
		s := session
		out = append(out, &s)
	}
	return out, nil
}

func (e *EncryptedFileStore) Delete(name string) error {
	if name == "" {
		return ErrInvalidCredentials
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	sessions, salt, err := e.load()
	if os.IsNotExist(err) {
		return ErrCredentialsNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load data: %w", err)
	}
	if _, ok := sessions[name]; !ok {
		return ErrCredentialsNotFound
	}

	delete(sessions, name)
	if len(sessions) == 0 {
		return os.Remove(e.path)
	}
	return e.save(sessions, salt)
}

func (e *EncryptedFileStore) Exists(name string) bool {
	session, err := e.Retrieve(name)
	return err == nil && session != nil
}

// load reads and decrypts the store. The returned salt is reused on save.
func (e *EncryptedFileStore) load() (map[string]Session, []byte, error) {
	content, err := os.ReadFile(e.path)
	if err != nil {
		return nil, nil, err
	}

	var env envelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse file: %w", err)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	sealed, err := base64.StdEncoding.DecodeString(env.Encrypted)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode encrypted data: %w", err)
	}

	plain, err := decrypt(sealed, e.key(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt data: %w", err)
	}

	var sessions map[string]Session
	if err := json.Unmarshal(plain, &sessions); err != nil {
		return nil, nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, salt, nil
}

// save encrypts sessions and replaces the store file atomically
func (e *EncryptedFileStore) save(sessions map[string]Session, salt []byte) error {
	if len(salt) == 0 {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}

	sealed, err := encrypt(plain, e.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt data: %w", err)
	}

	content, err := json.MarshalIndent(envelope{
		Version:   fileFormat,
		Salt:      base64.StdEncoding.EncodeToString(salt),
		Encrypted: base64.StdEncoding.EncodeToString(sealed),
		Modified:  time.Now(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal file data: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return os.Rename(tmp, e.path)
}

func (e *EncryptedFileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(e.passphrase), salt, iterations, keySize, sha256.New)
}

// loadPassphrase returns DOCHARVEST_PASSPHRASE, or the passphrase stored in
// file, generating it on first use
func loadPassphrase(file string) (string, error) {
	if pass := os.Getenv(PassphraseEnv); pass != "" {
		return pass, nil
	}

	if content, err := os.ReadFile(file); err == nil && len(content) > 0 {
		return string(content), nil
	}

	b := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(b)

	if err := os.WriteFile(file, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
