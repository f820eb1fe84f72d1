package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

var ErrNoStoredUser = errors.New("no stored user")

// storedUserKey is the fixed key the app keeps the signed-in user under.
const storedUserKey = "user"

// StoredUser is the JSON-serialized user object the login flow persists and
// the messaging flow reads back.
type StoredUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
	Token string `json:"token"`
}

// IdentityStore is a small file-backed key-value store holding the signed-in
// user, the Go stand-in for the app's on-device preferences storage.
type IdentityStore struct {
	path string
	mu   sync.Mutex
}

// NewIdentityStore uses the given file path, creating parent directories on
// first save.
func NewIdentityStore(path string) *IdentityStore {
	return &IdentityStore{path: path}
}

// SaveUser persists the signed-in user under the fixed key.
func (s *IdentityStore) SaveUser(user StoredUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(user)
	if err != nil {
		return err
	}
	entries[storedUserKey] = raw

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create store dir: %w", err)
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// LoadUser reads the signed-in user back, or ErrNoStoredUser.
func (s *IdentityStore) LoadUser() (StoredUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return StoredUser{}, err
	}
	raw, ok := entries[storedUserKey]
	if !ok {
		return StoredUser{}, ErrNoStoredUser
	}
	var user StoredUser
	if err := json.Unmarshal(raw, &user); err != nil {
		return StoredUser{}, fmt.Errorf("decode stored user: %w", err)
	}
	if user.ID == "" {
		return StoredUser{}, ErrNoStoredUser
	}
	return user, nil
}

// Clear removes the signed-in user, the logout path.
func (s *IdentityStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		return err
	}
	delete(entries, storedUserKey)
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

func (s *IdentityStore) read() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, err
	}
	entries := map[string]json.RawMessage{}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode store: %w", err)
		}
	}
	return entries, nil
}
