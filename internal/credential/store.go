// Package credential persists provider credentials to a single JSON
// document on disk and drives the GitHub-style OAuth device-code flow used
// to obtain them for providers that require it (e.g. Copilot).
//
// Credentials are stored under "$HOME/.ucr/credentials.json" rather than
// left in env vars, since OAuth access/refresh tokens need a durable home
// that survives process restarts.
package credential

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/universal-claude-router/ucr/internal/canon"
)

const (
	dirName  = ".ucr"
	fileName = "credentials.json"
	dirPerm  = 0o700
	filePerm = 0o600
)

// Store is a mutex-guarded, whole-file-rewrite-on-write JSON credential
// store: every mutation rewrites the entire file so a crash mid-write
// never leaves a partially-updated document behind.
type Store struct {
	mu   sync.RWMutex
	path string
	data map[string]canon.Credential
}

// DefaultPath returns "$HOME/.ucr/credentials.json".
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, dirName, fileName), nil
}

// Open loads the store from path, creating an empty one if the file does
// not yet exist.
func Open(path string) (*Store, error) {
	s := &Store{path: path, data: make(map[string]canon.Credential)}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read credential store: %w", err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(b, &s.data); err != nil {
		return nil, fmt.Errorf("parse credential store: %w", err)
	}
	return s, nil
}

// Get returns the credential for providerID, or
// *canon.CredentialMissingError if none is stored.
func (s *Store) Get(providerID string) (canon.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.data[providerID]
	if !ok {
		return canon.Credential{}, &canon.CredentialMissingError{Provider: providerID}
	}
	return c, nil
}

// Set stores or replaces providerID's credential and rewrites the file.
func (s *Store) Set(providerID string, cred canon.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[providerID] = cred
	return s.persistLocked()
}

// Delete removes providerID's credential, if any, and rewrites the file.
func (s *Store) Delete(providerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, providerID)
	return s.persistLocked()
}

func (s *Store) persistLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("create credential directory: %w", err)
	}
	b, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal credential store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, filePerm); err != nil {
		return fmt.Errorf("write credential store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace credential store: %w", err)
	}
	return nil
}
