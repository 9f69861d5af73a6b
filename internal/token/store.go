// Package token implements the credential-store collaborator: persisted
// per-user provider credentials and transparent access-token refresh.
package token

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"calmux/internal/models"
)

// storedCredentials is the on-disk shape of one credentials file.
type storedCredentials struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	Provider    models.Provider `json:"provider"`
	Email       string          `json:"email"`
	Token       *oauth2.Token   `json:"token"`
	CalendarIDs []string        `json:"calendarIds,omitempty"`
	LastSynced  time.Time       `json:"lastSynced"`
	SyncEnabled bool            `json:"syncEnabled"`
}

// FileStore keeps one JSON file per (provider, user) pair under a
// directory, following the token-file layout the auth flow has always
// used. Writes are last-writer-wins at file granularity.
type FileStore struct {
	dir string
	mu  sync.RWMutex
}

// NewFileStore creates the store directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create credentials dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(provider models.Provider, userID string) string {
	return filepath.Join(s.dir, fmt.Sprintf("credentials-%s-%s.json", provider, userID))
}

// Get loads credentials for one provider/user pair. Missing credentials
// report ErrNoCredentials.
func (s *FileStore) Get(provider models.Provider, userID string) (*models.CalendarCredentials, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, err := os.ReadFile(s.path(provider, userID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s for user %s", models.ErrNoCredentials, provider, userID)
		}
		return nil, fmt.Errorf("read credentials file: %w", err)
	}

	var stored storedCredentials
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil, fmt.Errorf("decode credentials file: %w", err)
	}
	return &models.CalendarCredentials{
		ID:          stored.ID,
		UserID:      stored.UserID,
		Provider:    stored.Provider,
		Email:       stored.Email,
		Token:       stored.Token,
		CalendarIDs: stored.CalendarIDs,
		LastSynced:  stored.LastSynced,
		SyncEnabled: stored.SyncEnabled,
	}, nil
}

// Put writes credentials, replacing any previous file for the pair.
func (s *FileStore) Put(creds *models.CalendarCredentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := storedCredentials{
		ID:          creds.ID,
		UserID:      creds.UserID,
		Provider:    creds.Provider,
		Email:       creds.Email,
		Token:       creds.Token,
		CalendarIDs: creds.CalendarIDs,
		LastSynced:  creds.LastSynced,
		SyncEnabled: creds.SyncEnabled,
	}
	raw, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credentials: %w", err)
	}
	if err := os.WriteFile(s.path(creds.Provider, creds.UserID), raw, 0o600); err != nil {
		return fmt.Errorf("write credentials file: %w", err)
	}
	return nil
}

// Delete removes credentials on explicit de-authentication.
func (s *FileStore) Delete(provider models.Provider, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path(provider, userID)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove credentials file: %w", err)
	}
	return nil
}

// Providers returns every provider the user holds credentials for.
func (s *FileStore) Providers(userID string) ([]models.Provider, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read credentials dir: %w", err)
	}

	suffix := fmt.Sprintf("-%s.json", userID)
	var providers []models.Provider
	for _, p := range models.Providers() {
		prefix := fmt.Sprintf("credentials-%s-", p)
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, prefix) && strings.HasSuffix(name, suffix) {
				providers = append(providers, p)
				break
			}
		}
	}
	return providers, nil
}
