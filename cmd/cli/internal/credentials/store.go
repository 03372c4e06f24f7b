package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/store"
)

const sessionFile = "session.json"

// Store persists the session token and cached user in a single JSON file on
// the local filesystem. Writes go through a temp file and an atomic rename so
// the token and user always change together.
type Store struct {
	baseDir string

	mu sync.RWMutex
}

var _ store.TokenStore = (*Store)(nil)

// NewStore creates a new credential store.
// If baseDir is empty, uses ~/.billstock/credentials/
func NewStore(baseDir string) (*Store, error) {
	if baseDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		baseDir = filepath.Join(home, ".billstock", "credentials")
	}

	// Create directory with 0700 permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create credentials directory: %w", err)
	}

	log.Debug().Str("baseDir", baseDir).Msg("credential store initialized")

	return &Store{baseDir: baseDir}, nil
}

// Path returns the location of the session file.
func (s *Store) Path() string {
	return filepath.Join(s.baseDir, sessionFile)
}

// Save writes the token and user to disk.
func (s *Store) Save(ctx context.Context, token string, user *models.User) error {
	if err := store.Validate(token, user); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sess := &models.Session{
		Token:   token,
		User:    user,
		SavedAt: time.Now().UTC(),
	}

	if err := s.saveSession(sess); err != nil {
		return err
	}

	log.Debug().Int64("userID", user.ID).Str("path", s.Path()).Msg("session saved")

	return nil
}

// Clear removes the session file. A missing file is not an error.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.Path()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	return nil
}

// Token returns the stored token.
func (s *Store) Token(ctx context.Context) (string, error) {
	sess, err := s.load()
	if err != nil {
		return "", err
	}
	return sess.Token, nil
}

// User returns the cached user.
func (s *Store) User(ctx context.Context) (*models.User, error) {
	sess, err := s.load()
	if err != nil {
		return nil, err
	}
	return sess.User, nil
}

func (s *Store) load() (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, err := s.loadSession()
	if err != nil {
		return nil, err
	}

	// A half-written record is treated as no session at all
	if !sess.Valid() {
		return nil, store.ErrNoSession
	}

	return sess, nil
}

// loadSession reads the session file.
func (s *Store) loadSession() (*models.Session, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, store.ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var sess models.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to parse session: %w", err)
	}

	return &sess, nil
}

// saveSession writes the session file atomically.
func (s *Store) saveSession(sess *models.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	// Write to temp file first
	sessionPath := s.Path()
	tempPath := sessionPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, sessionPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to save session: %w", err)
	}

	return nil
}
