package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/store"
)

// TokenStore implements store.TokenStore using in-memory storage.
// Data is lost on restart, so it suits tests and throwaway sessions.
type TokenStore struct {
	mu      sync.RWMutex
	session *models.Session
}

var _ store.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates an empty in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Save replaces the stored session.
func (s *TokenStore) Save(ctx context.Context, token string, user *models.User) error {
	if err := store.Validate(token, user); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = &models.Session{
		Token:   token,
		User:    user.Clone(),
		SavedAt: time.Now().UTC(),
	}

	return nil
}

// Clear removes the stored session.
func (s *TokenStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}

// Token returns the stored token.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return "", store.ErrNoSession
	}
	return s.session.Token, nil
}

// User returns a copy of the cached user.
func (s *TokenStore) User(ctx context.Context) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, store.ErrNoSession
	}
	return s.session.User.Clone(), nil
}
