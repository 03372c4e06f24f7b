package store

import (
	"context"
	"errors"

	"github.com/wolfeidau/billstock/internal/models"
)

// Sentinel errors for common error conditions
var (
	// ErrNoSession is returned by reads when no token or user is persisted.
	ErrNoSession = errors.New("no session stored")
	// ErrInvalidSession is returned when Save is called without a token or user.
	ErrInvalidSession = errors.New("session requires a token and a user")
)

// TokenStore persists the session token and the cached user record.
//
// Implementations are the only writers of the token. Save and Clear must
// change both halves together so no reader observes a token without its user
// (or the reverse). Clear is idempotent.
type TokenStore interface {
	Save(ctx context.Context, token string, user *models.User) error
	Clear(ctx context.Context) error

	// Token returns ErrNoSession when no token is stored.
	Token(ctx context.Context) (string, error)
	// User returns ErrNoSession when no user is cached.
	User(ctx context.Context) (*models.User, error)
}

// Validate checks the arguments to Save.
func Validate(token string, user *models.User) error {
	if token == "" || user == nil {
		return ErrInvalidSession
	}
	return nil
}

// Load reads both halves and reports ErrNoSession if either is missing.
func Load(ctx context.Context, s TokenStore) (*models.Session, error) {
	token, err := s.Token(ctx)
	if err != nil {
		return nil, err
	}

	user, err := s.User(ctx)
	if err != nil {
		return nil, err
	}

	return &models.Session{Token: token, User: user}, nil
}
