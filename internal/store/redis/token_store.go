// Package redis provides a Redis-backed store.TokenStore.
//
// The session is kept under two durable keys, "<prefix>:token" holding the raw
// token and "<prefix>:user" holding the JSON user record. Both keys are written
// in a single MULTI/EXEC transaction and deleted with a single DEL so readers
// never see one without the other.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/store"
)

// DefaultPrefix is used when no key prefix is configured.
const DefaultPrefix = "billstock:session"

// TokenStore implements store.TokenStore on top of a go-redis client.
type TokenStore struct {
	rdb      goredis.UniversalClient
	tokenKey string
	userKey  string
}

var _ store.TokenStore = (*TokenStore)(nil)

// NewTokenStore creates a store using rdb and the given key prefix.
func NewTokenStore(rdb goredis.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}

	return &TokenStore{
		rdb:      rdb,
		tokenKey: prefix + ":token",
		userKey:  prefix + ":user",
	}
}

// Save writes the token and user in one transaction.
func (s *TokenStore) Save(ctx context.Context, token string, user *models.User) error {
	if err := store.Validate(token, user); err != nil {
		return err
	}

	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.Set(ctx, s.tokenKey, token, 0)
		pipe.Set(ctx, s.userKey, data, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	log.Debug().Str("key", s.tokenKey).Int64("userID", user.ID).Msg("session saved to redis")

	return nil
}

// Clear deletes both keys. Missing keys are not an error.
func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey, s.userKey).Err(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Token returns the stored token.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	token, err := s.rdb.Get(ctx, s.tokenKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", store.ErrNoSession
		}
		return "", fmt.Errorf("failed to read token: %w", err)
	}
	return token, nil
}

// User returns the cached user record.
func (s *TokenStore) User(ctx context.Context) (*models.User, error) {
	data, err := s.rdb.Get(ctx, s.userKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, store.ErrNoSession
		}
		return nil, fmt.Errorf("failed to read user: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, fmt.Errorf("failed to parse user: %w", err)
	}

	return &user, nil
}
