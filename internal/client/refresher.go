package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/store"
)

const defaultRefreshTries = 3

// TokenRefresher is a Recoverer that exchanges the rejected token for a new
// one at a refresh endpoint. Transport failures and 5xx responses are
// retried with exponential backoff; any other rejection ends the session.
type TokenRefresher struct {
	httpClient *http.Client
	refreshURL string
	tokens     store.TokenStore

	newBackOff func() backoff.BackOff
	maxTries   uint
}

// RefresherOption configures a TokenRefresher.
type RefresherOption func(*TokenRefresher)

// WithBackOff sets the retry policy, used in tests to avoid sleeping.
func WithBackOff(fn func() backoff.BackOff) RefresherOption {
	return func(r *TokenRefresher) {
		r.newBackOff = fn
	}
}

// WithMaxTries caps the number of refresh attempts.
func WithMaxTries(n uint) RefresherOption {
	return func(r *TokenRefresher) {
		r.maxTries = n
	}
}

// NewTokenRefresher creates a refresher posting to refreshURL.
func NewTokenRefresher(httpClient *http.Client, refreshURL string, tokens store.TokenStore, opts ...RefresherOption) *TokenRefresher {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	r := &TokenRefresher{
		httpClient: httpClient,
		refreshURL: refreshURL,
		tokens:     tokens,
		newBackOff: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
		maxTries:   defaultRefreshTries,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// Recover exchanges failedToken and stores the replacement with the cached user.
func (r *TokenRefresher) Recover(ctx context.Context, failedToken string) (string, error) {
	if failedToken == "" {
		return "", ErrSessionExpired
	}

	user, err := r.tokens.User(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: no cached user: %v", ErrSessionExpired, err)
	}

	token, err := backoff.Retry(ctx, func() (string, error) {
		return r.exchange(ctx, failedToken)
	},
		backoff.WithBackOff(r.newBackOff()),
		backoff.WithMaxTries(r.maxTries),
	)
	if err != nil {
		return "", err
	}

	if err := r.tokens.Save(ctx, token, user); err != nil {
		return "", fmt.Errorf("failed to save refreshed token: %w", err)
	}

	log.Info().Int64("userID", user.ID).Msg("session token refreshed")

	return token, nil
}

func (r *TokenRefresher) exchange(ctx context.Context, failedToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.refreshURL, nil)
	if err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to create refresh request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+failedToken)
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("refresh request failed, will retry")
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return "", fmt.Errorf("refresh failed: %s", resp.Status)
	}
	if resp.StatusCode != http.StatusOK {
		return "", backoff.Permanent(fmt.Errorf("%w: refresh rejected: %s", ErrSessionExpired, resp.Status))
	}

	var body refreshResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&body); err != nil {
		return "", backoff.Permanent(fmt.Errorf("failed to decode refresh response: %w", err))
	}
	if body.AccessToken == "" {
		return "", backoff.Permanent(errors.New("refresh response missing access_token"))
	}

	return body.AccessToken, nil
}
