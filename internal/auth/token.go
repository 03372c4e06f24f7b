package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// DefaultExpiryThreshold is how long before the real expiry a token is
// considered expired, leaving headroom before the server starts rejecting it.
const DefaultExpiryThreshold = 50 * time.Minute

var (
	// ErrEmptyToken is returned when no token is supplied.
	ErrEmptyToken = errors.New("token is empty")
	// ErrMalformedToken is returned when the token can't be decoded.
	ErrMalformedToken = errors.New("token is malformed")
	// ErrMissingExpiry is returned when the token has no exp claim.
	ErrMissingExpiry = errors.New("token has no expiry")
)

// Validator inspects session tokens locally. Signatures are NOT verified,
// that is the server's job; only the claims are decoded.
type Validator struct {
	threshold time.Duration
	now       func() time.Time
	parser    *jwt.Parser
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithClock overrides the time source, used in tests.
func WithClock(now func() time.Time) ValidatorOption {
	return func(v *Validator) {
		v.now = now
	}
}

// NewValidator creates a validator using the given expiry threshold.
// A non-positive threshold falls back to DefaultExpiryThreshold.
func NewValidator(threshold time.Duration, opts ...ValidatorOption) *Validator {
	if threshold <= 0 {
		threshold = DefaultExpiryThreshold
	}

	v := &Validator{
		threshold: threshold,
		now:       time.Now,
		parser:    jwt.NewParser(),
	}
	for _, opt := range opts {
		opt(v)
	}

	return v
}

// Threshold returns the expiry lead time.
func (v *Validator) Threshold() time.Duration {
	return v.threshold
}

// Claims decodes the token payload without verifying the signature.
// MapClaims is used because the backend issues numeric subjects.
func (v *Validator) Claims(token string) (jwt.MapClaims, error) {
	if token == "" {
		return nil, ErrEmptyToken
	}

	claims := jwt.MapClaims{}
	if _, _, err := v.parser.ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}

	return claims, nil
}

// ExpiresAt returns the token's exp claim.
func (v *Validator) ExpiresAt(token string) (time.Time, error) {
	claims, err := v.Claims(token)
	if err != nil {
		return time.Time{}, err
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformedToken, err)
	}
	if exp == nil {
		return time.Time{}, ErrMissingExpiry
	}

	return exp.Time, nil
}

// IsExpired reports whether the token expires within the threshold window.
// Anything that can't be decoded counts as expired.
func (v *Validator) IsExpired(token string) bool {
	exp, err := v.ExpiresAt(token)
	if err != nil {
		if !errors.Is(err, ErrEmptyToken) {
			log.Debug().Err(err).Msg("treating undecodable token as expired")
		}
		return true
	}

	return exp.Before(v.now().Add(v.threshold))
}

// Remaining returns the time until the token's real expiry, negative once it
// has passed. Undecodable tokens report zero.
func (v *Validator) Remaining(token string) time.Duration {
	exp, err := v.ExpiresAt(token)
	if err != nil {
		return 0
	}
	return exp.Sub(v.now())
}
