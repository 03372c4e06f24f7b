package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/auth"
	"github.com/wolfeidau/billstock/internal/client"
	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/store"
	"github.com/wolfeidau/billstock/internal/telemetry"
)

// DefaultPollInterval is how often the stored token is re-checked for expiry.
const DefaultPollInterval = 60 * time.Second

// Messages placed in State.Error.
const (
	MsgSessionExpired       = "Session expired. Please log in again."
	MsgAuthError            = "Authentication error. Please log in again."
	MsgPollExpired          = "Your session has expired. Please log in again."
	MsgNotAuthenticated     = "Please log in to continue."
	MsgLoginFailed          = "Login failed. Please check your credentials."
	MsgRegisterFailed       = "Registration failed. Please try again."
	MsgUpdateProfileFailed  = "Failed to update profile. Please try again."
	MsgChangePasswordFailed = "Failed to change password. Please try again."
)

// Forced logout reasons, recorded as metric attributes.
const (
	reasonExpired        = "expired"
	reasonRecoveryFailed = "recovery_failed"
	reasonInvalid        = "invalid_session"
)

// Option configures a Manager.
type Option func(*Manager)

// WithPollInterval overrides DefaultPollInterval.
func WithPollInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.pollInterval = d
		}
	}
}

// WithNavigator sets where the poller sends the user when the token expires.
// Recovery failures navigate through the client's own Navigator.
func WithNavigator(n client.Navigator) Option {
	return func(m *Manager) {
		m.navigator = n
	}
}

// Manager owns the session lifecycle: login and logout, profile refresh,
// periodic expiry checks and the observable State. It is the single source
// of truth for who is signed in and is safe for concurrent use.
type Manager struct {
	client       *client.Client
	tokens       store.TokenStore
	validator    *auth.Validator
	navigator    client.Navigator
	pollInterval time.Duration

	mu       sync.Mutex
	user     *models.User
	errMsg   string
	inflight int
	booting  bool
	subs     map[int]func(State)
	nextSub  int
	gen      uint64

	// deliverMu orders subscriber calls; delivered is the newest generation sent.
	deliverMu sync.Mutex
	delivered uint64

	closed     bool
	cancelPoll context.CancelFunc
	pollDone   chan struct{}

	initOnce   sync.Once
	closeOnce  sync.Once
	unregister func()
}

// New creates a manager. tokens must be the store c was built with. The
// manager reports Loading until Init has run.
func New(c *client.Client, tokens store.TokenStore, validator *auth.Validator, opts ...Option) *Manager {
	if validator == nil {
		validator = auth.NewValidator(auth.DefaultExpiryThreshold)
	}

	m := &Manager{
		client:       c,
		tokens:       tokens,
		validator:    validator,
		pollInterval: DefaultPollInterval,
		booting:      true,
		subs:         make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.unregister = c.Coordinator().OnSessionExpired(func(ctx context.Context) {
		m.forceLogout(ctx, reasonRecoveryFailed, MsgSessionExpired, false)
	})

	return m
}

// Client returns the API client the manager issues requests through.
func (m *Manager) Client() *client.Client {
	return m.client
}

// State returns the current snapshot.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Subscribe registers fn to receive subsequent States, newest last: a
// snapshot superseded before delivery is skipped. fn must not block or call
// back into the Manager.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subs[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// Init restores a persisted session once: the cached user is shown
// optimistically, then confirmed with a live profile fetch. It then starts
// the expiry poller, which runs until Close or ctx is done. Only store
// failures are returned; a session that can't be restored ends with an
// unauthenticated State carrying the reason.
func (m *Manager) Init(ctx context.Context) error {
	var err error
	m.initOnce.Do(func() {
		err = m.restore(ctx)
		m.mutate(func() { m.booting = false })
		m.startPoller(ctx)
	})
	return err
}

func (m *Manager) restore(ctx context.Context) error {
	sess, err := store.Load(ctx, m.tokens)
	switch {
	case errors.Is(err, store.ErrNoSession):
		// Either half missing means no session; drop any orphaned half
		if err := m.tokens.Clear(ctx); err != nil {
			log.Warn().Err(err).Msg("failed to clear partial session")
		}
		return nil
	case err != nil:
		m.forceLogout(ctx, reasonInvalid, MsgAuthError, false)
		return fmt.Errorf("failed to restore session: %w", err)
	}

	if m.validator.IsExpired(sess.Token) {
		log.Info().Msg("stored session token expired")
		m.forceLogout(ctx, reasonExpired, MsgSessionExpired, false)
		return nil
	}

	m.mutate(func() { m.user = sess.User.Clone() })

	if _, err := m.FetchProfile(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to confirm stored session")
		m.forceLogout(ctx, reasonInvalid, MsgSessionExpired, false)
	}

	return nil
}

// Login authenticates and persists the returned token and user.
func (m *Manager) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	m.begin()
	defer m.end()

	var resp LoginResponse
	err := m.client.DoJSON(ctx, &client.Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   loginRequest{Username: username, Password: password},
		// A 401 here means bad credentials, not an expired session
		SkipAuthRecovery: true,
	}, &resp)
	if err == nil && (resp.AccessToken == "" || resp.User == nil) {
		err = &client.Error{Kind: client.KindUnknown, Status: http.StatusOK}
	}
	if err != nil {
		return nil, m.fail(err, MsgLoginFailed)
	}

	if err := m.tokens.Save(ctx, resp.AccessToken, resp.User); err != nil {
		return nil, m.fail(fmt.Errorf("failed to save session: %w", err), MsgLoginFailed)
	}

	m.mutate(func() { m.user = resp.User.Clone() })

	log.Info().Int64("userID", resp.User.ID).Str("role", resp.User.Role).Msg("logged in")

	return &resp, nil
}

// Register creates an account. It does not sign the new user in.
func (m *Manager) Register(ctx context.Context, req RegisterRequest) (*UserResponse, error) {
	m.begin()
	defer m.end()

	var resp UserResponse
	err := m.client.DoJSON(ctx, &client.Request{
		Method:           http.MethodPost,
		Path:             pathRegister,
		Body:             req,
		SkipAuthRecovery: true,
	}, &resp)
	if err != nil {
		return nil, m.fail(err, MsgRegisterFailed)
	}

	return &resp, nil
}

// Logout clears the stored session. It is idempotent and never navigates.
func (m *Manager) Logout(ctx context.Context) error {
	err := m.tokens.Clear(ctx)
	m.mutate(func() { m.user = nil })
	if err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	log.Info().Msg("logged out")

	return nil
}

// UpdateProfile updates userID. The cached user and State are refreshed only
// when userID is the signed in user.
func (m *Manager) UpdateProfile(ctx context.Context, userID int64, update ProfileUpdate) (*UserResponse, error) {
	m.begin()
	defer m.end()

	var resp UserResponse
	if err := m.client.Put(ctx, pathUsers+"/"+strconv.FormatInt(userID, 10), update, &resp); err != nil {
		return nil, m.fail(err, MsgUpdateProfileFailed)
	}

	if resp.User != nil {
		m.refreshUser(ctx, resp.User)
	}

	return &resp, nil
}

// ChangePassword changes the signed in user's password. The backend answers a
// wrong current password with 401, so expiry is checked locally instead of
// through 401 recovery.
func (m *Manager) ChangePassword(ctx context.Context, currentPassword, newPassword string) (*MessageResponse, error) {
	m.begin()
	defer m.end()

	if err := m.requireFreshToken(ctx); err != nil {
		return nil, m.fail(err, MsgChangePasswordFailed)
	}

	var resp MessageResponse
	err := m.client.DoJSON(ctx, &client.Request{
		Method:           http.MethodPut,
		Path:             pathChangePassword,
		Body:             changePasswordRequest{CurrentPassword: currentPassword, NewPassword: newPassword},
		SkipAuthRecovery: true,
	}, &resp)
	if err != nil {
		return nil, m.fail(err, MsgChangePasswordFailed)
	}

	return &resp, nil
}

// FetchProfile loads the signed in user's profile and refreshes the cache.
func (m *Manager) FetchProfile(ctx context.Context) (*models.User, error) {
	m.begin()
	defer m.end()

	if err := m.requireFreshToken(ctx); err != nil {
		return nil, m.fail(err, client.MsgUnknown)
	}

	var user models.User
	if err := m.client.Get(ctx, pathProfile, &user); err != nil {
		return nil, m.fail(err, client.MsgUnknown)
	}

	m.refreshUser(ctx, &user)

	return &user, nil
}

// ClearError resets State.Error.
func (m *Manager) ClearError() {
	m.mutate(func() { m.errMsg = "" })
}

// CheckExpiry forces a logout when a token is stored and has expired. It
// reports whether the session was ended.
func (m *Manager) CheckExpiry(ctx context.Context) bool {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return false
	}
	if !m.validator.IsExpired(token) {
		return false
	}

	log.Info().Msg("token expired during session, logging out")
	m.forceLogout(ctx, reasonExpired, MsgPollExpired, true)

	return true
}

// Close stops the poller and detaches from the client. Safe to call more
// than once.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		m.unregister()

		m.mu.Lock()
		m.closed = true
		cancel, done := m.cancelPoll, m.pollDone
		m.mu.Unlock()

		if cancel != nil {
			cancel()
			<-done
		}
	})
}

func (m *Manager) startPoller(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	ctx, m.cancelPoll = context.WithCancel(ctx)
	m.pollDone = make(chan struct{})

	go m.poll(ctx, m.pollDone)
}

func (m *Manager) poll(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckExpiry(ctx)
		}
	}
}

// forceLogout ends the session without a user action. Repeated calls leave
// the same end state; only the first one navigates or is counted.
func (m *Manager) forceLogout(ctx context.Context, reason, message string, navigate bool) {
	_, tokenErr := m.tokens.Token(ctx)
	hadToken := tokenErr == nil

	if err := m.tokens.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear session")
	}

	var hadUser bool
	m.mutate(func() {
		hadUser = m.user != nil
		m.user = nil
		m.errMsg = message
	})

	if !hadToken && !hadUser {
		return
	}

	log.Warn().Str("reason", reason).Msg("session ended")
	telemetry.GetMetrics().RecordForcedLogout(ctx, reason)

	if navigate && m.navigator != nil {
		m.navigator.ExpireSession()
	}
}

// requireFreshToken fails fast when there is no usable token.
func (m *Manager) requireFreshToken(ctx context.Context) error {
	token, err := m.tokens.Token(ctx)
	if err != nil {
		return &client.Error{Kind: client.KindAuthExpired, Message: MsgNotAuthenticated, Err: err}
	}

	if m.validator.IsExpired(token) {
		m.forceLogout(ctx, reasonExpired, MsgSessionExpired, true)
		return &client.Error{Kind: client.KindAuthExpired, Message: MsgSessionExpired, Err: client.ErrSessionExpired}
	}

	return nil
}

// refreshUser replaces the cached user when u is the signed in user.
func (m *Manager) refreshUser(ctx context.Context, u *models.User) {
	sess, err := store.Load(ctx, m.tokens)
	if err != nil || sess.User.ID != u.ID {
		return
	}

	if err := m.tokens.Save(ctx, sess.Token, u); err != nil {
		log.Warn().Err(err).Msg("failed to update cached user")
		return
	}

	m.mutate(func() { m.user = u.Clone() })
}

// fail records err in State and returns it normalized with its display
// message. Unclassified failures show the operation's fallback message.
func (m *Manager) fail(err error, fallback string) error {
	msg := fallback
	if client.KindOf(err) != client.KindUnknown {
		msg = client.MessageOr(err, fallback)
	}
	m.mutate(func() { m.errMsg = msg })

	var apiErr *client.Error
	if errors.As(err, &apiErr) {
		out := *apiErr
		out.Message = msg
		return &out
	}

	return &client.Error{Kind: client.KindUnknown, Message: msg, Err: err}
}

func (m *Manager) begin() {
	m.mutate(func() {
		m.inflight++
		m.errMsg = ""
	})
}

func (m *Manager) end() {
	m.mutate(func() { m.inflight-- })
}

// mutate applies fn under the lock and publishes the resulting snapshot.
// Subscribers never see an older snapshot after a newer one.
func (m *Manager) mutate(fn func()) {
	m.mu.Lock()
	fn()
	m.gen++
	gen := m.gen
	snap := m.snapshotLocked()
	subs := make([]func(State), 0, len(m.subs))
	for _, sub := range m.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	if gen <= m.delivered {
		return
	}
	m.delivered = gen

	for _, sub := range subs {
		sub(snap)
	}
}

func (m *Manager) snapshotLocked() State {
	return State{
		User:    m.user.Clone(),
		Loading: m.booting || m.inflight > 0,
		Error:   m.errMsg,
	}
}
