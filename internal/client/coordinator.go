package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/store"
	"github.com/wolfeidau/billstock/internal/telemetry"
)

// DefaultRecoveryTimeout bounds one recovery, which is detached from the
// cancellation of the request that started it.
const DefaultRecoveryTimeout = DefaultTimeout * defaultRefreshTries

// errReplayRejected is the cause recorded when a request replayed with a
// recovered token is rejected again.
var errReplayRejected = errors.New("replayed request rejected")

// Recoverer is the action performed exactly once for a batch of concurrent
// 401 failures. It returns the token to replay requests with.
type Recoverer interface {
	Recover(ctx context.Context, failedToken string) (string, error)
}

// SignOut is the default Recoverer. The backend has no refresh endpoint, so
// recovery always fails and ends the session.
type SignOut struct{}

func (SignOut) Recover(ctx context.Context, failedToken string) (string, error) {
	return "", ErrSessionExpired
}

// Navigator receives the redirect side effect of a failed recovery.
type Navigator interface {
	// ExpireSession sends the user to the login entry point flagged as an
	// expired session. Must be a no-op when already there.
	ExpireSession()
}

type nopNavigator struct{}

func (nopNavigator) ExpireSession() {}

// Coordinator serializes 401 recoveries. The first 401 seen while idle
// becomes the leader and runs the Recoverer; every 401 arriving before the
// leader settles is parked in a FIFO queue and settled with the leader's
// outcome. At most one recovery is in flight at any time.
type Coordinator struct {
	recoverer Recoverer
	tokens    store.TokenStore
	navigator Navigator
	timeout   time.Duration

	mu         sync.Mutex
	recovering bool
	queue      pendingQueue
	listeners  map[int]func(ctx context.Context)
	nextID     int
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(recoverer Recoverer, tokens store.TokenStore, navigator Navigator) *Coordinator {
	if recoverer == nil {
		recoverer = SignOut{}
	}
	if navigator == nil {
		navigator = nopNavigator{}
	}

	return &Coordinator{
		recoverer: recoverer,
		tokens:    tokens,
		navigator: navigator,
		timeout:   DefaultRecoveryTimeout,
		listeners: make(map[int]func(ctx context.Context)),
	}
}

// OnSessionExpired registers fn to run after a recovery fails. The returned
// func removes it.
func (c *Coordinator) OnSessionExpired(fn func(ctx context.Context)) func() {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	c.listeners[id] = fn

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// Recovering reports whether a recovery is in flight.
func (c *Coordinator) Recovering() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.recovering
}

// Pending returns the number of requests parked behind the current recovery.
func (c *Coordinator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

// Recover handles a 401 for a request sent with failedToken. cont replays
// that request once a new token is available.
func (c *Coordinator) Recover(ctx context.Context, failedToken string, cont Continuation) (*Response, error) {
	c.mu.Lock()
	if c.recovering {
		entry := c.queue.enqueue(ctx, cont)
		queued := c.queue.len()
		c.mu.Unlock()

		telemetry.GetMetrics().RecordQueued(ctx)
		log.Debug().Int("queued", queued).Msg("401 during recovery, request queued")

		select {
		case res := <-entry.done:
			return res.resp, res.err
		case <-ctx.Done():
			// The entry is still settled when the leader finishes
			return nil, networkError(ctx.Err())
		}
	}

	// Someone already replaced the token this request was sent with, so
	// replay directly instead of starting another recovery.
	if current, err := c.tokens.Token(ctx); err == nil && current != "" && current != failedToken {
		c.mu.Unlock()
		log.Debug().Msg("token changed since request was sent, replaying")
		return cont(ctx, current)
	}

	c.recovering = true
	c.mu.Unlock()

	log.Info().Msg("session token rejected, starting recovery")

	// Every queued request shares the outcome, so the leader's caller going
	// away must not cancel it.
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	token, recoverErr := c.recoverer.Recover(rctx, failedToken)
	if recoverErr == nil && token == "" {
		recoverErr = ErrSessionExpired
	}

	c.mu.Lock()
	pending := c.queue.drain()
	c.recovering = false
	c.mu.Unlock()

	if recoverErr != nil {
		telemetry.GetMetrics().RecordRecovery(ctx, "failure")
		c.fail(rctx, recoverErr, pending)
		return nil, sessionExpiredError(recoverErr)
	}

	telemetry.GetMetrics().RecordRecovery(ctx, "success")
	log.Info().Int("replaying", len(pending)+1).Msg("session recovered, replaying requests")

	// The leader failed first so it replays first
	resp, err := cont(ctx, token)
	replayAll(pending, token)

	return resp, err
}

// Expire ends the session after a request replayed with rejectedToken got
// another 401. Only the first rejection of the stored token clears it, so
// later replays of the same batch just report the expiry.
func (c *Coordinator) Expire(ctx context.Context, rejectedToken string) *Error {
	if current, err := c.tokens.Token(ctx); err == nil && current == rejectedToken {
		c.fail(ctx, errReplayRejected, nil)
	}
	return sessionExpiredError(errReplayRejected)
}

// fail ends the session: the store is cleared, queued requests are rejected
// in arrival order, listeners are told and the user is sent to login.
func (c *Coordinator) fail(ctx context.Context, cause error, pending []*pendingEntry) {
	if !errors.Is(cause, ErrSessionExpired) {
		log.Warn().Err(cause).Msg("session recovery failed")
	}

	if err := c.tokens.Clear(ctx); err != nil {
		log.Error().Err(err).Msg("failed to clear session after recovery failure")
	}

	rejectAll(pending, sessionExpiredError(cause))

	c.mu.Lock()
	listeners := make([]func(ctx context.Context), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(ctx)
	}

	c.navigator.ExpireSession()
}
