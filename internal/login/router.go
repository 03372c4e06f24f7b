package login

import (
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/client"
	"github.com/wolfeidau/billstock/internal/session"
)

var _ client.Navigator = (*Router)(nil)

// Router tracks the current location and performs guard redirects. It is the
// Navigator used by headless clients.
type Router struct {
	loginPath string

	mu      sync.Mutex
	current string
	history []string
}

func NewRouter(loginPath, start string) *Router {
	return &Router{loginPath: loginPath, current: start, history: []string{start}}
}

// Current returns the current location, including any query.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// History returns every location visited, oldest first.
func (r *Router) History() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...)
}

// Redirect moves to location. Redirecting to the current location is a no-op;
// the return value reports whether the location changed.
func (r *Router) Redirect(location string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if location == r.current {
		return false
	}

	log.Debug().Str("from", r.current).Str("to", location).Msg("navigating")

	r.current = location
	r.history = append(r.history, location)

	return true
}

// Visit checks path with g and moves there, or to the guard's redirect. A
// suspended decision leaves the location unchanged.
func (r *Router) Visit(g *Guard, state session.State, path string) Decision {
	d := g.Check(state, path)
	switch d.Outcome {
	case DecisionAllow:
		r.Redirect(path)
	case DecisionRedirect:
		r.Redirect(d.Location)
	}
	return d
}

// ExpireSession sends the user to login flagged as an expired session,
// remembering where they were. It does nothing when already on login.
func (r *Router) ExpireSession() {
	r.mu.Lock()
	current := r.current
	r.mu.Unlock()

	path := pathOnly(current)
	if path == r.loginPath {
		return
	}

	r.Redirect(LoginURL(r.loginPath, current, true))
}
