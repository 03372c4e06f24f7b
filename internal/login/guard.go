package login

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/auth"
	"github.com/wolfeidau/billstock/internal/session"
)

// Outcome is what a guard check decided.
type Outcome int

const (
	// DecisionSuspend means the session is still loading; decide later.
	DecisionSuspend Outcome = iota
	DecisionAllow
	DecisionRedirect
)

func (o Outcome) String() string {
	switch o {
	case DecisionSuspend:
		return "suspend"
	case DecisionAllow:
		return "allow"
	case DecisionRedirect:
		return "redirect"
	default:
		return "unknown(" + strconv.Itoa(int(o)) + ")"
	}
}

// Decision is the result of Guard.Check. Location is set for redirects.
type Decision struct {
	Outcome  Outcome
	Location string
}

// RouteOption configures a guarded route.
type RouteOption func(*route)

// Public lets unauthenticated users through.
func Public() RouteOption {
	return func(r *route) {
		r.requireAuth = false
	}
}

// AllowRoles restricts the route to users holding one of roles. Admins are
// always allowed.
func AllowRoles(roles ...string) RouteOption {
	return func(r *route) {
		r.allowedRoles = append(r.allowedRoles, roles...)
	}
}

type route struct {
	prefix       string
	requireAuth  bool
	allowedRoles []string
}

// Guard decides whether the current session may visit a path. Paths that
// match no registered route require authentication and accept any role.
type Guard struct {
	loginPath   string
	landingPath string
	routes      []route
}

// NewGuard creates a guard redirecting to loginPath, or to landingPath when
// the user is signed in but lacks the role. The login path is public.
func NewGuard(loginPath, landingPath string) *Guard {
	g := &Guard{loginPath: loginPath, landingPath: landingPath}
	g.Handle(loginPath, Public())
	return g
}

// Handle registers options for every path under prefix. The longest matching
// prefix wins.
func (g *Guard) Handle(prefix string, opts ...RouteOption) {
	r := route{prefix: prefix, requireAuth: true}
	for _, opt := range opts {
		opt(&r)
	}
	g.routes = append(g.routes, r)
}

func (g *Guard) LoginPath() string {
	return g.loginPath
}

func (g *Guard) LandingPath() string {
	return g.landingPath
}

// Check evaluates path against state.
func (g *Guard) Check(state session.State, path string) Decision {
	if state.Loading {
		return Decision{Outcome: DecisionSuspend}
	}

	r := g.match(path)
	if !r.requireAuth {
		return Decision{Outcome: DecisionAllow}
	}

	if !state.IsAuthenticated() {
		log.Debug().Str("path", path).Msg("not authenticated, redirecting to login")
		return Decision{Outcome: DecisionRedirect, Location: LoginURL(g.loginPath, path, false)}
	}

	if auth.HasAnyRole(state.User, r.allowedRoles) {
		return Decision{Outcome: DecisionAllow}
	}

	log.Debug().Str("path", path).Str("role", state.User.Role).Msg("insufficient role, redirecting to landing page")

	return Decision{Outcome: DecisionRedirect, Location: g.landingPath}
}

func (g *Guard) match(path string) route {
	best := route{requireAuth: true}
	bestLen := -1

	for _, r := range g.routes {
		if !matchesPrefix(path, r.prefix) || len(r.prefix) <= bestLen {
			continue
		}
		best, bestLen = r, len(r.prefix)
	}

	return best
}

// matchesPrefix matches whole path segments so /users doesn't cover /usersx.
func matchesPrefix(path, prefix string) bool {
	if prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	rest := path[len(prefix):]
	return rest == "" || rest[0] == '/' || rest[0] == '?'
}

// Middleware guards HTTP handlers with the session returned by state. A
// loading session is answered with 503 and Retry-After so clients try again.
func (g *Guard) Middleware(state func() session.State) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := g.Check(state(), r.URL.Path)

			switch d.Outcome {
			case DecisionAllow:
				next.ServeHTTP(w, r)
			case DecisionRedirect:
				http.Redirect(w, r, d.Location, http.StatusFound)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "session loading", http.StatusServiceUnavailable)
			}
		})
	}
}
