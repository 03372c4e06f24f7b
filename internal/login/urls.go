package login

import (
	"net/url"
	"strings"
)

const (
	paramFrom           = "from"
	paramSessionExpired = "session_expired"
)

// LoginURL builds the login entry point, e.g.
// /login?session_expired=true&from=/inventory. from is omitted when empty or
// when it is the login page itself.
func LoginURL(loginPath, from string, expired bool) string {
	var params []string
	if expired {
		params = append(params, paramSessionExpired+"=true")
	}
	if from != "" && pathOnly(from) != loginPath {
		params = append(params, paramFrom+"="+escapePath(from))
	}

	if len(params) == 0 {
		return loginPath
	}

	return loginPath + "?" + strings.Join(params, "&")
}

// From returns the originally requested path carried by a login URL.
func From(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get(paramFrom)
}

// SessionExpired reports whether a login URL was reached by a forced logout.
func SessionExpired(location string) bool {
	u, err := url.Parse(location)
	if err != nil {
		return false
	}
	return u.Query().Get(paramSessionExpired) == "true"
}

// ReturnPath picks where to go after login: from when it is a local path,
// otherwise landing.
func ReturnPath(from, landing string) string {
	if !isLocalPath(from) {
		return landing
	}
	return from
}

func isLocalPath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	// Protocol relative (//host) and backslash tricks (/\host) leave the site
	if len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}

	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

func pathOnly(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 {
		return location[:i]
	}
	return location
}

// escapePath query-escapes p but keeps slashes readable.
func escapePath(p string) string {
	return strings.ReplaceAll(url.QueryEscape(p), "%2F", "/")
}
