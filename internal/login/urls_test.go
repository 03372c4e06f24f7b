package login

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLoginURL(t *testing.T) {
	assert.Equal(t, "/login?session_expired=true&from=/x", LoginURL("/login", "/x", true))
	assert.Equal(t, "/login?from=/x", LoginURL("/login", "/x", false))
	assert.Equal(t, "/login?session_expired=true", LoginURL("/login", "", true))
	assert.Equal(t, "/login", LoginURL("/login", "", false))
	assert.Equal(t, "/login?session_expired=true", LoginURL("/login", "/login?from=/a", true))
	assert.Equal(t, "/login?from=/billing%3Fpage%3D2", LoginURL("/login", "/billing?page=2", false))
}

func TestFromAndSessionExpired(t *testing.T) {
	loc := LoginURL("/login", "/billing?page=2", true)

	assert.Equal(t, "/billing?page=2", From(loc))
	assert.True(t, SessionExpired(loc))
	assert.False(t, SessionExpired("/login?from=/x"))
	assert.Empty(t, From("/login"))
}

func TestReturnPath(t *testing.T) {
	tests := []struct {
		from string
		want string
	}{
		{from: "/inventory", want: "/inventory"},
		{from: "/billing?page=2", want: "/billing?page=2"},
		{from: "", want: "/dashboard"},
		{from: "inventory", want: "/dashboard"},
		{from: "//evil.example.com/x", want: "/dashboard"},
		{from: "/\\evil.example.com", want: "/dashboard"},
		{from: "https://evil.example.com/", want: "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.from, func(t *testing.T) {
			assert.Equal(t, tt.want, ReturnPath(tt.from, "/dashboard"))
		})
	}
}
