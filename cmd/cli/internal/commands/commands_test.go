package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/billstock/internal/config"
	"github.com/wolfeidau/billstock/internal/models"
	"github.com/wolfeidau/billstock/internal/store/memory"
	"github.com/wolfeidau/billstock/internal/store/redis"
)

func testToken(t *testing.T, ttl time.Duration) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  1,
		"role": "staff",
		"exp":  time.Now().Add(ttl).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newBackend(t *testing.T) *httptest.Server {
	t.Helper()
	token := testToken(t, 24*time.Hour)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid username or password"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"user":         map[string]any{"id": 1, "username": req["username"], "role": "staff"},
		})
	})
	mux.HandleFunc("GET /api/auth/profile", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id": 1, "username": "alice", "full_name": "Alice Liddell", "role": "staff",
			"created_at": "2024-03-01T09:30:15.123456",
		})
	})
	mux.HandleFunc("GET /api/products", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, http.StatusOK, []map[string]any{{"id": 3, "name": "Widget", "page": r.URL.Query().Get("page")}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// testGlobals points the CLI at srv with a file store under a temp dir.
func testGlobals(t *testing.T, srv *httptest.Server) (*Globals, *bytes.Buffer) {
	t.Helper()
	dir := t.TempDir()

	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := fmt.Sprintf("server_url: %s/api\nstore:\n  backend: file\n  dir: %s\n", srv.URL, filepath.Join(dir, "credentials"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	var out bytes.Buffer
	return &Globals{ConfigPath: cfgPath, Out: &out, In: strings.NewReader("")}, &out
}

func TestGlobals_LoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("explicit missing file fails", func(t *testing.T) {
		g := &Globals{ConfigPath: filepath.Join(dir, "missing.yaml")}
		_, err := g.LoadConfig()
		require.Error(t, err)
	})

	t.Run("flags override file", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server_url: http://file.example/api\n"), 0o600))

		g := &Globals{ConfigPath: path, Server: "http://flag.example/api", Store: "memory"}
		cfg, err := g.LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, "http://flag.example/api", cfg.ServerURL)
		assert.Equal(t, config.BackendMemory, cfg.Store.Backend)
	})

	t.Run("invalid override", func(t *testing.T) {
		path := filepath.Join(dir, "config.yaml")
		g := &Globals{ConfigPath: path, Store: "sqlite"}
		_, err := g.LoadConfig()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown store.backend")
	})
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, closeFn, err := openStore(ctx, config.StoreConfig{Backend: config.BackendMemory})
		require.NoError(t, err)
		assert.Nil(t, closeFn)
		assert.IsType(t, &memory.TokenStore{}, s)
	})

	t.Run("redis", func(t *testing.T) {
		mr := miniredis.RunT(t)

		s, closeFn, err := openStore(ctx, config.StoreConfig{Backend: config.BackendRedis, RedisAddr: mr.Addr(), RedisPrefix: "test"})
		require.NoError(t, err)
		require.NotNil(t, closeFn)
		defer func() { require.NoError(t, closeFn(ctx)) }()
		assert.IsType(t, &redis.TokenStore{}, s)

		require.NoError(t, s.Save(ctx, "T", &models.User{ID: 1, Role: models.RoleStaff}))
		assert.True(t, mr.Exists("test:token"))
	})

	t.Run("redis unreachable", func(t *testing.T) {
		_, _, err := openStore(ctx, config.StoreConfig{Backend: config.BackendRedis, RedisAddr: "127.0.0.1:1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to connect to redis")
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		s, _, err := openStore(ctx, config.StoreConfig{Backend: config.BackendFile, Dir: dir})
		require.NoError(t, err)
		require.NoError(t, s.Save(ctx, "T", &models.User{ID: 1}))
		assert.FileExists(t, filepath.Join(dir, "session.json"))
	})
}

func TestSessionCommands(t *testing.T) {
	srv := newBackend(t)
	globals, out := testGlobals(t, srv)
	ctx := context.Background()

	// Password comes from the prompt
	globals.In = strings.NewReader("secret\n")
	require.NoError(t, (&LoginCmd{Username: "alice", From: "/inventory/products"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Logged in as alice (staff)")
	assert.Contains(t, out.String(), "Continue to /inventory/products")

	out.Reset()
	require.NoError(t, (&StatusCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "AUTHENTICATED  true")
	assert.Contains(t, out.String(), "alice (id 1)")

	out.Reset()
	require.NoError(t, (&ProfileCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Alice Liddell")
	assert.Contains(t, out.String(), "2024-03-01 09:30")

	out.Reset()
	require.NoError(t, (&TokenCmd{}).Run(ctx, globals))
	var info tokenInfo
	require.NoError(t, json.Unmarshal(out.Bytes(), &info))
	assert.Equal(t, "staff", info.Claims["role"])
	assert.False(t, info.Expired)

	out.Reset()
	require.NoError(t, (&RequestCmd{Method: "get", Path: "/products", Query: []string{"page=2"}}).Run(ctx, globals))
	assert.Contains(t, out.String(), `"name": "Widget"`)
	assert.Contains(t, out.String(), `"page": "2"`)

	out.Reset()
	require.NoError(t, (&GuardCmd{Path: "/admin/users"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "redirect -> /dashboard")

	out.Reset()
	require.NoError(t, (&LogoutCmd{}).Run(ctx, globals))
	assert.Contains(t, out.String(), "Logged out")

	out.Reset()
	require.NoError(t, (&GuardCmd{Path: "/billing/sales"}).Run(ctx, globals))
	assert.Contains(t, out.String(), "redirect -> /login?from=/billing/sales")
	assert.Contains(t, out.String(), "billstock login --from /billing/sales")

	err := (&TokenCmd{}).Run(ctx, globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestLoginCmd_BadPassword(t *testing.T) {
	srv := newBackend(t)
	globals, _ := testGlobals(t, srv)

	err := (&LoginCmd{Username: "alice", Password: "wrong"}).Run(context.Background(), globals)
	require.Error(t, err)
	assert.Equal(t, "Invalid username or password", err.Error())
}

func TestLoginCmd_MissingPassword(t *testing.T) {
	srv := newBackend(t)
	globals, _ := testGlobals(t, srv)

	err := (&LoginCmd{Username: "alice"}).Run(context.Background(), globals)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password is required")
}

func TestRequestCmd_InvalidInput(t *testing.T) {
	globals := &Globals{}

	err := (&RequestCmd{Method: "POST", Path: "/products", Data: "{nope"}).Run(context.Background(), globals)
	assert.EqualError(t, err, "request body must be valid JSON")

	err = (&RequestCmd{Method: "GET", Path: "/products", Query: []string{"page"}}).Run(context.Background(), globals)
	assert.ErrorContains(t, err, "want key=value")
}

func TestUpdateProfileCmd_NothingToUpdate(t *testing.T) {
	err := (&UpdateProfileCmd{}).Run(context.Background(), &Globals{})
	assert.ErrorContains(t, err, "nothing to update")
}

func TestDescribe(t *testing.T) {
	alice := &models.User{Username: "alice", Role: models.RoleStaff}

	assert.Equal(t, "signed out", describe(stateOf(nil, "")))
	assert.Equal(t, "signed out: Your session has expired. Please log in again.", describe(stateOf(nil, "Your session has expired. Please log in again.")))
	assert.Equal(t, "signed in as alice (staff)", describe(stateOf(alice, "")))
}
