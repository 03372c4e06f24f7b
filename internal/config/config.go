package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the client configuration file, normally ~/.billstock/config.yaml.
type Config struct {
	ServerURL       string        `yaml:"server_url"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ExpiryThreshold time.Duration `yaml:"expiry_threshold"`
	PollInterval    time.Duration `yaml:"poll_interval"`

	LoginPath   string `yaml:"login_path"`
	LandingPath string `yaml:"landing_path"`
	// RefreshPath enables token refresh on 401 when set, e.g. /auth/refresh.
	RefreshPath string `yaml:"refresh_path"`
	// CacheDir enables a disk HTTP cache for cacheable GETs.
	CacheDir string `yaml:"cache_dir"`

	Store StoreConfig `yaml:"store"`
}

// StoreConfig selects where the session is persisted.
type StoreConfig struct {
	Backend string `yaml:"backend"`
	// Dir overrides the file backend directory.
	Dir         string `yaml:"dir"`
	RedisAddr   string `yaml:"redis_addr"`
	RedisPrefix string `yaml:"redis_prefix"`
}

// Default returns the built in configuration.
func Default() *Config {
	return &Config{
		ServerURL:       "http://localhost:5000/api",
		RequestTimeout:  10 * time.Second,
		ExpiryThreshold: 50 * time.Minute,
		PollInterval:    60 * time.Second,
		LoginPath:       "/login",
		LandingPath:     "/dashboard",
		Store: StoreConfig{
			Backend:     BackendFile,
			RedisPrefix: "billstock:session",
		},
	}
}

// DefaultPath returns ~/.billstock/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".billstock", "config.yaml"), nil
}

// Load reads path over the defaults and validates the result. A missing file
// returns an error matching fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}

	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	u, err := url.Parse(c.ServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("server_url must be an absolute URL, got %q", c.ServerURL))
	}

	for name, d := range map[string]time.Duration{
		"request_timeout":  c.RequestTimeout,
		"expiry_threshold": c.ExpiryThreshold,
		"poll_interval":    c.PollInterval,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}

	for name, p := range map[string]string{
		"login_path":   c.LoginPath,
		"landing_path": c.LandingPath,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s must start with /, got %q", name, p))
		}
	}

	if c.RefreshPath != "" && !strings.HasPrefix(c.RefreshPath, "/") {
		errs = append(errs, fmt.Errorf("refresh_path must start with /, got %q", c.RefreshPath))
	}

	switch c.Store.Backend {
	case BackendFile, BackendMemory:
	case BackendRedis:
		if c.Store.RedisAddr == "" {
			errs = append(errs, errors.New("store.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown store.backend %q", c.Store.Backend))
	}

	return errors.Join(errs...)
}
