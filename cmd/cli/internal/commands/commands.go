package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/cmd/cli/internal/credentials"
	"github.com/wolfeidau/billstock/internal/auth"
	"github.com/wolfeidau/billstock/internal/client"
	"github.com/wolfeidau/billstock/internal/config"
	"github.com/wolfeidau/billstock/internal/login"
	"github.com/wolfeidau/billstock/internal/session"
	"github.com/wolfeidau/billstock/internal/store"
	"github.com/wolfeidau/billstock/internal/store/memory"
	"github.com/wolfeidau/billstock/internal/store/redis"
	"github.com/wolfeidau/billstock/internal/telemetry"
)

type Globals struct {
	Debug   bool
	Version string

	// ConfigPath is the config file; empty means ~/.billstock/config.yaml if present.
	ConfigPath string
	Server     string
	Store      string
	StoreDir   string
	RedisAddr  string
	Otel       bool

	// Out receives command output, os.Stdout when nil.
	Out io.Writer
	// In supplies prompted input, os.Stdin when nil.
	In io.Reader
}

func (g *Globals) out() io.Writer {
	if g.Out == nil {
		return os.Stdout
	}
	return g.Out
}

func (g *Globals) in() io.Reader {
	if g.In == nil {
		return os.Stdin
	}
	return g.In
}

// LoadConfig reads the config file and applies flag overrides.
func (g *Globals) LoadConfig() (*config.Config, error) {
	path := g.ConfigPath
	explicit := path != ""
	if !explicit {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path)
	switch {
	case err == nil:
	case !explicit && errors.Is(err, fs.ErrNotExist):
		cfg = config.Default()
	default:
		return nil, err
	}

	if g.Server != "" {
		cfg.ServerURL = g.Server
	}
	if g.Store != "" {
		cfg.Store.Backend = g.Store
	}
	if g.StoreDir != "" {
		cfg.Store.Dir = g.StoreDir
	}
	if g.RedisAddr != "" {
		cfg.Store.RedisAddr = g.RedisAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Runtime is the session stack a command runs against.
type Runtime struct {
	Config    *config.Config
	Tokens    store.TokenStore
	Validator *auth.Validator
	Client    *client.Client
	Router    *login.Router
	Guard     *login.Guard
	Manager   *session.Manager

	closers []func(context.Context) error
}

// NewRuntime wires config, store, client and session manager together.
func (g *Globals) NewRuntime(ctx context.Context) (*Runtime, error) {
	cfg, err := g.LoadConfig()
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Config: cfg}

	if g.Otel {
		shutdown, err := telemetry.InitTelemetry(ctx, "billstock-cli", g.Version)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize telemetry, continuing without metrics")
		} else {
			rt.closers = append(rt.closers, shutdown)
		}
	}

	tokens, closeStore, err := openStore(ctx, cfg.Store)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Tokens = tokens
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	rt.Validator = auth.NewValidator(cfg.ExpiryThreshold)
	rt.Router = login.NewRouter(cfg.LoginPath, cfg.LandingPath)
	rt.Guard = login.NewGuard(cfg.LoginPath, cfg.LandingPath)
	login.RegisterAppRoutes(rt.Guard)

	clientCfg := client.Config{
		ServerURL: cfg.ServerURL,
		Timeout:   cfg.RequestTimeout,
		Debug:     g.Debug,
		CacheDir:  cfg.CacheDir,
	}
	httpClient := client.NewHTTPClient(clientCfg)

	opts := []client.Option{
		client.WithHTTPClient(httpClient),
		client.WithNavigator(rt.Router),
	}
	if cfg.RefreshPath != "" {
		refreshURL, err := url.JoinPath(cfg.ServerURL, cfg.RefreshPath)
		if err != nil {
			_ = rt.Close()
			return nil, fmt.Errorf("invalid refresh path: %w", err)
		}
		opts = append(opts, client.WithRecoverer(client.NewTokenRefresher(httpClient, refreshURL, tokens)))
	}

	c, err := client.New(clientCfg, tokens, opts...)
	if err != nil {
		_ = rt.Close()
		return nil, err
	}
	rt.Client = c

	rt.Manager = session.New(c, tokens, rt.Validator,
		session.WithPollInterval(cfg.PollInterval),
		session.WithNavigator(rt.Router),
	)

	return rt, nil
}

// Close stops the manager and releases the store and telemetry.
func (rt *Runtime) Close() error {
	if rt.Manager != nil {
		rt.Manager.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.TokenStore, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewTokenStore(), nil, nil
	case config.BackendRedis:
		rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.RedisAddr, err)
		}
		log.Debug().Str("addr", cfg.RedisAddr).Msg("using redis session store")
		return redis.NewTokenStore(rdb, cfg.RedisPrefix), func(context.Context) error { return rdb.Close() }, nil
	default:
		s, err := credentials.NewStore(cfg.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize credential store: %w", err)
		}
		return s, nil, nil
	}
}
