package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/store"
	"github.com/wolfeidau/billstock/internal/telemetry"
)

const (
	// DefaultTimeout bounds every outbound call.
	DefaultTimeout = 10 * time.Second

	maxResponseBytes = 10 << 20
)

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Debug     bool

	// CacheDir enables a disk-backed HTTP cache when set.
	CacheDir string
	// Cache enables an in-memory HTTP cache when CacheDir is empty.
	Cache bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:5000/api",
		Timeout:   DefaultTimeout,
		Debug:     false,
	}
}

// Request describes one logical API call. It is replayable: the body is
// re-encoded on every attempt.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// SkipAuthRecovery disables the 401 recovery path, for endpoints such as
	// login where a 401 means bad credentials rather than an expired session.
	SkipAuthRecovery bool

	retried bool
}

// Response is a successful (2xx/3xx) API response with its body buffered.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Decode unmarshals the JSON body into v.
func (r *Response) Decode(v any) error {
	if len(r.Body) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRecoverer sets the action run once per batch of 401 failures.
func WithRecoverer(r Recoverer) Option {
	return func(c *Client) {
		c.recoverer = r
	}
}

// WithNavigator sets where forced logouts redirect to.
func WithNavigator(n Navigator) Option {
	return func(c *Client) {
		c.navigator = n
	}
}

// Client issues authenticated requests against the REST backend. It attaches
// the stored token as a bearer credential and hands 401s to its Coordinator.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     store.TokenStore

	recoverer   Recoverer
	navigator   Navigator
	coordinator *Coordinator
}

// New creates a client for cfg.ServerURL reading tokens from tokens.
func New(cfg Config, tokens store.TokenStore, opts ...Option) (*Client, error) {
	if tokens == nil {
		return nil, errors.New("token store is required")
	}

	baseURL, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, fmt.Errorf("invalid server URL: %q", cfg.ServerURL)
	}

	c := &Client{
		baseURL:   baseURL,
		tokens:    tokens,
		recoverer: SignOut{},
		navigator: nopNavigator{},
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = NewHTTPClient(cfg)
	}

	c.coordinator = NewCoordinator(c.recoverer, tokens, c.navigator)

	log.Debug().
		Str("serverURL", cfg.ServerURL).
		Dur("timeout", c.httpClient.Timeout).
		Msg("initialized api client")

	return c, nil
}

// Coordinator returns the 401 recovery coordinator shared by all requests.
func (c *Client) Coordinator() *Coordinator {
	return c.coordinator
}

// HTTPClient returns the underlying http.Client.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do sends req. Failures are always returned as *Error.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	return c.exchange(ctx, req, c.currentToken(ctx))
}

// Get sends a GET and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, &Request{Method: http.MethodGet, Path: path}, out)
}

// Post sends a POST with in as the JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, &Request{Method: http.MethodPost, Path: path, Body: in}, out)
}

// Put sends a PUT with in as the JSON body and decodes the response into out.
func (c *Client) Put(ctx context.Context, path string, in, out any) error {
	return c.doJSON(ctx, &Request{Method: http.MethodPut, Path: path, Body: in}, out)
}

// DoJSON sends req and decodes the response into out.
func (c *Client) DoJSON(ctx context.Context, req *Request, out any) error {
	return c.doJSON(ctx, req, out)
}

func (c *Client) doJSON(ctx context.Context, req *Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := resp.Decode(out); err != nil {
		return &Error{Kind: KindUnknown, Status: resp.Status, Message: MsgUnknown, Err: err}
	}
	return nil
}

// currentToken reads the token synchronously; read failures mean no token.
func (c *Client) currentToken(ctx context.Context) string {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNoSession) {
			log.Warn().Err(err).Msg("failed to read session token, sending unauthenticated")
		}
		return ""
	}
	return token
}

func (c *Client) exchange(ctx context.Context, req *Request, token string) (*Response, error) {
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized && !req.SkipAuthRecovery {
		if req.retried {
			return nil, c.coordinator.Expire(ctx, token)
		}

		return c.coordinator.Recover(ctx, token, func(ctx context.Context, newToken string) (*Response, error) {
			retry := *req
			retry.retried = true
			return c.exchange(ctx, &retry, newToken)
		})
	}

	if resp.Status >= http.StatusBadRequest {
		apiErr := responseError(resp)
		telemetry.GetMetrics().RecordRequestError(ctx, string(apiErr.Kind))
		return nil, apiErr
	}

	return resp, nil
}

// send performs a single HTTP round trip.
func (c *Client) send(ctx context.Context, req *Request, token string) (*Response, error) {
	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, &Error{Kind: KindUnknown, Message: MsgUnknown, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		body = bytes.NewReader(data)
	}

	u := c.baseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, &Error{Kind: KindUnknown, Message: MsgUnknown, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", uuid.NewString())
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	telemetry.GetMetrics().RecordRequest(ctx)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Covers timeouts, refused connections and cancelled contexts
		log.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("request failed without response")
		telemetry.GetMetrics().RecordRequestError(ctx, string(KindNetwork))
		return nil, networkError(err)
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		telemetry.GetMetrics().RecordRequestError(ctx, string(KindNetwork))
		return nil, networkError(fmt.Errorf("failed to read response: %w", err))
	}

	return &Response{
		Status: httpResp.StatusCode,
		Header: httpResp.Header,
		Body:   data,
	}, nil
}
