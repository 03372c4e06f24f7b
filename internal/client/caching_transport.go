package client

import (
	"net/http"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/billstock/internal/logger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewHTTPClient builds the http.Client used for API calls. The transport
// chain is: request logging -> otel instrumentation -> optional cache -> network.
func NewHTTPClient(cfg Config) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	var transport http.RoundTripper = http.DefaultTransport.(*http.Transport).Clone()

	switch {
	case cfg.CacheDir != "":
		// Use disk-based cache for persistence across restarts
		transport = newCachingTransport(httpcache.Cache(diskcache.New(cfg.CacheDir)), transport)
		log.Debug().Str("cacheDir", cfg.CacheDir).Msg("using disk http cache")
	case cfg.Cache:
		transport = newCachingTransport(httpcache.NewMemoryCache(), transport)
	}

	transport = otelhttp.NewTransport(transport)
	transport = logger.NewRequestLogger(log.Logger, transport)

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

func newCachingTransport(cache httpcache.Cache, next http.RoundTripper) *httpcache.Transport {
	t := httpcache.NewTransport(cache)
	t.Transport = next
	// Lets callers tell a revalidated/cached response from a fresh one
	t.MarkCachedResponses = true
	return t
}
