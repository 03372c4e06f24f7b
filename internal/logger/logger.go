package logger

import (
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds the process logger and installs it as the global log.Logger.
// Output goes to stderr so command output on stdout stays clean.
func Setup(dev bool) zerolog.Logger {
	var logger zerolog.Logger
	level := zerolog.InfoLevel
	if dev {
		level = zerolog.DebugLevel
	}

	logger = zerolog.New(os.Stderr).Level(level).With().Timestamp().Caller().Logger()

	if dev {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr, FormatTimestamp: func(i any) string {
			return time.Now().Format(time.RFC3339)
		}}).Level(level).With().Stack().Logger()
	}

	log.Logger = logger

	return logger
}

var _ http.RoundTripper = (*RequestLogger)(nil)

// RequestLogger logs every outbound API call. Headers are never logged, the
// Authorization header carries the session token.
type RequestLogger struct {
	logger zerolog.Logger
	next   http.RoundTripper
}

func NewRequestLogger(logger zerolog.Logger, next http.RoundTripper) *RequestLogger {
	if next == nil {
		next = http.DefaultTransport
	}
	return &RequestLogger{logger: logger, next: next}
}

func (r *RequestLogger) RoundTrip(req *http.Request) (*http.Response, error) {
	started := time.Now()

	resp, err := r.next.RoundTrip(req)

	if err != nil {
		r.logger.Debug().
			Err(err).
			Str("method", req.Method).
			Str("path", req.URL.Path).
			Dur("duration", time.Since(started)).
			Msg("api call failed")

		return resp, err
	}

	ev := r.logger.Debug()
	if resp.StatusCode >= http.StatusInternalServerError {
		ev = r.logger.Warn()
	}

	ev.Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Str("requestID", req.Header.Get("X-Request-ID")).
		Dur("duration", time.Since(started)).
		Msg("api call")

	return resp, nil
}
