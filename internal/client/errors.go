package client

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Kind classifies a normalized request failure.
type Kind string

const (
	KindNetwork     Kind = "network"      // No response reached the client
	KindAuthExpired Kind = "auth_expired" // 401 that could not be recovered
	KindForbidden   Kind = "forbidden"    // 403
	KindNotFound    Kind = "not_found"    // 404
	KindServer      Kind = "server"       // 5xx
	KindValidation  Kind = "validation"   // Other 4xx with a structured payload
	KindUnknown     Kind = "unknown"
)

// Default messages used when the server doesn't supply one.
const (
	MsgNetwork        = "Network error. Please check your internet connection."
	MsgSessionExpired = "Session expired. Please log in again."
	MsgForbidden      = "You do not have permission to perform this action."
	MsgNotFound       = "The requested resource was not found."
	MsgServer         = "Server error. Please try again later."
	MsgUnknown        = "An unexpected error occurred"
)

// ErrSessionExpired is the terminal error for requests whose 401 recovery failed.
var ErrSessionExpired = errors.New("session expired")

// Error is the uniform shape every failed request is normalized to.
type Error struct {
	Kind    Kind
	Status  int
	Message string
	// Payload holds the decoded JSON error body, if any.
	Payload map[string]any
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the Kind of err, or KindUnknown if err isn't an *Error.
func KindOf(err error) Kind {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUnknown
}

// MessageOr returns the normalized message carried by err, or fallback when
// there is none.
func MessageOr(err error, fallback string) string {
	var apiErr *Error
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func networkError(err error) *Error {
	return &Error{
		Kind:    KindNetwork,
		Message: MsgNetwork,
		Err:     err,
	}
}

func sessionExpiredError(cause error) *Error {
	err := ErrSessionExpired
	if cause != nil && !errors.Is(cause, ErrSessionExpired) {
		err = errors.Join(ErrSessionExpired, cause)
	}

	return &Error{
		Kind:    KindAuthExpired,
		Status:  http.StatusUnauthorized,
		Message: MsgSessionExpired,
		Err:     err,
	}
}

// responseError maps a non-2xx response onto an *Error.
func responseError(resp *Response) *Error {
	payload := decodePayload(resp.Body)
	serverMsg := payloadMessage(payload)

	e := &Error{
		Status:  resp.Status,
		Payload: payload,
	}

	switch {
	case resp.Status == http.StatusForbidden:
		e.Kind = KindForbidden
		e.Message = orDefault(serverMsg, MsgForbidden)
	case resp.Status == http.StatusNotFound:
		e.Kind = KindNotFound
		e.Message = orDefault(serverMsg, MsgNotFound)
	case resp.Status >= http.StatusInternalServerError:
		e.Kind = KindServer
		e.Message = orDefault(serverMsg, MsgServer)
	case payload != nil:
		e.Kind = KindValidation
		e.Message = serverMsg
	default:
		e.Kind = KindUnknown
		e.Message = MsgUnknown
	}

	return e
}

func decodePayload(body []byte) map[string]any {
	if len(body) == 0 {
		return nil
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil
	}
	return payload
}

func payloadMessage(payload map[string]any) string {
	if msg, ok := payload["error"].(string); ok {
		return msg
	}
	return ""
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
