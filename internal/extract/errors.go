package extract

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrorKind classifies a failed extraction call.
type ErrorKind string

const (
	KindRateLimited ErrorKind = "RateLimited"
	KindServerError ErrorKind = "ServerError"
	KindTimeout     ErrorKind = "Timeout"
	KindBadRequest  ErrorKind = "BadRequest"
	KindAuthError   ErrorKind = "AuthError"
)

// RemoteError is a classified failure from the extraction endpoint.
// RetryAfter carries the server's wait hint when one was provided.
type RemoteError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("extraction %s (status %d): %s", e.Kind, e.StatusCode, truncate(e.Message, 200))
}

// Transient reports whether the failure is expected to succeed on retry.
func (e *RemoteError) Transient() bool {
	switch e.Kind {
	case KindRateLimited, KindServerError, KindTimeout:
		return true
	}
	return false
}

// IsTransient checks if an error is worth retrying.
func IsTransient(err error) bool {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return remote.Transient()
	}
	return false
}

// KindOf returns the classification of err for gap reasons and telemetry.
func KindOf(err error) string {
	var remote *RemoteError
	if errors.As(err, &remote) {
		return string(remote.Kind)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "Cancelled"
	}
	return "Error"
}

// classifyStatus maps an HTTP status to an error kind.
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusTooManyRequests:
		return KindRateLimited
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return KindTimeout
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return KindAuthError
	case code >= 500:
		return KindServerError
	default:
		return KindBadRequest
	}
}
