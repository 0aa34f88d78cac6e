package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrorType is the closed classification taxonomy for invocation failures.
// The first four are recoverable by retrying; the rest propagate immediately.
type ErrorType string

const (
	ErrorTypeRateLimited ErrorType = "rate_limited"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeTransport   ErrorType = "transport"
	ErrorTypeServer      ErrorType = "server"
	ErrorTypeAuth        ErrorType = "authentication"
	ErrorTypeBadRequest  ErrorType = "bad_request"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Retryable reports whether a failure of this type may be retried.
func (t ErrorType) Retryable() bool {
	switch t {
	case ErrorTypeRateLimited, ErrorTypeTimeout, ErrorTypeTransport, ErrorTypeServer:
		return true
	default:
		return false
	}
}

// Error represents a provider-neutral, classified LLM error. Provider
// adapters convert SDK errors into *Error so no raw transport error
// crosses the invocation boundary.
type Error struct {
	Type        ErrorType
	Message     string
	RetryAfter  *time.Duration
	StatusCode  int
	ProviderErr error // Original provider-specific error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.ProviderErr != nil {
		return e.Message + ": " + e.ProviderErr.Error()
	}
	return e.Message
}

// Unwrap returns the underlying provider error.
func (e *Error) Unwrap() error {
	return e.ProviderErr
}

// Retryable reports whether this error's classification is retryable.
func (e *Error) Retryable() bool {
	return e.Type.Retryable()
}

// NewRateLimitError creates a new rate limit error.
func NewRateLimitError(message string, retryAfter *time.Duration, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeRateLimited,
		Message:     message,
		RetryAfter:  retryAfter,
		StatusCode:  http.StatusTooManyRequests,
		ProviderErr: providerErr,
	}
}

// NewTimeoutError creates a new timeout error.
func NewTimeoutError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeTimeout,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewTransportError creates a new connection/network error.
func NewTransportError(message string, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeTransport,
		Message:     message,
		ProviderErr: providerErr,
	}
}

// NewServerError creates a new transient server (5xx) error.
func NewServerError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeServer,
		Message:     message,
		StatusCode:  statusCode,
		ProviderErr: providerErr,
	}
}

// NewAuthError creates a new authentication/permission error.
func NewAuthError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeAuth,
		Message:     message,
		StatusCode:  statusCode,
		ProviderErr: providerErr,
	}
}

// NewBadRequestError creates a new invalid-request error.
func NewBadRequestError(message string, statusCode int, providerErr error) *Error {
	return &Error{
		Type:        ErrorTypeBadRequest,
		Message:     message,
		StatusCode:  statusCode,
		ProviderErr: providerErr,
	}
}

// Classify maps an arbitrary failure to its taxonomy label. Typed errors
// are classified from their reported category; anything else falls back
// to a case-insensitive keyword match on the error text. Unmatched errors
// classify as ErrorTypeUnknown. Classify is pure and deterministic.
func Classify(err error) ErrorType {
	if err == nil {
		return ErrorTypeUnknown
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.Type
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrorTypeTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTypeTimeout
		}
		return ErrorTypeTransport
	}

	return classifyMessage(err.Error())
}

// Keyword fallback for errors that arrive as bare strings. Order matters:
// "connection timeout" must classify as a timeout, not a transport fault.
func classifyMessage(msg string) ErrorType {
	m := strings.ToLower(msg)

	switch {
	case containsAny(m, "429", "rate limit", "rate_limit", "too many requests"):
		return ErrorTypeRateLimited
	case containsAny(m, "timeout", "timed out", "deadline exceeded"):
		return ErrorTypeTimeout
	case containsAny(m, "401", "403", "unauthorized", "forbidden", "authentication", "permission", "api key", "invalid x-api-key"):
		return ErrorTypeAuth
	case containsAny(m, "500", "502", "503", "504", "internal server", "bad gateway", "service unavailable", "overloaded"):
		return ErrorTypeServer
	case containsAny(m, "connection", "network", "broken pipe", "connection reset", "no such host", "eof"):
		return ErrorTypeTransport
	case containsAny(m, "400", "bad request", "invalid request", "invalid_request"):
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// ClassifyStatus maps an HTTP status code to a taxonomy label. Used by
// provider adapters that see the wire status directly.
func ClassifyStatus(code int) ErrorType {
	switch {
	case code == http.StatusTooManyRequests:
		return ErrorTypeRateLimited
	case code == http.StatusRequestTimeout:
		return ErrorTypeTimeout
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return ErrorTypeAuth
	case code >= 500:
		return ErrorTypeServer
	case code >= 400:
		return ErrorTypeBadRequest
	default:
		return ErrorTypeUnknown
	}
}

// AsError converts any failure into a classified *Error. Errors that are
// already classified pass through unchanged.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}
	return &Error{
		Type:        Classify(err),
		Message:     "llm invocation failed",
		ProviderErr: err,
	}
}

// IsRateLimitError checks if an error is a rate limit error.
func IsRateLimitError(err error) bool {
	return Classify(err) == ErrorTypeRateLimited
}

// IsRetryableError checks if an error is retryable.
func IsRetryableError(err error) bool {
	return Classify(err).Retryable()
}

// ExtractRetryAfter extracts the retry-after duration from an error.
func ExtractRetryAfter(err error) *time.Duration {
	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr.RetryAfter
	}
	return nil
}
