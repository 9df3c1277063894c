// Package resilience provides the error taxonomy, retry, and circuit breaker
// used around external source calls.
package resilience

import (
	"errors"
	"net"
	"strings"
	"syscall"
)

// TransientError wraps a network or server-side failure (timeout, 5xx) that
// did not succeed but is not the caller's fault. Transient errors fail fast
// to the fallback path; only rate-limit errors are retried.
type TransientError struct {
	Err        error
	StatusCode int
}

func (e *TransientError) Error() string {
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// NewTransientError wraps an error as transient with an optional HTTP status code.
func NewTransientError(err error, statusCode int) *TransientError {
	return &TransientError{Err: err, StatusCode: statusCode}
}

// RateLimitError marks an upstream 429-equivalent response. This is the only
// error class the fetch path retries.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return e.Err.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError wraps an upstream rate-limit response.
func NewRateLimitError(err error) *RateLimitError {
	return &RateLimitError{Err: err}
}

// AuthError marks missing or rejected credentials. Never retried; the fetch
// layer short-circuits before any network call when credentials are known bad.
type AuthError struct {
	Service string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Service != "" {
		return e.Service + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// NewAuthError wraps a credential failure for the named service.
func NewAuthError(service string, err error) *AuthError {
	return &AuthError{Service: service, Err: err}
}

// IsRateLimit reports whether the error chain contains a RateLimitError.
func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

// IsAuth reports whether the error chain contains an AuthError.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsTransient returns true if the error (or any error in its chain) is a
// TransientError or RateLimitError, or matches common transient network
// patterns (timeouts, connection resets, DNS failures).
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var te *TransientError
	if errors.As(err, &te) {
		return true
	}
	if IsRateLimit(err) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// ClassifyHTTPStatus wraps err according to the upstream status code:
// 429 becomes a RateLimitError, 401/403 an AuthError, 408/5xx a
// TransientError. Other statuses pass through unchanged.
func ClassifyHTTPStatus(service string, statusCode int, err error) error {
	switch {
	case statusCode == 429:
		return NewRateLimitError(err)
	case statusCode == 401 || statusCode == 403:
		return NewAuthError(service, err)
	case statusCode == 408 || statusCode >= 500:
		return NewTransientError(err, statusCode)
	default:
		return err
	}
}
