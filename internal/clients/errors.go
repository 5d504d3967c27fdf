package clients

import (
	"fmt"
	"strings"
	"time"
)

// ConfigurationError means the client lacks credentials; no network call was made
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "remote order client is not configured: missing " + strings.Join(e.Missing, ", ")
}

// AuthorizationError means the marketplace rejected the credentials even after a forced refresh
type AuthorizationError struct {
	StatusCode  int
	Body        string
	Remediation string
}

func (e *AuthorizationError) Error() string {
	msg := fmt.Sprintf("authorization rejected by marketplace (status %d)", e.StatusCode)
	if e.Body != "" {
		msg += ": " + e.Body
	}
	if e.Remediation != "" {
		msg += ". " + e.Remediation
	}
	return msg
}

// RateLimitError means the backoff budget was used up while the marketplace kept answering 429
type RateLimitError struct {
	Operation  string
	Attempts   int
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	msg := fmt.Sprintf("rate limit exceeded for %s after %d attempts", e.Operation, e.Attempts)
	if e.RetryAfter > 0 {
		msg += fmt.Sprintf(", retry after %s", e.RetryAfter)
	}
	return msg
}

// APIError is a non-success answer that is neither rate limiting nor an authorization failure
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("marketplace API error (status %d): %s", e.StatusCode, e.Body)
}
