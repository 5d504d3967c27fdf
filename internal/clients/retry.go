package clients

import (
	"context"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"
)

// RetryConfig defines retry behavior
type RetryConfig struct {
	MaxAttempts     int           // Total attempts including the first one
	InitialBackoff  time.Duration // Delay before the second attempt
	MaxBackoff      time.Duration // Upper bound for a single delay
	BackoffFactor   float64       // Multiplier for exponential backoff
	Jitter          float64       // Random jitter factor (0-1)
	RetryableErrors []int         // HTTP status codes to retry
}

// DefaultRetryConfig returns the SP-API rate limit policy: 429 only, doubling from 2s
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
		BackoffFactor:  2.0,
		RetryableErrors: []int{
			http.StatusTooManyRequests,
		},
	}
}

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep waits for d, returning ctx.Err() if the context ends first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier handles retry logic with exponential backoff
type Retrier struct {
	config *RetryConfig
	sleep  SleepFunc
}

// NewRetrier creates a new retrier with the given config. A nil sleep uses Sleep.
func NewRetrier(config *RetryConfig, sleep SleepFunc) *Retrier {
	if config == nil {
		config = DefaultRetryConfig()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if sleep == nil {
		sleep = Sleep
	}
	return &Retrier{config: config, sleep: sleep}
}

// ShouldRetry determines if a status code should be retried
func (r *Retrier) ShouldRetry(statusCode int) bool {
	for _, code := range r.config.RetryableErrors {
		if statusCode == code {
			return true
		}
	}
	return false
}

// CalculateBackoff returns the delay after the given zero-based attempt.
// A Retry-After hint wins when it is longer than the computed delay.
func (r *Retrier) CalculateBackoff(attempt int, retryAfter time.Duration) time.Duration {
	backoff := float64(r.config.InitialBackoff) * math.Pow(r.config.BackoffFactor, float64(attempt))

	if r.config.Jitter > 0 {
		jitter := backoff * r.config.Jitter * (rand.Float64()*2 - 1)
		backoff += jitter
	}

	if r.config.MaxBackoff > 0 && backoff > float64(r.config.MaxBackoff) {
		backoff = float64(r.config.MaxBackoff)
	}

	if retryAfter > time.Duration(backoff) {
		return retryAfter
	}
	return time.Duration(backoff)
}

// ParseRetryAfter extracts the Retry-After duration from an HTTP response
func ParseRetryAfter(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}

	retryAfter := resp.Header.Get("Retry-After")
	if retryAfter == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(retryAfter); err == nil {
		return time.Duration(seconds) * time.Second
	}

	if t, err := http.ParseTime(retryAfter); err == nil {
		return time.Until(t)
	}

	return 0
}

// RetryableResponseFunc performs one HTTP attempt
type RetryableResponseFunc func(ctx context.Context) (*http.Response, error)

// DoHTTP runs fn until it returns a non-retryable status. Transport errors are
// returned immediately. When every attempt was rate limited the last body is
// closed and a RateLimitError is returned. Otherwise the caller owns resp.Body.
func (r *Retrier) DoHTTP(ctx context.Context, operation string, fn RetryableResponseFunc) (*http.Response, error) {
	var retryAfter time.Duration

	for attempt := 0; attempt < r.config.MaxAttempts; attempt++ {
		resp, err := fn(ctx)
		if err != nil {
			return nil, err
		}

		if !r.ShouldRetry(resp.StatusCode) {
			return resp, nil
		}

		retryAfter = ParseRetryAfter(resp)
		resp.Body.Close()

		if attempt == r.config.MaxAttempts-1 {
			break
		}

		if err := r.sleep(ctx, r.CalculateBackoff(attempt, retryAfter)); err != nil {
			return nil, err
		}
	}

	return nil, &RateLimitError{
		Operation:  operation,
		Attempts:   r.config.MaxAttempts,
		RetryAfter: retryAfter,
	}
}
