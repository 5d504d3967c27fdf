package clients

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(status int, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{StatusCode: status, Header: header, Body: io.NopCloser(strings.NewReader("{}"))}
}

func TestCalculateBackoff(t *testing.T) {
	r := NewRetrier(&RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2,
	}, nil)

	assert.Equal(t, time.Second, r.CalculateBackoff(0, 0))
	assert.Equal(t, 2*time.Second, r.CalculateBackoff(1, 0))
	assert.Equal(t, 4*time.Second, r.CalculateBackoff(2, 0))
	assert.Equal(t, 5*time.Second, r.CalculateBackoff(3, 0), "capped")
	assert.Equal(t, 10*time.Second, r.CalculateBackoff(0, 10*time.Second), "longer Retry-After wins")
	assert.Equal(t, 2*time.Second, r.CalculateBackoff(1, time.Second), "shorter Retry-After ignored")
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), ParseRetryAfter(nil))
	assert.Equal(t, 3*time.Second, ParseRetryAfter(response(429, http.Header{"Retry-After": []string{"3"}})))
	assert.Equal(t, time.Duration(0), ParseRetryAfter(response(429, http.Header{"Retry-After": []string{"soon"}})))
}

func TestDoHTTP_RetriesOnlyRateLimits(t *testing.T) {
	var slept []time.Duration
	sleep := func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	r := NewRetrier(&RetryConfig{MaxAttempts: 4, InitialBackoff: 10 * time.Millisecond, BackoffFactor: 2, RetryableErrors: []int{429}}, sleep)

	statuses := []int{429, 429, 200}
	calls := 0
	resp, err := r.DoHTTP(context.Background(), "list", func(ctx context.Context) (*http.Response, error) {
		status := statuses[calls]
		calls++
		return response(status, nil), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond}, slept)

	calls = 0
	resp, err = r.DoHTTP(context.Background(), "list", func(ctx context.Context) (*http.Response, error) {
		calls++
		return response(http.StatusInternalServerError, nil), nil
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestDoHTTP_ExhaustedIsRateLimitError(t *testing.T) {
	r := NewRetrier(&RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, BackoffFactor: 2, RetryableErrors: []int{429}},
		func(ctx context.Context, d time.Duration) error { return nil })

	calls := 0
	_, err := r.DoHTTP(context.Background(), "list orders", func(ctx context.Context) (*http.Response, error) {
		calls++
		return response(429, http.Header{"Retry-After": []string{"7"}}), nil
	})

	var rateErr *RateLimitError
	require.True(t, errors.As(err, &rateErr))
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, rateErr.Attempts)
	assert.Equal(t, 7*time.Second, rateErr.RetryAfter)
	assert.Contains(t, rateErr.Error(), "list orders")
}

func TestDoHTTP_StopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(&RetryConfig{MaxAttempts: 5, InitialBackoff: time.Hour, BackoffFactor: 2, RetryableErrors: []int{429}}, nil)

	calls := 0
	_, err := r.DoHTTP(ctx, "list", func(ctx context.Context) (*http.Response, error) {
		calls++
		cancel()
		return response(429, nil), nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestSleep(t *testing.T) {
	require.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "remote order client is not configured: missing client id, refresh token",
		(&ConfigurationError{Missing: []string{"client id", "refresh token"}}).Error())

	authErr := &AuthorizationError{StatusCode: 403, Body: "denied", Remediation: "Re-authorize the app"}
	assert.Equal(t, "authorization rejected by marketplace (status 403): denied. Re-authorize the app", authErr.Error())

	order := &ExternalOrder{Status: "Canceled"}
	assert.True(t, order.IsCancelled())
	order.Status = "Unshipped"
	assert.False(t, order.IsCancelled())
}
