package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/sitesync/internal/common"
)

// retryPolicy defines retry behavior for page fetches with exponential backoff
type retryPolicy struct {
	maxAttempts       int
	initialBackoff    time.Duration
	maxBackoff        time.Duration
	backoffMultiplier float64
}

func newRetryPolicy(config common.FetcherConfig) *retryPolicy {
	attempts := config.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := config.RetryBackoff
	if backoff <= 0 {
		backoff = time.Second
	}
	return &retryPolicy{
		maxAttempts:       attempts,
		initialBackoff:    backoff,
		maxBackoff:        30 * time.Second,
		backoffMultiplier: 2.0,
	}
}

// retryableStatusCodes are transient server-side conditions worth retrying.
var retryableStatusCodes = map[int]bool{
	408: true, // Request Timeout
	429: true, // Too Many Requests
	500: true, // Internal Server Error
	502: true, // Bad Gateway
	503: true, // Service Unavailable
	504: true, // Gateway Timeout
}

// shouldRetry checks if an attempt should be retried based on status code and error type
func (p *retryPolicy) shouldRetry(statusCode int, err error) bool {
	if statusCode > 0 {
		if retryableStatusCodes[statusCode] {
			return true
		}
		if statusCode >= 400 && statusCode < 500 {
			return false // Client errors are not retryable
		}
	}

	if err != nil {
		return isRetryableError(err)
	}

	return false
}

// calculateBackoff calculates the backoff duration with exponential backoff and jitter
func (p *retryPolicy) calculateBackoff(attempt int) time.Duration {
	backoff := float64(p.initialBackoff)
	for i := 0; i < attempt; i++ {
		backoff *= p.backoffMultiplier
	}
	if backoff > float64(p.maxBackoff) {
		backoff = float64(p.maxBackoff)
	}

	// Jitter (±25%)
	jitter := backoff * 0.25 * (rand.Float64()*2 - 1)
	backoff += jitter

	if backoff < 0 {
		backoff = float64(p.initialBackoff)
	}

	return time.Duration(backoff)
}

// execute wraps a fetch attempt with the retry loop. fn returns the HTTP
// status code (0 if the request never completed) and an error.
func (p *retryPolicy) execute(ctx context.Context, logger arbor.ILogger, url string, fn func() (int, error)) (int, error) {
	var lastErr error
	var statusCode int

	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		statusCode, lastErr = fn()

		if lastErr == nil && !retryableStatusCodes[statusCode] {
			return statusCode, nil
		}

		if !p.shouldRetry(statusCode, lastErr) {
			return statusCode, lastErr
		}

		if attempt < p.maxAttempts-1 {
			backoff := p.calculateBackoff(attempt)
			logger.Debug().
				Str("url", url).
				Int("attempt", attempt+1).
				Int("status_code", statusCode).
				Err(lastErr).
				Str("backoff", backoff.String()).
				Msg("Retrying page fetch after backoff")

			select {
			case <-ctx.Done():
				return statusCode, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}

	logger.Debug().
		Str("url", url).
		Int("max_attempts", p.maxAttempts).
		Int("status_code", statusCode).
		Err(lastErr).
		Msg("Page fetch retry attempts exhausted")

	return statusCode, lastErr
}

// isRetryableError checks if an error is retryable (timeouts, connection errors)
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	return false
}
