package llm

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// RetryConfig holds retry configuration for upstream requests.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BackoffBase is the delay before the first retry.
	BackoffBase time.Duration

	// BackoffMultiplier is applied to the delay on each retry.
	BackoffMultiplier float64

	// MaxBackoff caps a single delay.
	MaxBackoff time.Duration
}

// DefaultRetryConfig returns the chat retry defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        4,
		BackoffBase:       600 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxBackoff:        30 * time.Second,
	}
}

// Backoff returns the delay before retry number attempt (0-based).
func (c RetryConfig) Backoff(attempt int) time.Duration {
	d := float64(c.BackoffBase)
	for i := 0; i < attempt; i++ {
		d *= c.BackoffMultiplier
	}
	if c.MaxBackoff > 0 && time.Duration(d) > c.MaxBackoff {
		return c.MaxBackoff
	}
	return time.Duration(d)
}

// IsRetryableStatus reports whether an HTTP status is worth retrying.
func IsRetryableStatus(status int) bool {
	switch status {
	case http.StatusRequestTimeout, http.StatusConflict, http.StatusTooEarly,
		http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	// Cloudflare origin errors
	return status >= 520 && status <= 526
}

// IsRetryable reports whether err is a transient upstream failure.
func IsRetryable(err error) bool {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return true
	}
	var up *UpstreamError
	if errors.As(err, &up) {
		if up.Status == 0 {
			return up.Err != nil
		}
		return IsRetryableStatus(up.Status)
	}
	return false
}

// Do runs fn until it succeeds, returns a non-retryable error, or retries run
// out. A RateLimitError's RetryAfter replaces the computed delay when longer.
func Do(ctx context.Context, cfg RetryConfig, fn func(attempt int) error) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = fn(attempt)
		if err == nil || !IsRetryable(err) || attempt >= cfg.MaxRetries {
			return err
		}
		delay := cfg.Backoff(attempt)
		var rl *RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > delay && rl.RetryAfter <= cfg.MaxBackoff {
			delay = rl.RetryAfter
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
