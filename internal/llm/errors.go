package llm

import (
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"

	"planextract/internal/domain"
)

// bodySnippetLen bounds how much of an upstream body is carried in errors.
const bodySnippetLen = 1200

// RateLimitError indicates a chat provider returned HTTP 429.
type RateLimitError struct {
	Err        error
	RetryAfter time.Duration
	Provider   string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited (retry after %s): %v", e.Provider, e.RetryAfter, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// NewRateLimitError creates a RateLimitError. If retryAfterSecs is 0, defaults to 60s.
func NewRateLimitError(provider string, err error, retryAfterSecs int) *RateLimitError {
	if retryAfterSecs <= 0 {
		retryAfterSecs = 60
	}
	return &RateLimitError{
		Err:        err,
		RetryAfter: time.Duration(retryAfterSecs) * time.Second,
		Provider:   provider,
	}
}

// ParseRetryAfterHeader parses a Retry-After header value into seconds.
// Returns 0 if the value is empty or not a valid integer.
func ParseRetryAfterHeader(val string) int {
	if val == "" {
		return 0
	}
	secs, err := strconv.Atoi(val)
	if err != nil {
		return 0
	}
	return secs
}

// UpstreamError is a failed call to an external service. A zero Status means
// the service could not be reached at all.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
	Err     error
}

// NewUnavailableError reports a network-level failure talking to service.
func NewUnavailableError(service string, err error) *UpstreamError {
	return &UpstreamError{Service: service, Err: err}
}

// NewProtocolError reports a non-2xx or malformed response from service.
func NewProtocolError(service string, status int, body string) *UpstreamError {
	return &UpstreamError{Service: service, Status: status, Body: Truncate(body, bodySnippetLen)}
}

func (e *UpstreamError) Error() string {
	if e.Status == 0 && e.Err != nil {
		return fmt.Sprintf("%s unavailable: %v", e.Service, e.Err)
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s protocol error: %s", e.Service, e.Body)
	}
	return fmt.Sprintf("%s error (status %d): %s", e.Service, e.Status, e.Body)
}

// Unwrap exposes the matching domain sentinel plus the transport error.
func (e *UpstreamError) Unwrap() []error {
	sentinel := domain.ErrUpstreamProtocol
	if e.Status == 0 && e.Err != nil {
		sentinel = domain.ErrUpstreamUnavailable
	}
	if e.Err == nil {
		return []error{sentinel}
	}
	return []error{sentinel, e.Err}
}

// Truncate shortens s to at most maxLen bytes, marking the cut. The cut
// never splits a UTF-8 sequence.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
