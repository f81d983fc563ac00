package pipeline

import (
	"context"
	"fmt"
	"time"

	"planextract/internal/metrics"
	"planextract/internal/port"
)

// TokenGuard rejects documents whose token count exceeds a hard limit.
type TokenGuard struct {
	counter port.TokenCounter
	limit   int
}

// NewTokenGuard creates a TokenGuard.
func NewTokenGuard(counter port.TokenCounter, limit int) *TokenGuard {
	return &TokenGuard{counter: counter, limit: limit}
}

// Limit returns the configured hard limit.
func (g *TokenGuard) Limit() int {
	return g.limit
}

// Check counts the tokens of text and reports whether it is within the limit.
func (g *TokenGuard) Check(ctx context.Context, text string) (int, bool, error) {
	start := time.Now()
	defer metrics.ObserveStage("token_guard", start)

	n, err := g.counter.CountTokens(ctx, text)
	if err != nil {
		return 0, false, fmt.Errorf("counting tokens: %w", err)
	}
	return n, n <= g.limit, nil
}
