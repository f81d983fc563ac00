package llm

import (
	"go.uber.org/zap"

	"planextract/internal/metrics"
	"planextract/internal/port"
)

// RecordUsage logs the usage of one chat call and feeds the chat metrics.
func RecordUsage(provider, label string, u port.Usage) {
	zap.L().Info("llm usage",
		zap.String("provider", provider),
		zap.String("label", label),
		zap.String("model", u.Model),
		zap.Int("prompt_tokens", u.PromptTokens),
		zap.Int("completion_tokens", u.CompletionTokens),
		zap.Int("total_tokens", u.TotalTokens),
		zap.Int("cached_prompt", u.CachedPromptTokens),
		zap.Float64("cost", u.Cost),
		zap.String("cache_read", u.CacheRead),
		zap.String("cache_write", u.CacheWrite),
		zap.String("cache_status", u.CacheStatus),
		zap.String("generation_id", u.GenerationID),
	)
	metrics.ChatCalls.WithLabelValues(provider, "ok").Inc()
	metrics.ChatTokens.WithLabelValues(provider, "prompt").Add(float64(u.PromptTokens))
	metrics.ChatTokens.WithLabelValues(provider, "completion").Add(float64(u.CompletionTokens))
	metrics.ChatTokens.WithLabelValues(provider, "cached").Add(float64(u.CachedPromptTokens))
	if u.Cost > 0 {
		metrics.ChatCost.WithLabelValues(provider).Add(u.Cost)
	}
}

// RecordFailure counts a failed chat call.
func RecordFailure(provider string) {
	metrics.ChatCalls.WithLabelValues(provider, "error").Inc()
}
