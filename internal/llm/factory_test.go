package llm_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/llm"
	"planextract/internal/port"
	"planextract/mocks"
)

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := llm.NewClient(&config.ChatProviderConfig{Provider: "does-not-exist"})
	assert.ErrorContains(t, err, "unknown chat provider")
}

func TestNewClientChain(t *testing.T) {
	llm.RegisterProvider("test-primary", func(cfg *config.ChatProviderConfig) (port.ChatClient, error) {
		return new(mocks.MockChatClient), nil
	})
	llm.RegisterProvider("test-secondary", func(cfg *config.ChatProviderConfig) (port.ChatClient, error) {
		return new(mocks.MockChatClient), nil
	})

	t.Run("primary only", func(t *testing.T) {
		c, err := llm.NewClientChain(&config.ChatConfig{
			ChatProviderConfig: config.ChatProviderConfig{Provider: "test-primary"},
		})
		require.NoError(t, err)
		assert.IsType(t, &mocks.MockChatClient{}, c)
	})

	t.Run("with fallback", func(t *testing.T) {
		c, err := llm.NewClientChain(&config.ChatConfig{
			ChatProviderConfig: config.ChatProviderConfig{Provider: "test-primary"},
			Fallback:           config.ChatProviderConfig{Provider: "test-secondary"},
		})
		require.NoError(t, err)
		assert.IsType(t, &llm.FallbackClient{}, c)
	})

	t.Run("bad fallback", func(t *testing.T) {
		_, err := llm.NewClientChain(&config.ChatConfig{
			ChatProviderConfig: config.ChatProviderConfig{Provider: "test-primary"},
			Fallback:           config.ChatProviderConfig{Provider: "nope"},
		})
		assert.ErrorContains(t, err, "fallback")
	})
}

func TestUpstreamError_Sentinels(t *testing.T) {
	unavailable := llm.NewUnavailableError("vellum", errors.New("dial tcp: refused"))
	assert.True(t, errors.Is(unavailable, domain.ErrUpstreamUnavailable))
	assert.False(t, errors.Is(unavailable, domain.ErrUpstreamProtocol))
	assert.Contains(t, unavailable.Error(), "vellum unavailable")

	protocol := llm.NewProtocolError("reducto", 502, "bad gateway")
	assert.True(t, errors.Is(protocol, domain.ErrUpstreamProtocol))
	assert.Contains(t, protocol.Error(), "status 502")

	wrapped := llm.NewRateLimitError("openrouter", protocol, 5)
	assert.True(t, errors.Is(wrapped, domain.ErrUpstreamProtocol))
}

func TestNewProtocolError_TruncatesBody(t *testing.T) {
	body := make([]byte, 5000)
	for i := range body {
		body[i] = 'x'
	}
	err := llm.NewProtocolError("openrouter", 500, string(body))
	assert.Len(t, err.Body, 1200+len("..."))
}

func TestIsRetryableStatus(t *testing.T) {
	for _, s := range []int{408, 409, 425, 429, 500, 502, 503, 504, 520, 523, 526} {
		assert.True(t, llm.IsRetryableStatus(s), "status %d", s)
	}
	for _, s := range []int{400, 401, 403, 404, 422, 501, 527} {
		assert.False(t, llm.IsRetryableStatus(s), "status %d", s)
	}
}

func TestRetryConfig_Backoff(t *testing.T) {
	rc := llm.DefaultRetryConfig()
	assert.Equal(t, 600*time.Millisecond, rc.Backoff(0))
	assert.Equal(t, 1200*time.Millisecond, rc.Backoff(1))
	assert.Equal(t, 2400*time.Millisecond, rc.Backoff(2))
	assert.Equal(t, 4800*time.Millisecond, rc.Backoff(3))
	assert.Equal(t, 30*time.Second, rc.Backoff(20))
}

func TestDo_StopsOnFatalError(t *testing.T) {
	calls := 0
	err := llm.Do(context.Background(), llm.RetryConfig{MaxRetries: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1}, func(int) error {
		calls++
		return llm.NewProtocolError("x", 400, "bad")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesUntilLimit(t *testing.T) {
	calls := 0
	err := llm.Do(context.Background(), llm.RetryConfig{MaxRetries: 3, BackoffBase: time.Millisecond, BackoffMultiplier: 1}, func(int) error {
		calls++
		return llm.NewUnavailableError("x", errors.New("reset"))
	})
	assert.Error(t, err)
	assert.Equal(t, 4, calls)
}
