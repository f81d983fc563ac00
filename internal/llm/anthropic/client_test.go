package anthropic_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/llm"
	"planextract/internal/llm/anthropic"
	"planextract/internal/port"
)

func newTestClient(serverURL string) *anthropic.Client {
	return anthropic.NewClientWithEndpoint(&config.ChatProviderConfig{
		Provider:    "anthropic",
		APIKey:      "test-claude-key",
		TimeoutSecs: 5,
	}, serverURL)
}

func TestClient_Chat_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-claude-key", r.Header.Get("x-api-key"))
		assert.Equal(t, "2023-06-01", r.Header.Get("anthropic-version"))

		var reqBody map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&reqBody))
		assert.Equal(t, "claude-sonnet-4-20250514", reqBody["model"])
		assert.Equal(t, float64(16384), reqBody["max_tokens"])

		system := reqBody["system"].([]interface{})
		require.Len(t, system, 1)
		assert.Equal(t, "sys", system[0].(map[string]interface{})["text"])

		messages := reqBody["messages"].([]interface{})
		require.Len(t, messages, 1)
		user := messages[0].(map[string]interface{})
		assert.Equal(t, "user", user["role"])
		content := user["content"].([]interface{})
		doc := content[len(content)-1].(map[string]interface{})
		assert.Equal(t, map[string]interface{}{"type": "ephemeral"}, doc["cache_control"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":          "msg_1",
			"model":       "claude-sonnet-4-20250514",
			"content":     []map[string]interface{}{{"type": "text", "text": "1::Plans::Medical::HMO::$0.00::[1]"}},
			"stop_reason": "end_turn",
			"usage": map[string]interface{}{
				"input_tokens":                20,
				"output_tokens":               10,
				"cache_read_input_tokens":     900,
				"cache_creation_input_tokens": 0,
			},
		})
	}))
	defer server.Close()

	msgs := llm.Compose(llm.Composition{Template: "t", Document: "d", EnableCache: true, SystemText: "sys"})
	out, err := newTestClient(server.URL).Chat(context.Background(), port.ChatRequest{Messages: msgs, Label: "plan_id"})
	require.NoError(t, err)
	assert.Equal(t, "1::Plans::Medical::HMO::$0.00::[1]", out.Text)
	assert.Equal(t, 920, out.Usage.PromptTokens)
	assert.Equal(t, 900, out.Usage.CachedPromptTokens)
	assert.Equal(t, 930, out.Usage.TotalTokens)
	assert.Equal(t, "true", out.Usage.CacheRead)
	assert.Empty(t, out.Usage.CacheWrite)
}

func TestClient_Chat_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"rate_limit_error"}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Chat(context.Background(), port.ChatRequest{})
	require.Error(t, err)

	var rlErr *llm.RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, "anthropic", rlErr.Provider)
}

func TestClient_Chat_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"invalid x-api-key"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Chat(context.Background(), port.ChatRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamProtocol))
	assert.Contains(t, err.Error(), "invalid x-api-key")
}
