package vellum_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/template/vellum"
)

func newTestClient(serverURL string) *vellum.Client {
	return vellum.NewClient(&config.TemplatesConfig{APIKey: "vl-key", BaseURL: serverURL, TimeoutSecs: 5})
}

func messagesPayload(parts ...map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{
		"payload": map[string]interface{}{
			"messages": []map[string]interface{}{{"role": "user", "content": parts}},
		},
	}
}

func TestClient_Fetch_JoinsTextParts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/deployments/provider-payload", r.URL.Path)
		assert.Equal(t, "vl-key", r.Header.Get("X-API-KEY"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "plan-name-identification-prompt-v-18-0-variant-1", body["deployment_name"])
		assert.Equal(t, []interface{}{}, body["inputs"])
		assert.Equal(t, "v3", body["tag"])

		_ = json.NewEncoder(w).Encode(messagesPayload(
			map[string]interface{}{"type": "text", "text": "Part one"},
			map[string]interface{}{"type": "image", "text": "ignored"},
			map[string]interface{}{"type": "text", "text": "   "},
			map[string]interface{}{"type": "text", "text": "Part two"},
		))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Fetch(context.Background(), "plan-name-identification-prompt-v-18-0-variant-1", "v3")
	require.NoError(t, err)
	assert.Equal(t, "Part one\nPart two", text)
}

func TestClient_Fetch_OmitsTagForLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, hasTag := body["tag"]
		assert.False(t, hasTag)
		_ = json.NewEncoder(w).Encode(messagesPayload(map[string]interface{}{"type": "text", "text": "T"}))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Fetch(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Equal(t, "T", text)
}

func TestClient_Fetch_RetriesWithDocumentInputOn400(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Inputs []map[string]string `json:"inputs"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if atomic.AddInt32(&calls, 1) == 1 {
			assert.Empty(t, body.Inputs)
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"missing input document"}`))
			return
		}
		require.Len(t, body.Inputs, 1)
		assert.Equal(t, map[string]string{"type": "STRING", "name": "document", "value": ""}, body.Inputs[0])
		_ = json.NewEncoder(w).Encode(messagesPayload(map[string]interface{}{"type": "text", "text": "Recovered"}))
	}))
	defer server.Close()

	text, err := newTestClient(server.URL).Fetch(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Equal(t, "Recovered", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Fetch_400RetryFails(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"detail":"no such deployment"}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), "k", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrUpstreamProtocol))
	assert.Contains(t, err.Error(), "no such deployment")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestClient_Fetch_ServerErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), "k", "")
	assert.True(t, errors.Is(err, domain.ErrUpstreamProtocol))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClient_Fetch_FallbackKeys(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
		want string
	}{
		{
			name: "top-level compiled_prompt",
			body: map[string]interface{}{"compiled_prompt": "compiled"},
			want: "compiled",
		},
		{
			name: "payload template",
			body: map[string]interface{}{"payload": map[string]interface{}{"template": "from payload"}},
			want: "from payload",
		},
		{
			name: "messages without text fall through",
			body: map[string]interface{}{
				"payload": map[string]interface{}{
					"messages": []map[string]interface{}{{"content": []interface{}{}}},
					"prompt":   "prompt field",
				},
			},
			want: "prompt field",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_ = json.NewEncoder(w).Encode(tt.body)
			}))
			defer server.Close()

			text, err := newTestClient(server.URL).Fetch(context.Background(), "k", "")
			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestClient_Fetch_MissingTemplate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"payload":{"messages":[]},"meta":{}}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Fetch(context.Background(), "k", "")
	assert.True(t, errors.Is(err, domain.ErrMissingTemplate))
	assert.Contains(t, err.Error(), "meta, payload")
}

func TestClient_Fetch_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := newTestClient(url).Fetch(context.Background(), "k", "")
	assert.True(t, errors.Is(err, domain.ErrUpstreamUnavailable))
}
