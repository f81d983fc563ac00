package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/llm"
)

const (
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"
	serviceTag = "gemini"
)

// Counter implements port.TokenCounter using Gemini's countTokens endpoint.
type Counter struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
}

// NewCounter creates a Gemini token counter.
func NewCounter(cfg *config.TokensConfig) *Counter {
	return newCounter(cfg, "")
}

// NewCounterWithEndpoint creates a counter pointing at a custom API endpoint (for testing).
func NewCounterWithEndpoint(cfg *config.TokensConfig, endpoint string) *Counter {
	return newCounter(cfg, endpoint)
}

func newCounter(cfg *config.TokensConfig, endpoint string) *Counter {
	model := cfg.Model
	if model == "" {
		model = "gemini-2.5-flash"
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:countTokens", apiBaseURL, model)
	}
	return &Counter{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

// CountTokens returns the model token count of text.
func (c *Counter) CountTokens(ctx context.Context, text string) (int, error) {
	if c.apiKey == "" {
		return 0, fmt.Errorf("%w: token counter api key not set", domain.ErrUpstreamUnavailable)
	}
	if strings.TrimSpace(text) == "" {
		return 0, nil
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": text},
				},
			},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return 0, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, llm.NewUnavailableError(serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, llm.NewUnavailableError(serviceTag, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		return 0, llm.NewProtocolError(serviceTag, resp.StatusCode, string(respBody))
	}

	var parsed struct {
		TotalTokens *int `json:"totalTokens"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return 0, llm.NewProtocolError(serviceTag, resp.StatusCode, fmt.Sprintf("decoding response: %v", err))
	}
	if parsed.TotalTokens == nil {
		return 0, llm.NewProtocolError(serviceTag, resp.StatusCode, "response has no totalTokens: "+string(respBody))
	}

	zap.L().Debug("gemini.Counter.CountTokens: counted",
		zap.String("model", c.model),
		zap.Int("total_tokens", *parsed.TotalTokens),
	)
	return *parsed.TotalTokens, nil
}
