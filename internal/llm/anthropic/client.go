package anthropic

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
	"planextract/internal/llm"
	"planextract/internal/metrics"
	"planextract/internal/port"
)

const (
	apiURL       = "https://api.anthropic.com/v1/messages"
	apiVersion   = "2023-06-01"
	providerTag  = "anthropic"
	defaultModel = "claude-sonnet-4-20250514"
	maxTokens    = 16384
)

// Client implements port.ChatClient using the Anthropic Messages API.
type Client struct {
	apiKey   string
	model    string
	endpoint string
	client   *http.Client
	retry    llm.RetryConfig
}

// NewClient creates an Anthropic chat client from a provider config.
func NewClient(cfg *config.ChatProviderConfig) *Client {
	endpoint := apiURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/v1/messages"
	}
	return newClient(cfg, endpoint)
}

// NewClientWithEndpoint creates a client pointing at a custom API endpoint (for testing).
func NewClientWithEndpoint(cfg *config.ChatProviderConfig, endpoint string) *Client {
	return newClient(cfg, endpoint)
}

// Factory adapts NewClient to llm.ProviderFactory.
func Factory(cfg *config.ChatProviderConfig) (port.ChatClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: api key is required")
	}
	return NewClient(cfg), nil
}

func newClient(cfg *config.ChatProviderConfig, endpoint string) *Client {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	retry := llm.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries
	return &Client{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
		retry:    retry,
	}
}

// WithRetry replaces the retry policy.
func (c *Client) WithRetry(rc llm.RetryConfig) *Client {
	c.retry = rc
	return c
}

// buildBody maps the composed messages onto the Messages API. System parts
// move to the top-level system field; cache markers pass through unchanged.
func (c *Client) buildBody(req port.ChatRequest) map[string]interface{} {
	var system []port.ContentPart
	var messages []port.Message
	for _, m := range req.Messages {
		if m.Role == "system" {
			system = append(system, m.Content...)
			continue
		}
		messages = append(messages, m)
	}
	body := map[string]interface{}{
		"model":      c.model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}
	if len(system) > 0 {
		body["system"] = system
	}
	for k, v := range req.Overrides {
		body[k] = v
	}
	return body
}

func (c *Client) Chat(ctx context.Context, req port.ChatRequest) (*port.ChatResponse, error) {
	bodyBytes, err := json.Marshal(c.buildBody(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	var out *port.ChatResponse
	err = llm.Do(ctx, c.retry, func(attempt int) error {
		var callErr error
		out, callErr = c.do(ctx, bodyBytes)
		return callErr
	})
	metrics.ChatDuration.WithLabelValues(providerTag).Observe(time.Since(start).Seconds())
	if err != nil {
		llm.RecordFailure(providerTag)
		zap.L().Error("anthropic.Client.Chat: failed", zap.String("label", req.Label), zap.Error(err))
		return nil, err
	}

	llm.RecordUsage(providerTag, req.Label, out.Usage)
	return out, nil
}

func (c *Client) do(ctx context.Context, bodyBytes []byte) (*port.ChatResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, llm.NewUnavailableError(providerTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewUnavailableError(providerTag, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		baseErr := llm.NewProtocolError(providerTag, resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError(providerTag, baseErr, retryAfter)
		}
		return nil, baseErr
	}

	return parseResponse(respBody)
}

// apiResponse models the Anthropic Messages API response.
type apiResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens              int `json:"input_tokens"`
		OutputTokens             int `json:"output_tokens"`
		CacheReadInputTokens     int `json:"cache_read_input_tokens"`
		CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	} `json:"usage"`
}

func parseResponse(body []byte) (*port.ChatResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewProtocolError(providerTag, 0, fmt.Sprintf("decoding JSON response: %v: %s", err, string(body)))
	}

	if len(resp.Content) == 0 {
		return nil, llm.NewProtocolError(providerTag, 0, "empty response: no content")
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}

	if resp.StopReason == "max_tokens" {
		zap.L().Warn("anthropic.Client.Chat: output truncated (stop_reason: max_tokens)", zap.String("id", resp.ID))
	}

	// input_tokens excludes cached tokens on this API
	prompt := resp.Usage.InputTokens + resp.Usage.CacheReadInputTokens + resp.Usage.CacheCreationInputTokens
	usage := port.Usage{
		Model:              resp.Model,
		Provider:           providerTag,
		GenerationID:       resp.ID,
		PromptTokens:       prompt,
		CompletionTokens:   resp.Usage.OutputTokens,
		TotalTokens:        prompt + resp.Usage.OutputTokens,
		CachedPromptTokens: resp.Usage.CacheReadInputTokens,
		CacheWriteTokens:   resp.Usage.CacheCreationInputTokens,
	}
	if resp.Usage.CacheReadInputTokens > 0 {
		usage.CacheRead = "true"
	}
	if resp.Usage.CacheCreationInputTokens > 0 {
		usage.CacheWrite = "true"
	}

	return &port.ChatResponse{Text: strings.Join(parts, ""), Usage: usage}, nil
}
