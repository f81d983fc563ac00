package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/config"
	"planextract/internal/llm"
	"planextract/internal/metrics"
	"planextract/internal/port"
)

const (
	apiURL      = "https://openrouter.ai/api/v1/chat/completions"
	providerTag = "openrouter"
	referer     = "https://planyear.tools"
	appTitle    = "PlanYear Unified Pipeline"
	presetModel = "@preset/"
)

// Client implements port.ChatClient using the OpenRouter chat-completions API.
type Client struct {
	apiKey   string
	model    string
	preset   string
	endpoint string
	client   *http.Client
	retry    llm.RetryConfig
}

// NewClient creates an OpenRouter chat client from a provider config.
func NewClient(cfg *config.ChatProviderConfig) *Client {
	endpoint := apiURL
	if cfg.BaseURL != "" {
		endpoint = strings.TrimRight(cfg.BaseURL, "/") + "/chat/completions"
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
		return nil, fmt.Errorf("openrouter: api key is required")
	}
	if cfg.Model == "" && cfg.Preset == "" {
		return nil, fmt.Errorf("openrouter: model or preset is required")
	}
	return NewClient(cfg), nil
}

func newClient(cfg *config.ChatProviderConfig, endpoint string) *Client {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 180 * time.Second
	}
	retry := llm.DefaultRetryConfig()
	if cfg.MaxRetries >= 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	return &Client{
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
		preset:   cfg.Preset,
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

// BuildBody returns the JSON body sent for req.
func (c *Client) BuildBody(req port.ChatRequest) map[string]interface{} {
	body := map[string]interface{}{
		"model":    c.model,
		"messages": req.Messages,
		"usage":    map[string]interface{}{"include": true},
	}
	if c.preset != "" {
		if strings.HasPrefix(c.preset, presetModel) {
			body["model"] = c.preset
		} else {
			body["preset"] = c.preset
		}
	}
	for k, v := range req.Overrides {
		body[k] = v
	}
	return body
}

func (c *Client) Chat(ctx context.Context, req port.ChatRequest) (*port.ChatResponse, error) {
	bodyBytes, err := json.Marshal(c.BuildBody(req))
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	start := time.Now()
	var out *port.ChatResponse
	err = llm.Do(ctx, c.retry, func(attempt int) error {
		if attempt > 0 {
			zap.L().Warn("openrouter.Client.Chat: retrying",
				zap.String("label", req.Label),
				zap.Int("attempt", attempt),
			)
		}
		var callErr error
		out, callErr = c.do(ctx, bodyBytes)
		return callErr
	})
	metrics.ChatDuration.WithLabelValues(providerTag).Observe(time.Since(start).Seconds())
	if err != nil {
		llm.RecordFailure(providerTag)
		zap.L().Error("openrouter.Client.Chat: failed", zap.String("label", req.Label), zap.Error(err))
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
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("HTTP-Referer", referer)
	req.Header.Set("X-Title", appTitle)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, llm.NewUnavailableError(providerTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, llm.NewUnavailableError(providerTag, fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode >= http.StatusBadRequest {
		baseErr := llm.NewProtocolError(providerTag, resp.StatusCode, string(respBody))
		if resp.StatusCode == http.StatusTooManyRequests {
			retryAfter := llm.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
			return nil, llm.NewRateLimitError(providerTag, baseErr, retryAfter)
		}
		return nil, baseErr
	}

	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.Contains(ctype, "application/json") {
		return nil, llm.NewProtocolError(providerTag, 0,
			fmt.Sprintf("non-JSON response (Content-Type=%s): %s", ctype, string(respBody)))
	}

	return parseResponse(respBody, resp.Header)
}

// apiResponse models the chat-completions response.
type apiResponse struct {
	ID       string `json:"id"`
	Model    string `json:"model"`
	Provider string `json:"provider"`
	Choices  []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens        int     `json:"prompt_tokens"`
		CompletionTokens    int     `json:"completion_tokens"`
		TotalTokens         int     `json:"total_tokens"`
		Cost                float64 `json:"cost"`
		PromptTokensDetails struct {
			CachedTokens int `json:"cached_tokens"`
		} `json:"prompt_tokens_details"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

func parseResponse(body []byte, h http.Header) (*port.ChatResponse, error) {
	var resp apiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, llm.NewProtocolError(providerTag, 0, fmt.Sprintf("decoding JSON response: %v: %s", err, string(body)))
	}

	if len(resp.Choices) == 0 {
		if resp.Error != nil {
			return nil, llm.NewProtocolError(providerTag, resp.Error.Code, resp.Error.Message)
		}
		return nil, llm.NewProtocolError(providerTag, 0, "empty response: no choices")
	}

	var text string
	if resp.Choices[0].Message.Content != nil {
		text = *resp.Choices[0].Message.Content
	}

	usage := port.Usage{
		Model:              resp.Model,
		Provider:           resp.Provider,
		GenerationID:       resp.ID,
		PromptTokens:       resp.Usage.PromptTokens,
		CompletionTokens:   resp.Usage.CompletionTokens,
		TotalTokens:        resp.Usage.TotalTokens,
		CachedPromptTokens: resp.Usage.PromptTokensDetails.CachedTokens,
		Cost:               resp.Usage.Cost,
	}
	applyUsageHeaders(&usage, h)

	return &port.ChatResponse{Text: text, Usage: usage}, nil
}

// Vendor headers that carry usage, first match wins per field.
var (
	promptTokenHeaders     = []string{"x-openrouter-usage-prompt-tokens", "x-openai-meta-usage-input-tokens"}
	completionTokenHeaders = []string{"x-openrouter-usage-completion-tokens", "x-openai-meta-usage-output-tokens"}
	totalTokenHeaders      = []string{"x-openrouter-usage-total-tokens", "x-openai-meta-usage-total-tokens"}
	costHeaders            = []string{"x-openrouter-credits-consumed", "x-openrouter-usage-cost"}
	modelHeaders           = []string{"openrouter-model", "x-openrouter-model"}
	providerHeaders        = []string{"openrouter-provider", "x-openrouter-provider"}
	generationIDHeaders    = []string{"openrouter-id", "x-openrouter-id"}
	cacheReadHeaders       = []string{"openrouter-cache-read", "x-openrouter-cache-read"}
	cacheWriteHeaders      = []string{"openrouter-cache-write", "x-openrouter-cache-write"}
	cacheStatusHeaders     = []string{"x-cache-proxy", "cf-cache-status", "x-served-from-cache"}
)

// applyUsageHeaders overrides usage fields with vendor headers when present.
func applyUsageHeaders(u *port.Usage, h http.Header) {
	if v, ok := firstHeader(h, promptTokenHeaders); ok {
		if n, err := strconv.Atoi(v); err == nil {
			u.PromptTokens = n
		}
	}
	if v, ok := firstHeader(h, completionTokenHeaders); ok {
		if n, err := strconv.Atoi(v); err == nil {
			u.CompletionTokens = n
		}
	}
	if v, ok := firstHeader(h, totalTokenHeaders); ok {
		if n, err := strconv.Atoi(v); err == nil {
			u.TotalTokens = n
		}
	}
	if v, ok := firstHeader(h, costHeaders); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			u.Cost = f
		}
	}
	if v, ok := firstHeader(h, modelHeaders); ok {
		u.Model = v
	}
	if v, ok := firstHeader(h, providerHeaders); ok {
		u.Provider = v
	}
	if v, ok := firstHeader(h, generationIDHeaders); ok {
		u.GenerationID = v
	}
	if v, ok := firstHeader(h, cacheReadHeaders); ok {
		u.CacheRead = v
	}
	if v, ok := firstHeader(h, cacheWriteHeaders); ok {
		u.CacheWrite = v
	}
	if v, ok := firstHeader(h, cacheStatusHeaders); ok {
		u.CacheStatus = v
	}
}

func firstHeader(h http.Header, names []string) (string, bool) {
	for _, name := range names {
		if vals := h.Values(name); len(vals) > 0 {
			return strings.TrimSpace(vals[0]), true
		}
	}
	return "", false
}
