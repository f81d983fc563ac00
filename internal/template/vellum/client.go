package vellum

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/llm"
)

const (
	defaultBaseURL = "https://api.vellum.ai"
	payloadPath    = "/v1/deployments/provider-payload"
	serviceTag     = "vellum"
)

// fallbackKeys hold prompt text in payloads without a messages array.
var fallbackKeys = []string{"compiled_prompt", "prompt", "template", "text", "content", "body"}

// Client fetches deployed prompt templates through the provider-payload API.
// It implements port.TemplateFetcher.
type Client struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewClient creates a template store client from config.
func NewClient(cfg *config.TemplatesConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(base, "/") + payloadPath,
		client:   &http.Client{Timeout: timeout},
	}
}

type input struct {
	Type  string `json:"type"`
	Name  string `json:"name"`
	Value string `json:"value"`
}

type payloadRequest struct {
	DeploymentName string  `json:"deployment_name"`
	Inputs         []input `json:"inputs"`
	Tag            string  `json:"tag,omitempty"`
}

// Fetch returns the text of the deployed template key. Deployments that
// declare a required input reject an empty input list with 400; those are
// retried once with an empty "document" input.
func (c *Client) Fetch(ctx context.Context, key, version string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: template store api key not set", domain.ErrUpstreamUnavailable)
	}
	reqBody := payloadRequest{DeploymentName: key, Inputs: []input{}, Tag: version}

	status, body, err := c.post(ctx, reqBody)
	if err != nil {
		return "", err
	}
	if status == http.StatusBadRequest {
		zap.L().Info("vellum.Client.Fetch: retrying with document input", zap.String("template", key))
		reqBody.Inputs = []input{{Type: "STRING", Name: "document", Value: ""}}
		retryStatus, retryBody, retryErr := c.post(ctx, reqBody)
		if retryErr == nil && retryStatus >= 200 && retryStatus < 300 {
			if text, ok := extractText(retryBody); ok {
				return text, nil
			}
		}
	}
	if status < 200 || status >= 300 {
		return "", fmt.Errorf("fetching template %q: %w", key, llm.NewProtocolError(serviceTag, status, string(body)))
	}

	text, ok := extractText(body)
	if !ok {
		return "", fmt.Errorf("%w: %q returned no text (body keys: %s)", domain.ErrMissingTemplate, key, bodyKeys(body))
	}
	return text, nil
}

func (c *Client) post(ctx context.Context, reqBody payloadRequest) (int, []byte, error) {
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, llm.NewUnavailableError(serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, llm.NewUnavailableError(serviceTag, fmt.Errorf("reading response: %w", err))
	}
	return resp.StatusCode, respBody, nil
}

type payloadResponse struct {
	Payload map[string]json.RawMessage `json:"payload"`
}

type payloadMessage struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// extractText joins the text parts of the first payload message, falling
// back to well-known string fields of the response or its payload.
func extractText(body []byte) (string, bool) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", false
	}
	var resp payloadResponse
	_ = json.Unmarshal(body, &resp)

	if raw, ok := resp.Payload["messages"]; ok {
		var msgs []payloadMessage
		if err := json.Unmarshal(raw, &msgs); err == nil && len(msgs) > 0 {
			var parts []string
			for _, c := range msgs[0].Content {
				if c.Type == "text" && strings.TrimSpace(c.Text) != "" {
					parts = append(parts, c.Text)
				}
			}
			if len(parts) > 0 {
				return strings.Join(parts, "\n"), true
			}
		}
	}

	for _, k := range fallbackKeys {
		for _, src := range []map[string]json.RawMessage{top, resp.Payload} {
			raw, ok := src[k]
			if !ok {
				continue
			}
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
				return s, true
			}
		}
	}
	return "", false
}

func bodyKeys(body []byte) string {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "<not an object>"
	}
	keys := make([]string, 0, len(top))
	for k := range top {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return strings.Join(keys, ", ")
}
