package reducto

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/config"
	"planextract/internal/domain"
	"planextract/internal/llm"
	"planextract/internal/port"
)

const (
	defaultBaseURL = "https://platform.reducto.ai"
	serviceTag     = "reducto"
	chunkSeparator = "\n\n---\n\n"
)

var (
	textKeys = []string{"markdown", "text", "content"}
	urlKeys  = []string{"markdown_url", "text_url", "content_url", "md_url", "result_url", "url"}

	pendingStatuses = map[string]bool{"queued": true, "processing": true, "running": true, "in_progress": true}
)

// Client converts PDFs to page-chunked text with the Reducto API.
// It implements port.DocumentOCR.
type Client struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollClient   *http.Client
	pollInterval time.Duration
	pollMaxWait  time.Duration
}

// NewClient creates a Reducto client from config.
func NewClient(cfg *config.OCRConfig) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	maxWait := time.Duration(cfg.PollMaxWaitSecs) * time.Second
	if maxWait == 0 {
		maxWait = 180 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(base, "/"),
		client:       &http.Client{Timeout: timeout},
		pollClient:   &http.Client{Timeout: 20 * time.Second},
		pollInterval: 2 * time.Second,
		pollMaxWait:  maxWait,
	}
}

// WithPolling overrides the job polling cadence.
func (c *Client) WithPolling(interval, maxWait time.Duration) *Client {
	c.pollInterval = interval
	c.pollMaxWait = maxWait
	return c
}

// Parse uploads the PDF, requests a page-chunked parse and returns its text.
// When the parse response carries no text the job endpoints are polled, and
// as a last resort the extract endpoint is tried.
func (c *Client) Parse(ctx context.Context, pdfPath string) (*port.OCRResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("%w: ocr api key not set", domain.ErrUpstreamUnavailable)
	}

	documentURL, err := c.upload(ctx, pdfPath)
	if err != nil {
		return nil, err
	}

	status, body, err := c.postJSON(ctx, "/parse", parseRequest(documentURL))
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("parse: %w", llm.NewProtocolError(serviceTag, status, string(body)))
	}

	payload, isJSON := decodeObject(body)
	if !isJSON {
		if strings.TrimSpace(string(body)) == "" {
			return nil, llm.NewProtocolError(serviceTag, 0, "parse returned an empty body")
		}
		return &port.OCRResult{Text: string(body)}, nil
	}

	if res, ok := c.resultFromPayload(ctx, payload); ok {
		zap.L().Info("reducto.Client.Parse: conversion finished", zap.Int("pages", len(res.Pages)))
		return res, nil
	}

	if jobID := firstNonEmpty(stringField(payload, "job_id"), stringField(objectField(payload, "data"), "job_id")); jobID != "" {
		if res, ok := c.pollJob(ctx, jobID); ok {
			zap.L().Info("reducto.Client.Parse: conversion finished after polling", zap.String("reducto_job", jobID))
			return res, nil
		}
	}

	if res, ok := c.extract(ctx, documentURL); ok {
		zap.L().Info("reducto.Client.Parse: conversion finished via extract")
		return res, nil
	}

	return nil, llm.NewProtocolError(serviceTag, 0, "parse returned no markdown/text: "+string(body))
}

func parseRequest(documentURL string) map[string]interface{} {
	return map[string]interface{}{
		"document_url": documentURL,
		"options": map[string]interface{}{
			"force_url_result": false,
			"ocr_mode":         "standard",
			"extraction_mode":  "ocr",
			"chunking":         map[string]interface{}{"chunk_mode": "page"},
			"table_summary":    map[string]interface{}{"enabled": false},
			"figure_summary":   map[string]interface{}{"enabled": false},
		},
		"advanced_options": map[string]interface{}{
			"enable_change_tracking":    false,
			"ocr_system":                "highres",
			"table_output_format":       "html",
			"merge_tables":              false,
			"include_color_information": false,
			"continue_hierarchy":        false,
			"keep_line_breaks":          true,
			"large_table_chunking":      map[string]interface{}{"enabled": false},
			"add_page_markers":          true,
			"exclude_hidden_sheets":     true,
			"exclude_hidden_rows_cols":  true,
		},
		"experimental_options": map[string]interface{}{
			"danger_filter_wide_boxes": false,
			"rotate_pages":             true,
			"enable_scripts":           true,
		},
		"priority": true,
	}
}

func (c *Client) upload(ctx context.Context, pdfPath string) (string, error) {
	f, err := os.Open(pdfPath)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(pdfPath))
	if err != nil {
		return "", fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("copying pdf: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", &buf)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	status, body, err := c.do(c.client, req)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", fmt.Errorf("upload: %w", llm.NewProtocolError(serviceTag, status, string(body)))
	}

	payload, _ := decodeObject(body)
	documentURL := firstNonEmpty(
		stringField(payload, "document_url"),
		stringField(payload, "url"),
		stringField(objectField(payload, "data"), "document_url"),
		stringField(payload, "file_id"),
	)
	if documentURL == "" {
		return "", llm.NewProtocolError(serviceTag, 0, "upload succeeded but no document_url found: "+string(body))
	}
	return documentURL, nil
}

// resultFromPayload tries inline text, nested data text, structured chunks
// and finally downloadable result URLs.
func (c *Client) resultFromPayload(ctx context.Context, payload map[string]interface{}) (*port.OCRResult, bool) {
	data := objectField(payload, "data")
	for _, src := range []map[string]interface{}{payload, data} {
		for _, k := range textKeys {
			if v := stringField(src, k); strings.TrimSpace(v) != "" {
				return &port.OCRResult{Text: v}, true
			}
		}
	}

	if res, ok := resultFromChunks(payload); ok {
		return res, true
	}

	for _, src := range []map[string]interface{}{payload, data} {
		for _, k := range urlKeys {
			u := stringField(src, k)
			if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
				continue
			}
			text, err := c.download(ctx, u)
			if err != nil {
				zap.L().Warn("reducto.Client.Parse: result download failed", zap.String("key", k), zap.Error(err))
				return nil, false
			}
			return &port.OCRResult{Text: text}, true
		}
	}
	return nil, false
}

// resultFromChunks joins result.chunks, preferring the clean embed text of
// each chunk over its content.
func resultFromChunks(payload map[string]interface{}) (*port.OCRResult, bool) {
	res := objectField(payload, "result")
	if res == nil {
		res = objectField(objectField(payload, "data"), "result")
	}
	chunks, _ := res["chunks"].([]interface{})
	if len(chunks) == 0 {
		return nil, false
	}

	var pages []port.OCRPage
	var parts []string
	for i, raw := range chunks {
		ch, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		piece := stringField(ch, "embed")
		if piece == "" {
			piece = stringField(ch, "content")
		}
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		parts = append(parts, piece)
		pages = append(pages, port.OCRPage{Number: chunkPage(ch, i+1), Content: piece})
	}
	if len(parts) == 0 {
		return nil, false
	}
	return &port.OCRResult{Text: strings.Join(parts, chunkSeparator), Pages: pages}, true
}

// chunkPage reads the page of the first block of a chunk.
func chunkPage(ch map[string]interface{}, fallback int) int {
	blocks, _ := ch["blocks"].([]interface{})
	if len(blocks) == 0 {
		return fallback
	}
	block, _ := blocks[0].(map[string]interface{})
	bbox := objectField(block, "bbox")
	if p, ok := bbox["page"].(float64); ok && p > 0 {
		return int(p)
	}
	return fallback
}

func (c *Client) pollJob(ctx context.Context, jobID string) (*port.OCRResult, bool) {
	candidates := []string{
		c.baseURL + "/jobs/" + jobID,
		c.baseURL + "/job/" + jobID,
		c.baseURL + "/parse/jobs/" + jobID,
		c.baseURL + "/results/" + jobID,
	}
	deadline := time.Now().Add(c.pollMaxWait)
	for time.Now().Before(deadline) {
		for _, u := range candidates {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
			if err != nil {
				continue
			}
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
			status, body, err := c.do(c.pollClient, req)
			if err != nil || status >= 300 {
				continue
			}
			payload, isJSON := decodeObject(body)
			if !isJSON {
				if strings.TrimSpace(string(body)) != "" {
					return &port.OCRResult{Text: string(body)}, true
				}
				continue
			}
			if res, ok := c.resultFromPayload(ctx, payload); ok {
				return res, true
			}
			jobStatus := firstNonEmpty(stringField(payload, "status"), stringField(objectField(payload, "data"), "status"))
			if pendingStatuses[strings.ToLower(jobStatus)] {
				continue
			}
		}

		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		case <-timer.C:
		}
	}
	zap.L().Warn("reducto.Client.Parse: job polling timed out", zap.String("reducto_job", jobID))
	return nil, false
}

func (c *Client) extract(ctx context.Context, documentURL string) (*port.OCRResult, bool) {
	status, body, err := c.postJSON(ctx, "/extract", map[string]interface{}{
		"document_url": documentURL,
		"output":       map[string]interface{}{"format": "markdown"},
		"priority":     true,
	})
	if err != nil || status >= 300 {
		return nil, false
	}
	payload, isJSON := decodeObject(body)
	if !isJSON {
		if strings.TrimSpace(string(body)) == "" {
			return nil, false
		}
		return &port.OCRResult{Text: string(body)}, true
	}
	return c.resultFromPayload(ctx, payload)
}

// download fetches a result URL. JSON bodies with a text field yield that
// field; anything else is returned raw.
func (c *Client) download(ctx context.Context, u string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	status, body, err := c.do(c.client, req)
	if err != nil {
		return "", err
	}
	if status >= 300 {
		return "", llm.NewProtocolError(serviceTag, status, string(body))
	}
	if payload, ok := decodeObject(body); ok {
		for _, k := range textKeys {
			if v := stringField(payload, k); strings.TrimSpace(v) != "" {
				return v, nil
			}
		}
	}
	return string(body), nil
}

func (c *Client) postJSON(ctx context.Context, path string, payload map[string]interface{}) (int, []byte, error) {
	bodyBytes, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshaling request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return c.do(c.client, req)
}

func (c *Client) do(hc *http.Client, req *http.Request) (int, []byte, error) {
	resp, err := hc.Do(req)
	if err != nil {
		return 0, nil, llm.NewUnavailableError(serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, llm.NewUnavailableError(serviceTag, fmt.Errorf("reading response: %w", err))
	}
	return resp.StatusCode, body, nil
}

func decodeObject(body []byte) (map[string]interface{}, bool) {
	var out map[string]interface{}
	if err := json.Unmarshal(body, &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

func objectField(m map[string]interface{}, key string) map[string]interface{} {
	v, _ := m[key].(map[string]interface{})
	return v
}

func stringField(m map[string]interface{}, key string) string {
	v, _ := m[key].(string)
	return v
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
