package cloudconvert

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
)

const (
	defaultBaseURL = "https://api.cloudconvert.com/v2"
	serviceTag     = "cloudconvert"

	taskImport  = "import-file"
	taskConvert = "convert-file"
	taskExport  = "export-file"
)

// Client converts office documents to PDF through the CloudConvert jobs API.
// It implements port.DocumentConverter.
type Client struct {
	apiKey       string
	baseURL      string
	client       *http.Client
	pollInterval time.Duration
	pollMaxWait  time.Duration
}

// NewClient creates a CloudConvert client from config.
func NewClient(cfg *config.ConvertConfig) *Client {
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
		maxWait = 300 * time.Second
	}
	return &Client{
		apiKey:       cfg.APIKey,
		baseURL:      strings.TrimRight(base, "/"),
		client:       &http.Client{Timeout: timeout},
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

type task struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Result    struct {
		Form *struct {
			URL        string                 `json:"url"`
			Parameters map[string]interface{} `json:"parameters"`
		} `json:"form"`
		Files []struct {
			Filename string `json:"filename"`
			URL      string `json:"url"`
		} `json:"files"`
	} `json:"result"`
}

type jobEnvelope struct {
	Data struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Tasks  []task `json:"tasks"`
	} `json:"data"`
}

func (j *jobEnvelope) task(name string) *task {
	for i := range j.Data.Tasks {
		if j.Data.Tasks[i].Name == name {
			return &j.Data.Tasks[i]
		}
	}
	return nil
}

// ConvertToPDF uploads inputPath, waits for the conversion job and downloads
// the PDF next to the input. It returns the PDF path.
func (c *Client) ConvertToPDF(ctx context.Context, inputPath string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: conversion api key not set", domain.ErrUpstreamUnavailable)
	}
	zap.L().Info("cloudconvert.Client.ConvertToPDF: starting conversion", zap.String("file", filepath.Base(inputPath)))

	job, err := c.createJob(ctx)
	if err != nil {
		return "", err
	}

	imp := job.task(taskImport)
	if imp == nil || imp.Result.Form == nil || imp.Result.Form.URL == "" {
		return "", llm.NewProtocolError(serviceTag, 0, "job has no upload form")
	}
	if err := c.uploadFile(ctx, imp.Result.Form.URL, imp.Result.Form.Parameters, inputPath); err != nil {
		return "", err
	}

	done, err := c.waitJob(ctx, job.Data.ID)
	if err != nil {
		return "", err
	}

	exp := done.task(taskExport)
	if exp == nil || len(exp.Result.Files) == 0 || exp.Result.Files[0].URL == "" {
		return "", llm.NewProtocolError(serviceTag, 0, "finished job has no export file")
	}

	outPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".pdf"
	if err := c.download(ctx, exp.Result.Files[0].URL, outPath); err != nil {
		return "", err
	}
	zap.L().Info("cloudconvert.Client.ConvertToPDF: conversion finished", zap.String("pdf", filepath.Base(outPath)))
	return outPath, nil
}

func (c *Client) createJob(ctx context.Context) (*jobEnvelope, error) {
	reqBody := map[string]interface{}{
		"tasks": map[string]interface{}{
			taskImport: map[string]interface{}{"operation": "import/upload"},
			taskConvert: map[string]interface{}{
				"operation":     "convert",
				"input":         taskImport,
				"output_format": "pdf",
			},
			taskExport: map[string]interface{}{
				"operation": "export/url",
				"input":     taskConvert,
			},
		},
	}
	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jobs", bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var job jobEnvelope
	if err := c.doJSON(req, &job); err != nil {
		return nil, fmt.Errorf("creating job: %w", err)
	}
	return &job, nil
}

func (c *Client) uploadFile(ctx context.Context, formURL string, params map[string]interface{}, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening input: %w", err)
	}
	defer func() { _ = f.Close() }()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range params {
		if err := mw.WriteField(k, fmt.Sprint(v)); err != nil {
			return fmt.Errorf("writing form field: %w", err)
		}
	}
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("copying input: %w", err)
	}
	if err := mw.Close(); err != nil {
		return fmt.Errorf("closing multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, formURL, &buf)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return llm.NewUnavailableError(serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("uploading input: %w", llm.NewProtocolError(serviceTag, resp.StatusCode, string(body)))
	}
	return nil
}

func (c *Client) waitJob(ctx context.Context, id string) (*jobEnvelope, error) {
	deadline := time.Now().Add(c.pollMaxWait)
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/jobs/"+id, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		var job jobEnvelope
		if err := c.doJSON(req, &job); err != nil {
			return nil, fmt.Errorf("polling job: %w", err)
		}

		switch job.Data.Status {
		case "finished":
			return &job, nil
		case "error":
			msg := "conversion failed"
			for _, t := range job.Data.Tasks {
				if t.Status == "error" && t.Message != "" {
					msg = t.Name + ": " + t.Message
					break
				}
			}
			return nil, llm.NewProtocolError(serviceTag, 0, msg)
		}

		if time.Now().After(deadline) {
			return nil, llm.NewProtocolError(serviceTag, 0, fmt.Sprintf("job %s not finished after %s", id, c.pollMaxWait))
		}
		timer := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (c *Client) download(ctx context.Context, url, outPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return llm.NewUnavailableError(serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("downloading pdf: %w", llm.NewProtocolError(serviceTag, resp.StatusCode, string(body)))
	}

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("creating pdf file: %w", err)
	}
	if _, err := io.Copy(out, resp.Body); err != nil {
		_ = out.Close()
		return llm.NewUnavailableError(serviceTag, fmt.Errorf("writing pdf: %w", err))
	}
	return out.Close()
}

func (c *Client) doJSON(req *http.Request, out interface{}) error {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return llm.NewUnavailableError(serviceTag, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.NewUnavailableError(serviceTag, fmt.Errorf("reading response: %w", err))
	}
	if resp.StatusCode >= 300 {
		return llm.NewProtocolError(serviceTag, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return llm.NewProtocolError(serviceTag, 0, fmt.Sprintf("decoding response: %v", err))
	}
	return nil
}
