package promptlog

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"planextract/internal/port"
)

// Client is a port.ChatClient that saves every composed request to a sink
// before forwarding it.
type Client struct {
	next port.ChatClient
	sink port.PromptSink
	now  func() time.Time
}

// Wrap returns next decorated with prompt logging to sink.
func Wrap(next port.ChatClient, sink port.PromptSink) *Client {
	return &Client{next: next, sink: sink, now: time.Now}
}

// WithClock overrides the clock used for dump names.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Chat saves the request and delegates to the wrapped client. Save failures
// only warn.
func (c *Client) Chat(ctx context.Context, req port.ChatRequest) (*port.ChatResponse, error) {
	c.save(ctx, req)
	return c.next.Chat(ctx, req)
}

func (c *Client) save(ctx context.Context, req port.ChatRequest) {
	payload, err := json.MarshalIndent(struct {
		Messages []port.Message `json:"messages"`
	}{req.Messages}, "", "  ")
	if err != nil {
		zap.L().Warn("promptlog.Client.save: marshal failed", zap.String("label", req.Label), zap.Error(err))
		return
	}

	name := FileName(c.now(), req.Label)
	if err := c.sink.Save(ctx, name, payload); err != nil {
		zap.L().Warn("promptlog.Client.save: failed to save prompt", zap.String("label", req.Label), zap.Error(err))
		return
	}

	parts, chars := 0, 0
	for _, m := range req.Messages {
		if m.Role != "user" {
			continue
		}
		for _, p := range m.Content {
			chars += len(p.Text)
			if p.CacheControl != nil {
				parts++
			}
		}
	}
	zap.L().Info("promptlog.Client.save: prompt saved",
		zap.String("label", req.Label),
		zap.String("name", name),
		zap.Int("content_parts", parts+2),
		zap.Int("chars", chars),
	)
}

// FileName returns the dump name for a request: <unix seconds>_<label>.json.
// Path separators in the label are replaced.
func FileName(t time.Time, label string) string {
	if label == "" {
		label = "chat"
	}
	label = strings.NewReplacer("/", "_", "\\", "_").Replace(label)
	return strconv.FormatInt(t.Unix(), 10) + "_" + label + ".json"
}
