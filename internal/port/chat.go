package port

import "context"

// CacheControl marks a content part as cacheable by the chat provider.
type CacheControl struct {
	Type string `json:"type"`
}

// ContentPart is one text block of a chat message.
type ContentPart struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *CacheControl `json:"cache_control,omitempty"`
}

// Message is a role plus its ordered content parts.
type Message struct {
	Role    string        `json:"role"`
	Content []ContentPart `json:"content"`
}

// ChatRequest carries a composed message list to a chat provider.
type ChatRequest struct {
	Messages  []Message
	Overrides map[string]interface{} // merged into the request body last
	Label     string                 // used for logs and prompt dumps
}

// Usage reports token accounting for one chat call.
type Usage struct {
	Model              string
	Provider           string
	GenerationID       string
	PromptTokens       int
	CompletionTokens   int
	TotalTokens        int
	CachedPromptTokens int
	CacheWriteTokens   int
	Cost               float64
	CacheRead          string
	CacheWrite         string
	CacheStatus        string
}

// ChatResponse contains the assistant text and usage of a chat call.
type ChatResponse struct {
	Text  string
	Usage Usage
}

// ChatClient abstracts a chat-completion endpoint.
type ChatClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
