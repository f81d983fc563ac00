package port

import "context"

// TemplateFetcher retrieves a deployed prompt template from the remote store.
type TemplateFetcher interface {
	Fetch(ctx context.Context, key, version string) (string, error)
}

// TemplateStore returns prompt template text by key. An empty version means latest.
type TemplateStore interface {
	Get(ctx context.Context, key, version string) (string, error)
}
