// Package app wires configured collaborators into a runnable pipeline.
package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"planextract/internal/config"
	"planextract/internal/convert/cloudconvert"
	"planextract/internal/document"
	"planextract/internal/extraction"
	"planextract/internal/llm"
	"planextract/internal/llm/anthropic"
	"planextract/internal/llm/openrouter"
	"planextract/internal/ocr/reducto"
	"planextract/internal/pipeline"
	"planextract/internal/port"
	"planextract/internal/promptlog"
	s3storage "planextract/internal/storage/s3"
	"planextract/internal/template"
	"planextract/internal/template/vellum"
	"planextract/internal/tokens/gemini"
)

// Components are the wired collaborators shared by the server and the CLI.
type Components struct {
	Orchestrator *pipeline.Orchestrator
	Normalizer   *document.Normalizer
	Counter      *gemini.Counter
	Catalog      *template.CatalogSource
	// Storage is nil unless storage is enabled.
	Storage port.ObjectStorage
}

// RegisterProviders registers the built-in chat providers.
func RegisterProviders() {
	llm.RegisterProvider("openrouter", openrouter.Factory)
	llm.RegisterProvider("anthropic", anthropic.Factory)
}

// NewLogger builds a zap logger from the log section.
func NewLogger(cfg *config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

// Build wires every collaborator from cfg. RegisterProviders must have been
// called first.
func Build(ctx context.Context, cfg *config.Config) (*Components, error) {
	var storage port.ObjectStorage
	if cfg.Storage.Enabled {
		s, err := s3storage.NewS3Client(ctx, &cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("initializing object storage: %w", err)
		}
		storage = s
	}

	chat, err := llm.NewClientChain(&cfg.Chat)
	if err != nil {
		return nil, fmt.Errorf("initializing chat client: %w", err)
	}
	if cfg.Pipeline.LogPrompts {
		var sink port.PromptSink = promptlog.NewDirSink(cfg.Pipeline.PromptLogDir)
		if storage != nil {
			sink = promptlog.NewObjectSink(storage, cfg.Storage.PromptLogPrefix)
		}
		chat = promptlog.Wrap(chat, sink)
	}

	catalog, err := template.NewCatalogSource(cfg.Templates.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading template catalog: %w", err)
	}
	templates := template.NewStore(vellum.NewClient(&cfg.Templates))

	normalizer := document.NewNormalizer(
		cloudconvert.NewClient(&cfg.Convert),
		reducto.NewClient(&cfg.OCR),
		cfg.OCR.TablesAsMarkdown,
	)
	counter := gemini.NewCounter(&cfg.Tokens)
	runner := extraction.NewRunner(templates, chat, catalog)

	orch := pipeline.NewOrchestrator(
		normalizer,
		pipeline.NewTokenGuard(counter, cfg.Tokens.HardLimit),
		runner,
		pipeline.ConfigFrom(&cfg.Pipeline),
	)

	return &Components{
		Orchestrator: orch,
		Normalizer:   normalizer,
		Counter:      counter,
		Catalog:      catalog,
		Storage:      storage,
	}, nil
}
