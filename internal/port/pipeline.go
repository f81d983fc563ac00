package port

import (
	"context"

	"planextract/internal/domain"
)

// PipelineRunner runs the full extraction pipeline on a staged document.
type PipelineRunner interface {
	Run(ctx context.Context, job *domain.Job, documentPath string) (*domain.Result, error)
}
