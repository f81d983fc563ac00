package service

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/port"
)

// ProcessInput is the DTO for a processing request.
type ProcessInput struct {
	Job      *domain.Job
	File     io.Reader
	Filename string
}

// ProcessingService defines the document processing contract.
type ProcessingService interface {
	Process(ctx context.Context, input ProcessInput) (*domain.Result, error)
	Submit(ctx context.Context, input ProcessInput) (*domain.JobRecord, error)
	GetJob(ctx context.Context, jobID string) (*domain.JobRecord, error)
}

// Enqueuer schedules a staged job for background processing.
type Enqueuer interface {
	Enqueue(job *domain.Job, path string) error
}

type processingService struct {
	runner   port.PipelineRunner
	registry *JobRegistry
	queue    Enqueuer
	archive  port.ObjectStorage
}

// NewProcessingService creates a new ProcessingService. archive may be nil,
// in which case uploads are not archived.
func NewProcessingService(
	runner port.PipelineRunner,
	registry *JobRegistry,
	queue Enqueuer,
	archive port.ObjectStorage,
) ProcessingService {
	return &processingService{
		runner:   runner,
		registry: registry,
		queue:    queue,
		archive:  archive,
	}
}

func (s *processingService) Process(ctx context.Context, input ProcessInput) (*domain.Result, error) {
	if err := input.Job.Validate(); err != nil {
		return nil, err
	}
	staged, err := s.stage(ctx, input)
	if err != nil {
		return nil, err
	}
	defer func() { _ = os.Remove(staged) }()

	return s.runner.Run(ctx, input.Job, staged)
}

func (s *processingService) Submit(ctx context.Context, input ProcessInput) (*domain.JobRecord, error) {
	if err := input.Job.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Job.JobID) == "" {
		input.Job.JobID = uuid.New().String()
	}

	rec, err := s.registry.Create(input.Job.JobID)
	if err != nil {
		return nil, err
	}
	staged, err := s.stage(ctx, input)
	if err != nil {
		s.registry.Remove(input.Job.JobID)
		return nil, err
	}
	if err := s.queue.Enqueue(input.Job, staged); err != nil {
		s.registry.Remove(input.Job.JobID)
		_ = os.Remove(staged)
		return nil, err
	}
	zap.L().Info("service.processingService.Submit: job queued", zap.String("job_id", input.Job.JobID))
	return rec, nil
}

func (s *processingService) GetJob(_ context.Context, jobID string) (*domain.JobRecord, error) {
	return s.registry.Get(jobID)
}

// stage writes the upload to a temp file that keeps the original name as
// suffix, so its extension drives normalization.
func (s *processingService) stage(ctx context.Context, input ProcessInput) (string, error) {
	name := filepath.Base(input.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "document"
	}

	f, err := os.CreateTemp("", "incoming_*_"+name)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	if _, err := io.Copy(f, input.File); err != nil {
		_ = f.Close()
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("saving upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("saving upload: %w", err)
	}

	if s.archive != nil {
		s.archiveUpload(ctx, input.Job, f.Name(), name)
	}
	return f.Name(), nil
}

// archiveUpload copies the staged upload to object storage. Failures only warn.
func (s *processingService) archiveUpload(ctx context.Context, job *domain.Job, staged, name string) {
	f, err := os.Open(staged)
	if err != nil {
		zap.L().Warn("service.processingService.archiveUpload: open failed", zap.Error(err))
		return
	}
	defer func() { _ = f.Close() }()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := path.Join("uploads", job.BrokerID, job.EmployerID, job.JobID, name)
	out, err := s.archive.Upload(ctx, port.UploadInput{Key: key, Body: f, ContentType: contentType})
	if err != nil {
		zap.L().Warn("service.processingService.archiveUpload: upload failed", zap.String("key", key), zap.Error(err))
		return
	}
	zap.L().Info("service.processingService.archiveUpload: archived", zap.String("location", out.Location))
}
