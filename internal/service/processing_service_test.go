package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planextract/internal/domain"
	"planextract/internal/port"
	"planextract/internal/service"
	"planextract/mocks"
)

type fakeQueue struct {
	err   error
	jobs  []*domain.Job
	paths []string
}

func (q *fakeQueue) Enqueue(job *domain.Job, path string) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	q.paths = append(q.paths, path)
	return nil
}

func TestProcessingService_Process(t *testing.T) {
	runner := new(mocks.MockPipelineRunner)
	svc := service.NewProcessingService(runner, service.NewJobRegistry(), &fakeQueue{}, nil)
	job := &domain.Job{JobID: "j1", Option: domain.OptionAutoRead, EnableCache: true}

	var stagedPath string
	runner.On("Run", mock.Anything, job, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) {
			stagedPath = args.String(2)
			data, err := os.ReadFile(stagedPath)
			require.NoError(t, err)
			assert.Equal(t, "%PDF-1.4 body", string(data))
		}).
		Return(&domain.Result{JobID: "j1", Message: "OK"}, nil)

	res, err := svc.Process(context.Background(), service.ProcessInput{
		Job:      job,
		File:     strings.NewReader("%PDF-1.4 body"),
		Filename: "../../Benefit Summary.PDF",
	})
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Message)

	base := filepath.Base(stagedPath)
	assert.True(t, strings.HasPrefix(base, "incoming_"), base)
	assert.True(t, strings.HasSuffix(base, "_Benefit Summary.PDF"), base)
	_, statErr := os.Stat(stagedPath)
	assert.True(t, os.IsNotExist(statErr), "staged file removed")
}

func TestProcessingService_Process_InvalidJob(t *testing.T) {
	runner := new(mocks.MockPipelineRunner)
	svc := service.NewProcessingService(runner, service.NewJobRegistry(), &fakeQueue{}, nil)

	_, err := svc.Process(context.Background(), service.ProcessInput{
		Job:      &domain.Job{JobID: "j1", Option: domain.OptionSearch},
		File:     strings.NewReader("x"),
		Filename: "a.pdf",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessingService_Submit(t *testing.T) {
	registry := service.NewJobRegistry()
	queue := &fakeQueue{}
	svc := service.NewProcessingService(new(mocks.MockPipelineRunner), registry, queue, nil)

	rec, err := svc.Submit(context.Background(), service.ProcessInput{
		Job:      &domain.Job{JobID: "j1", Option: domain.OptionAllPlans},
		File:     strings.NewReader("doc"),
		Filename: "plan.docx",
	})
	require.NoError(t, err)
	assert.Equal(t, "j1", rec.JobID)
	assert.Equal(t, domain.JobStatusQueued, rec.Status)
	require.Len(t, queue.paths, 1)
	t.Cleanup(func() { _ = os.Remove(queue.paths[0]) })
	assert.True(t, strings.HasSuffix(queue.paths[0], "_plan.docx"))

	got, err := svc.GetJob(context.Background(), "j1")
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusQueued, got.Status)

	_, err = svc.Submit(context.Background(), service.ProcessInput{
		Job:      &domain.Job{JobID: "j1", Option: domain.OptionAllPlans},
		File:     strings.NewReader("doc"),
		Filename: "plan.docx",
	})
	assert.ErrorIs(t, err, domain.ErrJobExists)
}

func TestProcessingService_Submit_GeneratesJobID(t *testing.T) {
	queue := &fakeQueue{}
	svc := service.NewProcessingService(new(mocks.MockPipelineRunner), service.NewJobRegistry(), queue, nil)

	rec, err := svc.Submit(context.Background(), service.ProcessInput{
		Job:      &domain.Job{Option: domain.OptionAllPlans},
		File:     strings.NewReader("doc"),
		Filename: "plan.pdf",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.Remove(queue.paths[0]) })
	assert.Len(t, rec.JobID, 36)
}

func TestProcessingService_Submit_QueueFull(t *testing.T) {
	registry := service.NewJobRegistry()
	svc := service.NewProcessingService(new(mocks.MockPipelineRunner), registry, &fakeQueue{err: domain.ErrQueueFull}, nil)

	_, err := svc.Submit(context.Background(), service.ProcessInput{
		Job:      &domain.Job{JobID: "j1", Option: domain.OptionAllPlans},
		File:     strings.NewReader("doc"),
		Filename: "plan.pdf",
	})
	assert.ErrorIs(t, err, domain.ErrQueueFull)

	_, err = registry.Get("j1")
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestProcessingService_ArchivesUpload(t *testing.T) {
	runner := new(mocks.MockPipelineRunner)
	archive := new(mocks.MockObjectStorage)
	svc := service.NewProcessingService(runner, service.NewJobRegistry(), &fakeQueue{}, archive)
	job := &domain.Job{JobID: "j1", BrokerID: "b1", EmployerID: "e1", Option: domain.OptionAllPlans}

	var uploaded port.UploadInput
	var body []byte
	archive.On("Upload", mock.Anything, mock.AnythingOfType("port.UploadInput")).
		Run(func(args mock.Arguments) {
			uploaded = args.Get(1).(port.UploadInput)
			body, _ = io.ReadAll(uploaded.Body)
		}).
		Return(&port.UploadOutput{Location: "s3://bucket/uploads/b1/e1/j1/plan.pdf"}, nil)
	runner.On("Run", mock.Anything, job, mock.Anything).Return(&domain.Result{Message: "OK"}, nil)

	_, err := svc.Process(context.Background(), service.ProcessInput{Job: job, File: strings.NewReader("pdf body"), Filename: "plan.pdf"})
	require.NoError(t, err)
	archive.AssertExpectations(t)
	assert.Equal(t, "uploads/b1/e1/j1/plan.pdf", uploaded.Key)
	assert.Equal(t, "application/pdf", uploaded.ContentType)
	assert.Equal(t, "pdf body", string(body))
}

func TestProcessingService_ArchiveFailureIsNotFatal(t *testing.T) {
	runner := new(mocks.MockPipelineRunner)
	archive := new(mocks.MockObjectStorage)
	svc := service.NewProcessingService(runner, service.NewJobRegistry(), &fakeQueue{}, archive)
	job := &domain.Job{JobID: "j1", Option: domain.OptionAllPlans}

	archive.On("Upload", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	runner.On("Run", mock.Anything, job, mock.Anything).Return(&domain.Result{Message: "OK"}, nil)

	res, err := svc.Process(context.Background(), service.ProcessInput{Job: job, File: strings.NewReader("x"), Filename: "plan.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Message)
}
