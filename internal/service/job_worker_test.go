package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"planextract/internal/domain"
	"planextract/internal/service"
	"planextract/mocks"
)

func stagedFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte("%PDF"), 0o644))
	return p
}

func TestJobWorker_RunsJobs(t *testing.T) {
	runner := new(mocks.MockPipelineRunner)
	registry := service.NewJobRegistry()
	w := service.NewJobWorker(runner, registry, service.JobWorkerConfig{Concurrency: 2, QueueSize: 4})

	okJob := &domain.Job{JobID: "ok", Option: domain.OptionAllPlans}
	badJob := &domain.Job{JobID: "bad", Option: domain.OptionAllPlans}
	okPath := stagedFile(t, "ok.pdf")
	badPath := stagedFile(t, "bad.pdf")

	runner.On("Run", mock.Anything, okJob, okPath).Return(&domain.Result{JobID: "ok", Message: "OK"}, nil)
	runner.On("Run", mock.Anything, badJob, badPath).Return(nil, errors.New("reducto unavailable: dial tcp"))

	for _, id := range []string{"ok", "bad"} {
		_, err := registry.Create(id)
		require.NoError(t, err)
	}
	require.NoError(t, w.Enqueue(okJob, okPath))
	require.NoError(t, w.Enqueue(badJob, badPath))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		ok, _ := registry.Get("ok")
		bad, _ := registry.Get("bad")
		return ok.Status == domain.JobStatusDone && bad.Status == domain.JobStatusError
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done

	ok, _ := registry.Get("ok")
	assert.Equal(t, "OK", ok.Result.Message)
	bad, _ := registry.Get("bad")
	assert.Contains(t, bad.Error, "reducto unavailable")

	_, err := os.Stat(okPath)
	assert.True(t, os.IsNotExist(err), "staged file removed after run")
}

func TestJobWorker_QueueFull(t *testing.T) {
	w := service.NewJobWorker(new(mocks.MockPipelineRunner), service.NewJobRegistry(), service.JobWorkerConfig{Concurrency: 1, QueueSize: 1})

	require.NoError(t, w.Enqueue(&domain.Job{JobID: "a"}, "a.pdf"))
	err := w.Enqueue(&domain.Job{JobID: "b"}, "b.pdf")
	assert.ErrorIs(t, err, domain.ErrQueueFull)
}

func TestJobWorker_ShutdownFailsQueuedJobs(t *testing.T) {
	runner := new(mocks.MockPipelineRunner)
	registry := service.NewJobRegistry()
	w := service.NewJobWorker(runner, registry, service.JobWorkerConfig{Concurrency: 1, QueueSize: 4})

	var paths []string
	for _, id := range []string{"a", "b", "c"} {
		_, err := registry.Create(id)
		require.NoError(t, err)
		p := stagedFile(t, id+".pdf")
		paths = append(paths, p)
		require.NoError(t, w.Enqueue(&domain.Job{JobID: id}, p))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Start(ctx)

	for _, id := range []string{"a", "b", "c"} {
		rec, err := registry.Get(id)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusError, rec.Status, id)
	}
	for _, p := range paths {
		_, err := os.Stat(p)
		assert.True(t, os.IsNotExist(err), p)
	}
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything, mock.Anything)
}
