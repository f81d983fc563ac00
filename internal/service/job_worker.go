package service

import (
	"context"
	"os"
	"sync"

	"go.uber.org/zap"

	"planextract/internal/domain"
	"planextract/internal/metrics"
	"planextract/internal/port"
)

// JobWorkerConfig holds settings for the job worker.
type JobWorkerConfig struct {
	Concurrency int
	QueueSize   int
}

type jobTask struct {
	job  *domain.Job
	path string
}

// JobWorker runs queued pipeline jobs in the background.
type JobWorker struct {
	runner   port.PipelineRunner
	registry *JobRegistry
	cfg      JobWorkerConfig
	queue    chan jobTask
	wg       sync.WaitGroup
}

// NewJobWorker creates a new JobWorker.
func NewJobWorker(runner port.PipelineRunner, registry *JobRegistry, cfg JobWorkerConfig) *JobWorker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1
	}
	return &JobWorker{
		runner:   runner,
		registry: registry,
		cfg:      cfg,
		queue:    make(chan jobTask, cfg.QueueSize),
	}
}

// Enqueue schedules job on the staged document at path.
func (w *JobWorker) Enqueue(job *domain.Job, path string) error {
	select {
	case w.queue <- jobTask{job: job, path: path}:
		metrics.JobsInFlight.Inc()
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Start dispatches queued jobs until ctx is canceled. Jobs still queued at
// that point are failed and their staged files removed. It blocks until all
// in-flight jobs have finished.
func (w *JobWorker) Start(ctx context.Context) {
	sem := make(chan struct{}, w.cfg.Concurrency)

	zap.L().Info("service.JobWorker.Start: started",
		zap.Int("concurrency", w.cfg.Concurrency),
		zap.Int("queue_size", w.cfg.QueueSize),
	)

	for {
		select {
		case <-ctx.Done():
			zap.L().Info("service.JobWorker.Start: shutting down, waiting for in-flight jobs")
			w.drain()
			w.wg.Wait()
			zap.L().Info("service.JobWorker.Start: shutdown complete")
			return
		case task := <-w.queue:
			if ctx.Err() != nil {
				w.abandon(task)
				continue
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				w.abandon(task)
				continue
			}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-sem }()
				w.run(task)
			}()
		}
	}
}

// run executes one job. Jobs are not cancelled once started.
func (w *JobWorker) run(task jobTask) {
	defer metrics.JobsInFlight.Dec()
	defer func() { _ = os.Remove(task.path) }()

	log := zap.L().With(zap.String("job_id", task.job.JobID))
	w.registry.Start(task.job.JobID)
	log.Info("service.JobWorker.run: job started")

	res, err := w.runner.Run(context.Background(), task.job, task.path)
	if err != nil {
		log.Error("service.JobWorker.run: job failed", zap.Error(err))
		w.registry.Fail(task.job.JobID, err)
		return
	}
	w.registry.Finish(task.job.JobID, res)
	log.Info("service.JobWorker.run: job finished", zap.String("message", res.Message))
}

// drain abandons every task left in the queue.
func (w *JobWorker) drain() {
	for {
		select {
		case task := <-w.queue:
			w.abandon(task)
		default:
			return
		}
	}
}

func (w *JobWorker) abandon(task jobTask) {
	metrics.JobsInFlight.Dec()
	_ = os.Remove(task.path)
	w.registry.Fail(task.job.JobID, context.Canceled)
}
