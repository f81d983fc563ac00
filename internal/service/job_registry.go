package service

import (
	"sync"
	"time"

	"planextract/internal/domain"
)

// JobRegistry is the in-process store of async job records. Its contents
// are lost on restart.
type JobRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.JobRecord
	now  func() time.Time
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{jobs: make(map[string]*domain.JobRecord), now: time.Now}
}

// Create registers jobID as queued. A job that is still queued or running
// cannot be registered again; a finished one is replaced.
func (r *JobRegistry) Create(jobID string) (*domain.JobRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.jobs[jobID]; ok {
		if existing.Status == domain.JobStatusQueued || existing.Status == domain.JobStatusRunning {
			return nil, domain.ErrJobExists
		}
	}
	rec := &domain.JobRecord{
		JobID:     jobID,
		Status:    domain.JobStatusQueued,
		CreatedAt: r.now(),
	}
	r.jobs[jobID] = rec
	return copyRecord(rec), nil
}

// Start marks jobID as running.
func (r *JobRegistry) Start(jobID string) {
	r.update(jobID, func(rec *domain.JobRecord) {
		t := r.now()
		rec.Status = domain.JobStatusRunning
		rec.StartedAt = &t
	})
}

// Finish stores the result of jobID.
func (r *JobRegistry) Finish(jobID string, result *domain.Result) {
	r.update(jobID, func(rec *domain.JobRecord) {
		t := r.now()
		rec.Status = domain.JobStatusDone
		rec.Result = result
		rec.FinishedAt = &t
	})
}

// Fail stores the error of jobID.
func (r *JobRegistry) Fail(jobID string, err error) {
	r.update(jobID, func(rec *domain.JobRecord) {
		t := r.now()
		rec.Status = domain.JobStatusError
		rec.Error = err.Error()
		rec.FinishedAt = &t
	})
}

// Remove drops jobID.
func (r *JobRegistry) Remove(jobID string) {
	r.mu.Lock()
	delete(r.jobs, jobID)
	r.mu.Unlock()
}

// Get returns a copy of the record of jobID.
func (r *JobRegistry) Get(jobID string) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return copyRecord(rec), nil
}

func (r *JobRegistry) update(jobID string, fn func(*domain.JobRecord)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.jobs[jobID]; ok {
		fn(rec)
	}
}

func copyRecord(rec *domain.JobRecord) *domain.JobRecord {
	c := *rec
	return &c
}
