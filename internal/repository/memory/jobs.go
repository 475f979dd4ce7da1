package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/worker"
)

// JobQueue implements worker.JobQueue and the enqueue contracts of the
// campaign and pipeline packages.
type JobQueue struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	keys        map[string]string // idempotency key -> id
	maxAttempts int
}

// NewJobQueue creates an empty queue.
func NewJobQueue() *JobQueue {
	return &JobQueue{
		jobs:        make(map[string]*domain.Job),
		keys:        make(map[string]string),
		maxAttempts: worker.DefaultMaxAttempts,
	}
}

// WithMaxAttempts sets the attempt budget of jobs enqueued without one.
func (q *JobQueue) WithMaxAttempts(n int) *JobQueue {
	if n > 0 {
		q.maxAttempts = n
	}
	return q
}

func (q *JobQueue) Enqueue(_ context.Context, job domain.Job) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if _, ok := q.keys[job.IdempotencyKey]; ok {
		return false, nil
	}
	now := time.Now().UTC()
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = domain.JobQueued
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = q.maxAttempts
	}
	job.CreatedAt, job.UpdatedAt = now, now
	q.jobs[job.ID] = &job
	q.keys[job.IdempotencyKey] = job.ID
	return true, nil
}

func (q *JobQueue) Claim(_ context.Context, workerID string, limit int, now time.Time) ([]domain.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*domain.Job
	for _, j := range q.jobs {
		if j.Status == domain.JobQueued && !j.RunAt.After(now) {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool { return due[a].RunAt.Before(due[b].RunAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	out := make([]domain.Job, 0, len(due))
	for _, j := range due {
		at := now
		j.Status = domain.JobRunning
		j.Attempts++
		j.LockedBy = workerID
		j.LockedAt = &at
		j.UpdatedAt = now
		out = append(out, *j)
	}
	return out, nil
}

func (q *JobQueue) Complete(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return worker.ErrJobNotFound
	}
	j.Status = domain.JobDone
	j.LockedBy, j.LockedAt = "", nil
	return nil
}

func (q *JobQueue) Fail(_ context.Context, id, lastErr string, retryAt time.Time, permanent bool) (domain.JobStatus, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return "", worker.ErrJobNotFound
	}
	j.LastError = lastErr
	j.LockedBy, j.LockedAt = "", nil
	if permanent || j.Attempts >= j.MaxAttempts {
		j.Status = domain.JobDead
	} else {
		j.Status = domain.JobQueued
		j.RunAt = retryAt
	}
	return j.Status, nil
}

func (q *JobQueue) Release(_ context.Context, id string, runAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return worker.ErrJobNotFound
	}
	j.Status = domain.JobQueued
	j.RunAt = runAt
	j.LockedBy, j.LockedAt = "", nil
	if j.Attempts > 0 {
		j.Attempts--
	}
	return nil
}

func (q *JobQueue) RecoverStale(_ context.Context, staleBefore time.Time) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var n int64
	for _, j := range q.jobs {
		if j.Status == domain.JobRunning && j.LockedAt != nil && j.LockedAt.Before(staleBefore) {
			j.Status = domain.JobQueued
			if j.Attempts >= j.MaxAttempts {
				j.Status = domain.JobDead
				j.LastError = "worker lost while running"
			}
			j.LockedBy, j.LockedAt = "", nil
			n++
		}
	}
	return n, nil
}

func (q *JobQueue) PhaseState(_ context.Context, campaignID string, phase domain.JobPhase) (bool, int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	open, next := false, 0
	for _, j := range q.jobs {
		if j.CampaignID != campaignID || j.Phase != phase {
			continue
		}
		if j.Status != domain.JobDone {
			open = true
		}
		if j.Seq >= next {
			next = j.Seq + 1
		}
	}
	return open, next, nil
}

// Jobs returns a snapshot of every job ordered by run_at then seq.
func (q *JobQueue) Jobs() []domain.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]domain.Job, 0, len(q.jobs))
	for _, j := range q.jobs {
		out = append(out, *j)
	}
	sort.Slice(out, func(a, b int) bool {
		if out[a].RunAt.Equal(out[b].RunAt) {
			return out[a].Seq < out[b].Seq
		}
		return out[a].RunAt.Before(out[b].RunAt)
	})
	return out
}

// Pending returns queued jobs ordered like Jobs.
func (q *JobQueue) Pending() []domain.Job {
	var out []domain.Job
	for _, j := range q.Jobs() {
		if j.Status == domain.JobQueued {
			out = append(out, j)
		}
	}
	return out
}

// Get returns a copy of the job with id.
func (q *JobQueue) Get(id string) (domain.Job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	j, ok := q.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	return *j, true
}
