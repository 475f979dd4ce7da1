package worker

import (
	"context"
	"errors"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// ErrJobNotFound is returned when a job id does not exist.
var ErrJobNotFound = errors.New("job not found")

// DefaultMaxAttempts bounds how many times a job is claimed before it is
// moved to dead.
const DefaultMaxAttempts = 3

// JobQueue is the persisted queue of pipeline batches. Implementations must
// be safe for concurrent use by many workers.
type JobQueue interface {
	// Enqueue inserts a job. A job whose idempotency key already exists is
	// ignored and Enqueue reports false.
	Enqueue(ctx context.Context, job domain.Job) (bool, error)

	// Claim locks up to limit queued jobs whose run_at is at or before now,
	// moves them to running, and counts one attempt on each.
	Claim(ctx context.Context, workerID string, limit int, now time.Time) ([]domain.Job, error)

	// Complete marks a running job done.
	Complete(ctx context.Context, id string) error

	// Fail records lastErr. The job is requeued at retryAt unless permanent
	// is set or its attempts are exhausted, in which case it is dead.
	// Returns the resulting status.
	Fail(ctx context.Context, id, lastErr string, retryAt time.Time, permanent bool) (domain.JobStatus, error)

	// Release returns a running job to the queue at runAt without counting
	// the attempt.
	Release(ctx context.Context, id string, runAt time.Time) error

	// RecoverStale requeues running jobs locked before staleBefore. Jobs
	// whose attempts are exhausted are moved to dead instead.
	RecoverStale(ctx context.Context, staleBefore time.Time) (int64, error)

	PhaseTracker
}
