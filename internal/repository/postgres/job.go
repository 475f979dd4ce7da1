package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/worker"
)

// JobRepo implements worker.JobQueue on the campaign_jobs table.
type JobRepo struct {
	db          *sql.DB
	maxAttempts int
}

// NewJobRepo creates a Postgres-backed job queue.
func NewJobRepo(db *sql.DB) *JobRepo {
	return &JobRepo{db: db, maxAttempts: worker.DefaultMaxAttempts}
}

// WithMaxAttempts sets the attempt budget of jobs enqueued without one.
func (r *JobRepo) WithMaxAttempts(n int) *JobRepo {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

func (r *JobRepo) Enqueue(ctx context.Context, job domain.Job) (bool, error) {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.MaxAttempts <= 0 {
		job.MaxAttempts = r.maxAttempts
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO campaign_jobs (id, organization_id, campaign_id, phase, seq, idempotency_key,
			status, attempts, max_attempts, run_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'queued', 0, $7, $8, NOW(), NOW())
		ON CONFLICT (idempotency_key) DO NOTHING
	`, job.ID, job.OrganizationID, job.CampaignID, job.Phase, job.Seq, job.IdempotencyKey,
		job.MaxAttempts, job.RunAt)
	if err != nil {
		return false, fmt.Errorf("enqueue %s: %w", job.IdempotencyKey, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// Claim locks due jobs with FOR UPDATE SKIP LOCKED so concurrent workers
// never claim the same row.
func (r *JobRepo) Claim(ctx context.Context, workerID string, limit int, now time.Time) ([]domain.Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		UPDATE campaign_jobs
		SET status = 'running',
			attempts = attempts + 1,
			locked_by = $1,
			locked_at = $3,
			updated_at = NOW()
		WHERE id IN (
			SELECT id FROM campaign_jobs
			WHERE status = 'queued' AND run_at <= $3
			ORDER BY run_at ASC
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, organization_id, campaign_id, phase, seq, idempotency_key,
			status, attempts, max_attempts, run_at, last_error, created_at, updated_at
	`, workerID, limit, now)
	if err != nil {
		return nil, fmt.Errorf("claim jobs: %w", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j := domain.Job{LockedBy: workerID}
		if err := rows.Scan(&j.ID, &j.OrganizationID, &j.CampaignID, &j.Phase, &j.Seq,
			&j.IdempotencyKey, &j.Status, &j.Attempts, &j.MaxAttempts, &j.RunAt,
			&j.LastError, &j.CreatedAt, &j.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		at := now
		j.LockedAt = &at
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *JobRepo) Complete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs SET status = 'done', locked_by = NULL, locked_at = NULL, updated_at = NOW()
		WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return worker.ErrJobNotFound
	}
	return nil
}

func (r *JobRepo) Fail(ctx context.Context, id, lastErr string, retryAt time.Time, permanent bool) (domain.JobStatus, error) {
	var status domain.JobStatus
	err := r.db.QueryRowContext(ctx, `
		UPDATE campaign_jobs SET
			status = CASE WHEN $4 OR attempts >= max_attempts THEN 'dead' ELSE 'queued' END,
			run_at = CASE WHEN $4 OR attempts >= max_attempts THEN run_at ELSE $3 END,
			last_error = $2,
			locked_by = NULL,
			locked_at = NULL,
			updated_at = NOW()
		WHERE id = $1
		RETURNING status
	`, id, lastErr, retryAt, permanent).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", worker.ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("fail job: %w", err)
	}
	return status, nil
}

func (r *JobRepo) Release(ctx context.Context, id string, runAt time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs SET
			status = 'queued',
			run_at = $2,
			attempts = GREATEST(attempts - 1, 0),
			locked_by = NULL,
			locked_at = NULL,
			updated_at = NOW()
		WHERE id = $1
	`, id, runAt)
	if err != nil {
		return fmt.Errorf("release job: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return worker.ErrJobNotFound
	}
	return nil
}

func (r *JobRepo) RecoverStale(ctx context.Context, staleBefore time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_jobs SET
			status = CASE WHEN attempts >= max_attempts THEN 'dead' ELSE 'queued' END,
			last_error = CASE WHEN attempts >= max_attempts THEN 'worker lost while running' ELSE last_error END,
			locked_by = NULL,
			locked_at = NULL,
			updated_at = NOW()
		WHERE status = 'running' AND locked_at < $1
	`, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("recover stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// PhaseState counts any job that is not done as open.
func (r *JobRepo) PhaseState(ctx context.Context, campaignID string, phase domain.JobPhase) (bool, int, error) {
	var open bool
	var next int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(BOOL_OR(status <> 'done'), FALSE), COALESCE(MAX(seq) + 1, 0)
		FROM campaign_jobs
		WHERE campaign_id = $1 AND phase = $2
	`, campaignID, phase).Scan(&open, &next)
	if err != nil {
		return false, 0, fmt.Errorf("phase state %s %s: %w", campaignID, phase, err)
	}
	return open, next, nil
}
