package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
)

// QuotaRepo implements quota.Repository against PostgreSQL. Usage is only
// ever changed with single-statement arithmetic updates.
type QuotaRepo struct{ db *sql.DB }

// NewQuotaRepo creates a Postgres-backed quota repository.
func NewQuotaRepo(db *sql.DB) *QuotaRepo { return &QuotaRepo{db: db} }

const quotaColumns = `id, organization_id, monthly_quota, monthly_used, reset_at,
	last_warning_at, created_at, updated_at`

func scanQuota(s scanner) (*domain.QuotaRecord, error) {
	rec := &domain.QuotaRecord{}
	var warned sql.NullTime
	if err := s.Scan(&rec.ID, &rec.OrganizationID, &rec.MonthlyQuota, &rec.MonthlyUsed,
		&rec.ResetAt, &warned, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return nil, err
	}
	if warned.Valid {
		t := warned.Time
		rec.LastWarningAt = &t
	}
	return rec, nil
}

func (r *QuotaRepo) get(ctx context.Context, orgID string) (*domain.QuotaRecord, error) {
	rec, err := scanQuota(r.db.QueryRowContext(ctx,
		`SELECT `+quotaColumns+` FROM organization_quotas WHERE organization_id = $1`, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, quota.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get quota: %w", err)
	}
	return rec, nil
}

func (r *QuotaRepo) GetOrCreate(ctx context.Context, orgID string, defaultQuota int, resetAt time.Time) (*domain.QuotaRecord, error) {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO organization_quotas (id, organization_id, monthly_quota, monthly_used, reset_at, created_at, updated_at)
		VALUES ($1, $2, $3, 0, $4, NOW(), NOW())
		ON CONFLICT (organization_id) DO NOTHING
	`, uuid.New().String(), orgID, defaultQuota, resetAt)
	if err != nil {
		return nil, fmt.Errorf("create quota: %w", err)
	}
	return r.get(ctx, orgID)
}

func (r *QuotaRepo) ResetIfDue(ctx context.Context, orgID string, now, next time.Time) (*domain.QuotaRecord, error) {
	_, err := r.db.ExecContext(ctx, `
		UPDATE organization_quotas SET monthly_used = 0, reset_at = $3, updated_at = NOW()
		WHERE organization_id = $1 AND reset_at <= $2
	`, orgID, now, next)
	if err != nil {
		return nil, fmt.Errorf("reset quota: %w", err)
	}
	return r.get(ctx, orgID)
}

func (r *QuotaRepo) Increment(ctx context.Context, orgID string, n int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_quotas SET monthly_used = monthly_used + $2, updated_at = NOW()
		WHERE organization_id = $1
	`, orgID, n)
	if err != nil {
		return fmt.Errorf("increment quota usage: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return quota.ErrNotFound
	}
	return nil
}

func (r *QuotaRepo) ResetExpired(ctx context.Context, now, next time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_quotas SET monthly_used = 0, reset_at = $2, updated_at = NOW()
		WHERE reset_at <= $1
	`, now, next)
	if err != nil {
		return 0, fmt.Errorf("reset expired quotas: %w", err)
	}
	return res.RowsAffected()
}

func (r *QuotaRepo) SetMonthlyQuota(ctx context.Context, orgID string, q int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_quotas SET monthly_quota = $2, updated_at = NOW()
		WHERE organization_id = $1
	`, orgID, q)
	if err != nil {
		return fmt.Errorf("set monthly quota: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return quota.ErrNotFound
	}
	return nil
}

func (r *QuotaRepo) NearQuota(ctx context.Context, now time.Time, threshold float64) ([]domain.QuotaRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+quotaColumns+` FROM organization_quotas
		WHERE monthly_quota > 0 AND reset_at > $1
		  AND monthly_used::float / monthly_quota >= $2
		ORDER BY monthly_used::float / monthly_quota DESC
	`, now, threshold)
	if err != nil {
		return nil, fmt.Errorf("near quota: %w", err)
	}
	defer rows.Close()

	var out []domain.QuotaRecord
	for rows.Next() {
		rec, err := scanQuota(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quota: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *QuotaRepo) MarkWarned(ctx context.Context, orgID string, at, since time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE organization_quotas SET last_warning_at = $2, updated_at = NOW()
		WHERE organization_id = $1 AND (last_warning_at IS NULL OR last_warning_at < $3)
	`, orgID, at, since)
	if err != nil {
		return false, fmt.Errorf("mark quota warning: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
