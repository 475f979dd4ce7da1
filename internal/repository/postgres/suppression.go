package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository against PostgreSQL.
type SuppressionRepo struct{ db *sql.DB }

// NewSuppressionRepo creates a Postgres-backed suppression repository.
func NewSuppressionRepo(db *sql.DB) *SuppressionRepo { return &SuppressionRepo{db: db} }

func (r *SuppressionRepo) Upsert(ctx context.Context, e *domain.SuppressionEntry) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	campaignID := sql.NullString{String: e.CampaignID, Valid: e.CampaignID != ""}
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO suppression_list (id, organization_id, email, type, reason, campaign_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (organization_id, email) DO UPDATE SET
			type = EXCLUDED.type,
			reason = EXCLUDED.reason,
			campaign_id = EXCLUDED.campaign_id,
			updated_at = NOW()
		RETURNING id, created_at
	`, e.ID, e.OrganizationID, e.Email, e.Type, e.Reason, campaignID).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert suppression: %w", err)
	}
	return nil
}

func (r *SuppressionRepo) Remove(ctx context.Context, orgID, email string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM suppression_list WHERE organization_id = $1 AND email = $2`,
		orgID, email,
	)
	if err != nil {
		return fmt.Errorf("remove suppression: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return suppression.ErrNotFound
	}
	return nil
}

func (r *SuppressionRepo) Suppressed(ctx context.Context, orgID string, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT email FROM suppression_list WHERE organization_id = $1 AND email = ANY($2)`,
		orgID, pq.Array(emails),
	)
	if err != nil {
		return nil, fmt.Errorf("check suppressions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan suppressed email: %w", err)
		}
		out = append(out, email)
	}
	return out, rows.Err()
}

func (r *SuppressionRepo) List(ctx context.Context, orgID string, f suppression.ListFilter) ([]domain.SuppressionEntry, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "organization_id = $1"
	args := []interface{}{orgID}
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		where += fmt.Sprintf(" AND email ILIKE $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM suppression_list WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppressions: %w", err)
	}

	q := fmt.Sprintf(`
		SELECT id, organization_id, email, type, reason, COALESCE(campaign_id::text, ''), created_at
		FROM suppression_list WHERE %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`, where, len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppressions: %w", err)
	}
	defer rows.Close()

	var out []domain.SuppressionEntry
	for rows.Next() {
		var e domain.SuppressionEntry
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.Email, &e.Type, &e.Reason, &e.CampaignID, &e.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan suppression: %w", err)
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func (r *SuppressionRepo) Count(ctx context.Context, orgID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM suppression_list WHERE organization_id = $1`, orgID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count suppressions: %w", err)
	}
	return n, nil
}

func (r *SuppressionRepo) CountByType(ctx context.Context, orgID string) (map[domain.SuppressionType]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM suppression_list WHERE organization_id = $1 GROUP BY type`, orgID)
	if err != nil {
		return nil, fmt.Errorf("count suppressions by type: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.SuppressionType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		out[domain.SuppressionType(t)] = n
	}
	return out, rows.Err()
}
