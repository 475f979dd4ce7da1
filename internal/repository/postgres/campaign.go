package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository, pipeline.CampaignStore and
// pipeline.ItemStore against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `id, organization_id, name, subject, sender_name, sender_email,
	service_description, tone, status, total_recipients, generated_count,
	sent_count, failed_count, suppressed_count, created_at, updated_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(s scanner) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := s.Scan(
		&c.ID, &c.OrganizationID, &c.Name, &c.Subject, &c.SenderName, &c.SenderEmail,
		&c.ServiceDescription, &c.Tone, &c.Status, &c.TotalRecipients, &c.GeneratedCount,
		&c.SentCount, &c.FailedCount, &c.SuppressedCount, &c.CreatedAt, &c.UpdatedAt,
	)
	return c, err
}

func (r *CampaignRepo) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1 AND organization_id = $2`,
		id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "organization_id = $1"
	args := []interface{}{orgID}
	idx := 2
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		where += fmt.Sprintf(" AND name ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE ` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

// Create inserts the campaign and its items in one transaction.
func (r *CampaignRepo) Create(ctx context.Context, c *domain.Campaign, items []domain.CampaignItem) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create campaign: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns
			(id, organization_id, name, subject, sender_name, sender_email,
			 service_description, tone, status, total_recipients, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	`, c.ID, c.OrganizationID, c.Name, c.Subject, c.SenderName, c.SenderEmail,
		c.ServiceDescription, c.Tone, c.Status, c.TotalRecipients, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("create campaign: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO campaign_items
			(id, campaign_id, organization_id, recipient_kind, business_id,
			 recipient_name, recipient_email, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
	`)
	if err != nil {
		return fmt.Errorf("prepare items: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		var businessID sql.NullInt64
		if d, ok := it.Recipient.(domain.DirectoryRecipient); ok {
			businessID = sql.NullInt64{Int64: d.BusinessID, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, it.ID, c.ID, c.OrganizationID, string(it.Recipient.Kind()),
			businessID, it.RecipientName, it.RecipientEmail, it.Status, it.CreatedAt); err != nil {
			return fmt.Errorf("create item: %w", err)
		}
	}
	return tx.Commit()
}

// Update applies the non-nil fields to a draft campaign.
func (r *CampaignRepo) Update(ctx context.Context, orgID, id string, u campaign.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}

	if u.Name != nil {
		add("name", *u.Name)
	}
	if u.Subject != nil {
		add("subject", *u.Subject)
	}
	if u.SenderName != nil {
		add("sender_name", *u.SenderName)
	}
	if u.SenderEmail != nil {
		add("sender_email", *u.SenderEmail)
	}
	if u.ServiceDescription != nil {
		add("service_description", *u.ServiceDescription)
	}
	if u.Tone != nil {
		add("tone", string(*u.Tone))
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE campaigns SET %s WHERE id = $%d AND organization_id = $%d AND status = 'draft'",
		strings.Join(sets, ", "), idx, idx+1)
	args = append(args, id, orgID)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	return r.guarded(ctx, res, orgID, id)
}

// Delete removes a draft campaign. Items cascade.
func (r *CampaignRepo) Delete(ctx context.Context, orgID, id string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM campaigns
		WHERE id = $1 AND organization_id = $2 AND status = 'draft'
	`, id, orgID)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	return r.guarded(ctx, res, orgID, id)
}

// TransitionStatus moves the campaign from one status to another only if it
// is still in from.
func (r *CampaignRepo) TransitionStatus(ctx context.Context, orgID, id string, from, to domain.CampaignStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", campaign.ErrInvalidTransition, from, to)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $1, updated_at = NOW()
		WHERE id = $2 AND organization_id = $3 AND status = $4
	`, to, id, orgID, from)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	return r.guarded(ctx, res, orgID, id)
}

// ListInFlight returns generating and sending campaigns last updated
// before updatedBefore, across organizations.
func (r *CampaignRepo) ListInFlight(ctx context.Context, updatedBefore time.Time) ([]domain.Campaign, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns
		WHERE status IN ('generating', 'sending') AND updated_at < $1
		ORDER BY updated_at`,
		updatedBefore)
	if err != nil {
		return nil, fmt.Errorf("list in-flight campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// guarded maps a zero-row conditional write to ErrNotFound when the
// campaign is gone and ErrInvalidTransition when its status did not match.
func (r *CampaignRepo) guarded(ctx context.Context, res sql.Result, orgID, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists bool
	if err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM campaigns WHERE id = $1 AND organization_id = $2)`,
		id, orgID,
	).Scan(&exists); err != nil {
		return fmt.Errorf("check campaign: %w", err)
	}
	if !exists {
		return campaign.ErrNotFound
	}
	return campaign.ErrInvalidTransition
}

// RefreshCounters recomputes every counter from the item rows in a single
// statement.
func (r *CampaignRepo) RefreshCounters(ctx context.Context, orgID, id string) (*domain.CampaignCounters, error) {
	var n domain.CampaignCounters
	err := r.db.QueryRowContext(ctx, `
		UPDATE campaigns c SET
			total_recipients = s.total,
			generated_count  = s.generated,
			sent_count       = s.sent,
			failed_count     = s.failed,
			suppressed_count = s.suppressed,
			updated_at       = NOW()
		FROM (
			SELECT COUNT(*) AS total,
			       COUNT(*) FILTER (WHERE generated_at IS NOT NULL) AS generated,
			       COUNT(*) FILTER (WHERE status IN ('sent', 'opened', 'clicked')) AS sent,
			       COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			       COUNT(*) FILTER (WHERE status = 'suppressed') AS suppressed
			FROM campaign_items
			WHERE campaign_id = $1 AND organization_id = $2
		) s
		WHERE c.id = $1 AND c.organization_id = $2
		RETURNING s.total, s.generated, s.sent, s.failed, s.suppressed
	`, id, orgID).Scan(&n.Total, &n.Generated, &n.Sent, &n.Failed, &n.Suppressed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("refresh counters: %w", err)
	}
	return &n, nil
}
