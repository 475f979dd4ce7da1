package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/pipeline"
)

const itemColumns = `id, campaign_id, organization_id, recipient_kind, business_id,
	recipient_name, recipient_email, status, email_subject, email_content,
	message_id, error_message, generated_at, sent_at, created_at, updated_at`

func scanItem(s scanner) (*domain.CampaignItem, error) {
	it := &domain.CampaignItem{}
	var (
		kind        string
		businessID  sql.NullInt64
		messageID   sql.NullString
		generatedAt sql.NullTime
		sentAt      sql.NullTime
	)
	err := s.Scan(
		&it.ID, &it.CampaignID, &it.OrganizationID, &kind, &businessID,
		&it.RecipientName, &it.RecipientEmail, &it.Status, &it.EmailSubject, &it.EmailContent,
		&messageID, &it.ErrorMessage, &generatedAt, &sentAt, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	switch domain.RecipientKind(kind) {
	case domain.RecipientDirectory:
		it.Recipient = domain.DirectoryRecipient{BusinessID: businessID.Int64}
	default:
		it.Recipient = domain.ManualRecipient{Name: it.RecipientName, Email: it.RecipientEmail}
	}
	it.MessageID = messageID.String
	if generatedAt.Valid {
		t := generatedAt.Time
		it.GeneratedAt = &t
	}
	if sentAt.Valid {
		t := sentAt.Time
		it.SentAt = &t
	}
	return it, nil
}

func (r *CampaignRepo) queryItems(ctx context.Context, q string, args ...interface{}) ([]domain.CampaignItem, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.CampaignItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		out = append(out, *it)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) ListItems(ctx context.Context, orgID, campaignID string, f campaign.ItemFilter) ([]domain.CampaignItem, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	where := "campaign_id = $1 AND organization_id = $2"
	args := []interface{}{campaignID, orgID}
	if f.Status != "" {
		where += " AND status = $3"
		args = append(args, f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaign_items WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count items: %w", err)
	}

	q := `SELECT ` + itemColumns + ` FROM campaign_items WHERE ` + where +
		fmt.Sprintf(" ORDER BY created_at, id LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, f.Offset)
	items, err := r.queryItems(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list items: %w", err)
	}
	return items, total, nil
}

func (r *CampaignRepo) GetItem(ctx context.Context, orgID, itemID string) (*domain.CampaignItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM campaign_items WHERE id = $1 AND organization_id = $2`,
		itemID, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return it, nil
}

func (r *CampaignRepo) CountItems(ctx context.Context, orgID, campaignID string) (map[domain.ItemStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM campaign_items
		WHERE campaign_id = $1 AND organization_id = $2
		GROUP BY status
	`, campaignID, orgID)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ItemStatus]int)
	for rows.Next() {
		var status domain.ItemStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *CampaignRepo) FindItemByMessageID(ctx context.Context, messageID string) (*domain.CampaignItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM campaign_items WHERE message_id = $1`, messageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, campaign.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find item by message id: %w", err)
	}
	return it, nil
}

// AdvanceEngagement moves a sent item to opened or clicked, and an opened
// item to clicked. Engagement never moves backwards.
func (r *CampaignRepo) AdvanceEngagement(ctx context.Context, orgID, itemID string, to domain.ItemStatus) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET status = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2
		  AND (status = 'sent' OR ($3 = 'clicked' AND status = 'opened'))
	`, itemID, orgID, to)
	if err != nil {
		return false, fmt.Errorf("advance engagement: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *CampaignRepo) ListByStatus(ctx context.Context, orgID, campaignID string, status domain.ItemStatus, limit int) ([]domain.CampaignItem, error) {
	items, err := r.queryItems(ctx, `
		SELECT `+itemColumns+` FROM campaign_items
		WHERE campaign_id = $1 AND organization_id = $2 AND status = $3
		ORDER BY created_at, id
		LIMIT $4
	`, campaignID, orgID, status, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s items: %w", status, err)
	}
	return items, nil
}

func (r *CampaignRepo) CountByStatus(ctx context.Context, orgID, campaignID string, status domain.ItemStatus) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM campaign_items
		WHERE campaign_id = $1 AND organization_id = $2 AND status = $3
	`, campaignID, orgID, status).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s items: %w", status, err)
	}
	return n, nil
}

func (r *CampaignRepo) MarkGenerated(ctx context.Context, orgID, itemID string, g pipeline.Generated) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET
			status = 'generated',
			recipient_name = $3,
			recipient_email = $4,
			email_subject = $5,
			email_content = $6,
			generated_at = $7,
			error_message = '',
			updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'pending'
	`, itemID, orgID, g.RecipientName, g.RecipientEmail, g.Subject, g.HTML, g.At)
	return updated(res, err, "mark generated")
}

func (r *CampaignRepo) MarkFailed(ctx context.Context, orgID, itemID, reason string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET status = 'failed', error_message = $3, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status IN ('pending', 'generated', 'sending')
	`, itemID, orgID, reason)
	return updated(res, err, "mark failed")
}

// ClaimForSend moves generated items to sending and returns the ids this
// call claimed. Items claimed by a concurrent call are skipped.
func (r *CampaignRepo) ClaimForSend(ctx context.Context, orgID string, itemIDs []string) ([]string, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		UPDATE campaign_items SET status = 'sending', updated_at = NOW()
		WHERE organization_id = $1 AND id = ANY($2::uuid[]) AND status = 'generated'
		RETURNING id
	`, orgID, pq.Array(itemIDs))
	if err != nil {
		return nil, fmt.Errorf("claim items: %w", err)
	}
	defer rows.Close()

	var claimed []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claimed id: %w", err)
		}
		claimed = append(claimed, id)
	}
	return claimed, rows.Err()
}

func (r *CampaignRepo) MarkSent(ctx context.Context, orgID, itemID, messageID string, at time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET status = 'sent', message_id = $3, sent_at = $4, updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'sending'
	`, itemID, orgID, messageID, at)
	return updated(res, err, "mark sent")
}

func (r *CampaignRepo) MarkSuppressed(ctx context.Context, orgID, itemID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET status = 'suppressed', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status IN ('generated', 'sending')
	`, itemID, orgID)
	return updated(res, err, "mark suppressed")
}

// ReleaseClaim returns a claimed item to generated without sending it.
func (r *CampaignRepo) ReleaseClaim(ctx context.Context, orgID, itemID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET status = 'generated', updated_at = NOW()
		WHERE id = $1 AND organization_id = $2 AND status = 'sending'
	`, itemID, orgID)
	return updated(res, err, "release claim")
}

// updated reports whether a conditional item update matched a row.
func updated(res sql.Result, err error, op string) (bool, error) {
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// FailStaleSending fails items left in sending since before staleBefore.
// Whether the provider accepted them is unknown, so they are not re-sent.
func (r *CampaignRepo) FailStaleSending(ctx context.Context, staleBefore time.Time, reason string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaign_items SET status = 'failed', error_message = $2, updated_at = NOW()
		WHERE status = 'sending' AND updated_at < $1
	`, staleBefore, reason)
	if err != nil {
		return 0, fmt.Errorf("fail stale sending items: %w", err)
	}
	return res.RowsAffected()
}

// EventRepo implements campaign.EventStore.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event store.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

func (r *EventRepo) Append(ctx context.Context, e *domain.EmailEvent) error {
	var payload interface{}
	if len(e.Payload) > 0 {
		payload = []byte(e.Payload)
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_events (id, organization_id, campaign_id, item_id, message_id, type, payload, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.OrganizationID, e.CampaignID, e.ItemID, e.MessageID, e.Type, payload, e.OccurredAt)
	if err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

func (r *EventRepo) ListEvents(ctx context.Context, orgID, campaignID string, limit, offset int) ([]domain.EmailEvent, int, error) {
	if limit <= 0 {
		limit = 100
	}
	var total int
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM email_events WHERE campaign_id = $1 AND organization_id = $2`,
		campaignID, orgID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, organization_id, campaign_id, item_id, message_id, type, payload, occurred_at
		FROM email_events
		WHERE campaign_id = $1 AND organization_id = $2
		ORDER BY occurred_at DESC, id
		LIMIT $3 OFFSET $4
	`, campaignID, orgID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailEvent
	for rows.Next() {
		var e domain.EmailEvent
		var payload []byte
		if err := rows.Scan(&e.ID, &e.OrganizationID, &e.CampaignID, &e.ItemID, &e.MessageID,
			&e.Type, &payload, &e.OccurredAt); err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		if len(payload) > 0 {
			e.Payload = payload
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	return out, total, nil
}

func (r *EventRepo) CountEvents(ctx context.Context, orgID, campaignID string) (map[domain.EmailEventType]campaign.EventCount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT type, COUNT(*), COUNT(DISTINCT item_id) FROM email_events
		WHERE campaign_id = $1 AND organization_id = $2
		GROUP BY type
	`, campaignID, orgID)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.EmailEventType]campaign.EventCount)
	for rows.Next() {
		var t domain.EmailEventType
		var c campaign.EventCount
		if err := rows.Scan(&t, &c.Total, &c.Recipients); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[t] = c
	}
	return counts, rows.Err()
}
