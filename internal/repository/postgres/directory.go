package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// DirectoryRepo reads businesses from the directory table. It never writes.
type DirectoryRepo struct{ db *sql.DB }

// NewDirectoryRepo creates a Postgres-backed directory reader.
func NewDirectoryRepo(db *sql.DB) *DirectoryRepo { return &DirectoryRepo{db: db} }

func (r *DirectoryRepo) Businesses(ctx context.Context, ids []int64) (map[int64]domain.Business, error) {
	out := make(map[int64]domain.Business, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT listing_id, COALESCE(company_name, ''), COALESCE(email, ''),
			COALESCE(category_name, ''), COALESCE(description_short, '')
		FROM rawdata_yellowpage_new
		WHERE listing_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("load businesses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var b domain.Business
		if err := rows.Scan(&b.ID, &b.Name, &b.Email, &b.Industry, &b.Description); err != nil {
			return nil, fmt.Errorf("scan business: %w", err)
		}
		out[b.ID] = b
	}
	return out, rows.Err()
}
