package suppression

import (
	"context"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// Repository defines the data access contract for the suppression list.
type Repository interface {
	// Upsert adds an entry. An existing entry for the same organization and
	// email is updated in place with the new type, reason, and campaign.
	Upsert(ctx context.Context, e *domain.SuppressionEntry) error

	// Remove deletes a suppression entry. Returns ErrNotFound if it doesn't exist.
	Remove(ctx context.Context, orgID, email string) error

	// Suppressed returns the subset of emails that are on the list, in one
	// round-trip. Emails are already normalized.
	Suppressed(ctx context.Context, orgID string, emails []string) ([]string, error)

	// List returns suppression entries matching the filter, newest first.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.SuppressionEntry, int, error)

	// Count returns the total number of suppressed emails for an org.
	Count(ctx context.Context, orgID string) (int, error)

	// CountByType returns entry counts grouped by suppression type.
	CountByType(ctx context.Context, orgID string) (map[domain.SuppressionType]int, error)
}

// ListFilter controls pagination and filtering for suppression lists.
type ListFilter struct {
	Type   string
	Search string
	Limit  int
	Offset int
}
