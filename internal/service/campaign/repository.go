package campaign

import (
	"context"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// Repository defines the data access contract for campaigns and their items.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Create inserts a campaign and its items atomically.
	Create(ctx context.Context, c *domain.Campaign, items []domain.CampaignItem) error

	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)

	// List returns campaigns matching the given filter, ordered by created_at DESC.
	List(ctx context.Context, orgID string, filter ListFilter) ([]domain.Campaign, int, error)

	// Update modifies a draft campaign. Only non-nil fields are applied.
	// Returns ErrInvalidTransition if the campaign is no longer a draft.
	Update(ctx context.Context, orgID, id string, u UpdateFields) error

	// Delete removes a draft campaign and its items.
	Delete(ctx context.Context, orgID, id string) error

	// TransitionStatus moves a campaign from one status to another with a
	// compare-and-set. Returns ErrInvalidTransition when the campaign is not
	// currently in from or when from may not move to to.
	TransitionStatus(ctx context.Context, orgID, id string, from, to domain.CampaignStatus) error

	// ListItems returns a campaign's items, oldest first.
	ListItems(ctx context.Context, orgID, campaignID string, filter ItemFilter) ([]domain.CampaignItem, int, error)

	// GetItem returns one item. Returns ErrItemNotFound if it doesn't exist.
	GetItem(ctx context.Context, orgID, itemID string) (*domain.CampaignItem, error)

	// CountItems returns the number of items in each status.
	CountItems(ctx context.Context, orgID, campaignID string) (map[domain.ItemStatus]int, error)

	// FindItemByMessageID returns the item a provider message belongs to.
	// Returns ErrItemNotFound if no item carries the id.
	FindItemByMessageID(ctx context.Context, messageID string) (*domain.CampaignItem, error)

	// AdvanceEngagement moves a delivered item to opened or clicked. It never
	// moves an item backwards. Reports whether the row changed.
	AdvanceEngagement(ctx context.Context, orgID, itemID string, to domain.ItemStatus) (bool, error)
}

// EventStore appends and reads delivery lifecycle events.
type EventStore interface {
	Append(ctx context.Context, e *domain.EmailEvent) error

	// ListEvents returns a campaign's events, newest first, and the total.
	ListEvents(ctx context.Context, orgID, campaignID string, limit, offset int) ([]domain.EmailEvent, int, error)

	// CountEvents tallies a campaign's events by type.
	CountEvents(ctx context.Context, orgID, campaignID string) (map[domain.EmailEventType]EventCount, error)
}

// EventCount is the tally for one event type. Recipients counts distinct
// items, so repeated opens by one recipient count once.
type EventCount struct {
	Total      int `json:"total"`
	Recipients int `json:"recipients"`
}

// JobQueue accepts pipeline jobs. Enqueueing a job whose idempotency key
// already exists is a no-op that reports false.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.Job) (bool, error)
}

// QuotaChecker admits a requested send volume.
type QuotaChecker interface {
	Admit(ctx context.Context, orgID string, n int) (int, error)
}

// ListFilter controls pagination and filtering for campaign lists.
type ListFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// ItemFilter controls pagination and filtering for campaign items.
type ItemFilter struct {
	Status string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable fields of a draft campaign.
// Nil fields are not applied.
type UpdateFields struct {
	Name               *string
	Subject            *string
	SenderName         *string
	SenderEmail        *string
	ServiceDescription *string
	Tone               *domain.Tone
}
