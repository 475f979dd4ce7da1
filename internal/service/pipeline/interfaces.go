package pipeline

import (
	"context"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/notify"
	"github.com/ignite/outreach-pipeline/internal/service/content"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

// CampaignStore reads campaigns and writes their status and counters.
type CampaignStore interface {
	Get(ctx context.Context, orgID, id string) (*domain.Campaign, error)

	// TransitionStatus is a compare-and-set on the campaign status.
	TransitionStatus(ctx context.Context, orgID, id string, from, to domain.CampaignStatus) error

	// RefreshCounters recomputes the campaign's counters from its items,
	// stores them, and returns them.
	RefreshCounters(ctx context.Context, orgID, id string) (*domain.CampaignCounters, error)
}

// Generated is the content written onto an item by a generation batch.
type Generated struct {
	RecipientName  string
	RecipientEmail string
	Subject        string
	HTML           string
	At             time.Time
}

// ItemStore reads and advances campaign items. Every write is conditional
// on the item's current status so a repeated write is a no-op; the bool
// reports whether the write matched the item.
type ItemStore interface {
	// ListByStatus returns up to limit items in status, oldest first.
	ListByStatus(ctx context.Context, orgID, campaignID string, status domain.ItemStatus, limit int) ([]domain.CampaignItem, error)

	// CountByStatus counts the campaign's items in status.
	CountByStatus(ctx context.Context, orgID, campaignID string, status domain.ItemStatus) (int, error)

	// MarkGenerated moves a pending item to generated with its content.
	MarkGenerated(ctx context.Context, orgID, itemID string, g Generated) (bool, error)

	// MarkFailed moves a pending, generated, or sending item to failed.
	MarkFailed(ctx context.Context, orgID, itemID, reason string) (bool, error)

	// ClaimForSend moves generated items to sending and returns the ids
	// that were actually claimed.
	ClaimForSend(ctx context.Context, orgID string, itemIDs []string) ([]string, error)

	// MarkSent moves a sending item to sent with the provider message id.
	MarkSent(ctx context.Context, orgID, itemID, messageID string, at time.Time) (bool, error)

	// MarkSuppressed moves a generated item to suppressed.
	MarkSuppressed(ctx context.Context, orgID, itemID string) (bool, error)

	// ReleaseClaim moves a sending item back to generated.
	ReleaseClaim(ctx context.Context, orgID, itemID string) (bool, error)
}

// JobQueue accepts follow-up jobs. Duplicate idempotency keys are no-ops.
type JobQueue interface {
	Enqueue(ctx context.Context, job domain.Job) (bool, error)
}

// Directory resolves directory recipients. Missing ids are absent from the map.
type Directory interface {
	Businesses(ctx context.Context, ids []int64) (map[int64]domain.Business, error)
}

// ContentGenerator writes one email. *content.Generator implements it.
type ContentGenerator interface {
	Generate(ctx context.Context, req content.Request) (*content.Email, error)
}

// SuppressionChecker answers batch membership. *suppression.Service implements it.
type SuppressionChecker interface {
	IsSuppressed(ctx context.Context, orgID string, emails []string) (map[string]bool, error)
}

// QuotaLedger gates and records sends. *quota.Service implements it.
type QuotaLedger interface {
	Admit(ctx context.Context, orgID string, n int) (int, error)
	IncrementUsage(ctx context.Context, orgID string, n int) error
	ShouldWarn(ctx context.Context, orgID string) (bool, *domain.QuotaInfo, error)
}

// LinkSigner builds unsubscribe links. *delivery.Signer implements it.
type LinkSigner interface {
	URL(orgID, itemID string) (string, error)
}

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Campaigns   CampaignStore
	Items       ItemStore
	Jobs        JobQueue
	Directory   Directory
	Generator   ContentGenerator
	Sender      delivery.Adapter
	Links       LinkSigner
	Suppression SuppressionChecker
	Quota       QuotaLedger
	Notifier    notify.Notifier
}
