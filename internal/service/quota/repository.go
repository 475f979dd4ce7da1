package quota

import (
	"context"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// Repository defines the data access contract for quota records.
// Implementations must be safe for concurrent use.
type Repository interface {
	// GetOrCreate returns the organization's record, inserting one with the
	// given ceiling and reset instant if none exists.
	GetOrCreate(ctx context.Context, orgID string, defaultQuota int, resetAt time.Time) (*domain.QuotaRecord, error)

	// ResetIfDue zeroes usage and moves the reset instant to next when the
	// stored reset instant is at or before now. Returns the current record
	// whether or not a reset happened.
	ResetIfDue(ctx context.Context, orgID string, now, next time.Time) (*domain.QuotaRecord, error)

	// Increment adds n to the used count in one statement. Returns
	// ErrNotFound if the organization has no record.
	Increment(ctx context.Context, orgID string, n int) error

	// ResetExpired resets every record whose reset instant is at or before
	// now. Returns the number of records reset.
	ResetExpired(ctx context.Context, now, next time.Time) (int64, error)

	// SetMonthlyQuota changes the ceiling. Returns ErrNotFound if the
	// organization has no record.
	SetMonthlyQuota(ctx context.Context, orgID string, quota int) error

	// NearQuota lists records in an active cycle whose usage ratio is at or
	// above threshold, highest ratio first.
	NearQuota(ctx context.Context, now time.Time, threshold float64) ([]domain.QuotaRecord, error)

	// MarkWarned stamps last_warning_at with at unless a warning was already
	// recorded at or after since. Reports whether the stamp was written.
	MarkWarned(ctx context.Context, orgID string, at, since time.Time) (bool, error)
}
