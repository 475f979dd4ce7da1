package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
)

// QuotaRepo implements quota.Repository.
type QuotaRepo struct {
	mu      sync.Mutex
	records map[string]*domain.QuotaRecord
}

// NewQuotaRepo creates an empty quota repository.
func NewQuotaRepo() *QuotaRepo {
	return &QuotaRepo{records: make(map[string]*domain.QuotaRecord)}
}

func (r *QuotaRepo) GetOrCreate(_ context.Context, orgID string, defaultQuota int, resetAt time.Time) (*domain.QuotaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orgID]
	if !ok {
		now := time.Now().UTC()
		rec = &domain.QuotaRecord{
			ID:             uuid.New().String(),
			OrganizationID: orgID,
			MonthlyQuota:   defaultQuota,
			ResetAt:        resetAt,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		r.records[orgID] = rec
	}
	cp := *rec
	return &cp, nil
}

func (r *QuotaRepo) ResetIfDue(_ context.Context, orgID string, now, next time.Time) (*domain.QuotaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orgID]
	if !ok {
		return nil, quota.ErrNotFound
	}
	if !rec.ResetAt.After(now) {
		rec.MonthlyUsed = 0
		rec.ResetAt = next
		rec.UpdatedAt = now
	}
	cp := *rec
	return &cp, nil
}

func (r *QuotaRepo) Increment(_ context.Context, orgID string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orgID]
	if !ok {
		return quota.ErrNotFound
	}
	rec.MonthlyUsed += n
	return nil
}

func (r *QuotaRepo) ResetExpired(_ context.Context, now, next time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, rec := range r.records {
		if !rec.ResetAt.After(now) {
			rec.MonthlyUsed = 0
			rec.ResetAt = next
			rec.UpdatedAt = now
			n++
		}
	}
	return n, nil
}

func (r *QuotaRepo) SetMonthlyQuota(_ context.Context, orgID string, q int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orgID]
	if !ok {
		return quota.ErrNotFound
	}
	rec.MonthlyQuota = q
	return nil
}

func (r *QuotaRepo) NearQuota(_ context.Context, now time.Time, threshold float64) ([]domain.QuotaRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.QuotaRecord
	for _, rec := range r.records {
		if rec.MonthlyQuota <= 0 || !rec.ResetAt.After(now) {
			continue
		}
		if ratio(rec) >= threshold {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return ratio(&out[i]) > ratio(&out[j]) })
	return out, nil
}

func (r *QuotaRepo) MarkWarned(_ context.Context, orgID string, at, since time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[orgID]
	if !ok {
		return false, quota.ErrNotFound
	}
	if rec.LastWarningAt != nil && !rec.LastWarningAt.Before(since) {
		return false, nil
	}
	rec.LastWarningAt = &at
	return true, nil
}

// Seed stores rec as-is, replacing any existing record for its organization.
func (r *QuotaRepo) Seed(rec domain.QuotaRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records[rec.OrganizationID] = &rec
}

func ratio(rec *domain.QuotaRecord) float64 {
	return float64(rec.MonthlyUsed) / float64(rec.MonthlyQuota)
}
