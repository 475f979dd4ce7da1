package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
)

// Defaults for new ledgers.
const (
	DefaultMonthlyQuota     = 1000
	DefaultWarningThreshold = 0.8
)

// Service implements the quota ledger. It is safe for concurrent use if the
// underlying repository is.
type Service struct {
	repo             Repository
	defaultQuota     int
	warningThreshold float64
	now              func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithDefaultQuota sets the ceiling given to newly created records.
func WithDefaultQuota(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.defaultQuota = n
		}
	}
}

// WithWarningThreshold sets the usage ratio at which warnings are raised.
func WithWarningThreshold(t float64) Option {
	return func(s *Service) {
		if t > 0 {
			s.warningThreshold = t
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a quota service backed by the given repository.
func NewService(repo Repository, opts ...Option) *Service {
	s := &Service{
		repo:             repo,
		defaultQuota:     DefaultMonthlyQuota,
		warningThreshold: DefaultWarningThreshold,
		now:              time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// GetQuotaInfo returns the organization's current cycle, creating the record
// on first access and resetting it if the cycle has rolled over.
func (s *Service) GetQuotaInfo(ctx context.Context, orgID string) (*domain.QuotaInfo, error) {
	rec, err := s.current(ctx, orgID)
	if err != nil {
		return nil, err
	}
	info := s.info(rec)
	return &info, nil
}

func (s *Service) current(ctx context.Context, orgID string) (*domain.QuotaRecord, error) {
	now := s.now().UTC()
	next := domain.NextQuotaReset(now)

	rec, err := s.repo.GetOrCreate(ctx, orgID, s.defaultQuota, next)
	if err != nil {
		return nil, fmt.Errorf("load quota: %w", err)
	}
	if now.Before(rec.ResetAt) {
		return rec, nil
	}

	rec, err = s.repo.ResetIfDue(ctx, orgID, now, next)
	if err != nil {
		return nil, fmt.Errorf("reset quota: %w", err)
	}
	logger.Info("quota cycle reset", "org_id", orgID, "reset_at", rec.ResetAt)
	return rec, nil
}

func (s *Service) info(rec *domain.QuotaRecord) domain.QuotaInfo {
	remaining := rec.MonthlyQuota - rec.MonthlyUsed
	if remaining < 0 {
		remaining = 0
	}
	var pct float64
	if rec.MonthlyQuota > 0 {
		pct = float64(rec.MonthlyUsed) / float64(rec.MonthlyQuota)
	}
	return domain.QuotaInfo{
		Quota:            rec.MonthlyQuota,
		Used:             rec.MonthlyUsed,
		Remaining:        remaining,
		Percentage:       pct,
		ResetDate:        rec.ResetAt,
		IsOverQuota:      rec.MonthlyUsed >= rec.MonthlyQuota,
		WarningThreshold: s.warningThreshold,
	}
}

// CheckQuota reports how many of n requested sends the organization may make.
func (s *Service) CheckQuota(ctx context.Context, orgID string, n int) (*domain.QuotaCheck, error) {
	info, err := s.GetQuotaInfo(ctx, orgID)
	if err != nil {
		return nil, err
	}

	check := &domain.QuotaCheck{Requested: n, Info: *info}
	switch {
	case info.IsOverQuota:
		check.Reason = "Monthly quota exceeded"
	case n > info.Remaining:
		check.CanSend = info.Remaining
		check.Reason = fmt.Sprintf("Only %d emails remaining out of %d requested", info.Remaining, n)
	default:
		check.Allowed = true
		check.CanSend = n
	}
	return check, nil
}

// Admit checks n sends and returns how many may proceed. It fails with an
// *ExceededError only when nothing may be sent.
func (s *Service) Admit(ctx context.Context, orgID string, n int) (int, error) {
	check, err := s.CheckQuota(ctx, orgID, n)
	if err != nil {
		return 0, err
	}
	if check.CanSend <= 0 && n > 0 {
		return 0, &ExceededError{Requested: n, Remaining: check.Info.Remaining, Reason: check.Reason}
	}
	return check.CanSend, nil
}

// IncrementUsage adds n sends to the current cycle. n <= 0 is a no-op.
func (s *Service) IncrementUsage(ctx context.Context, orgID string, n int) error {
	if n <= 0 {
		return nil
	}
	if _, err := s.current(ctx, orgID); err != nil {
		return err
	}
	if err := s.repo.Increment(ctx, orgID, n); err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}
	metrics.QuotaUsedTotal.Add(float64(n))
	return nil
}

// ResetAll resets every record whose cycle has ended. Safe to run repeatedly.
func (s *Service) ResetAll(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	n, err := s.repo.ResetExpired(ctx, now, domain.NextQuotaReset(now))
	if err != nil {
		return 0, fmt.Errorf("reset quotas: %w", err)
	}
	return n, nil
}

// SetMonthlyQuota changes the organization's ceiling.
func (s *Service) SetMonthlyQuota(ctx context.Context, orgID string, quota int) (*domain.QuotaInfo, error) {
	if quota < 0 {
		return nil, ErrInvalidQuota
	}
	if _, err := s.current(ctx, orgID); err != nil {
		return nil, err
	}
	if err := s.repo.SetMonthlyQuota(ctx, orgID, quota); err != nil {
		return nil, fmt.Errorf("set quota: %w", err)
	}
	return s.GetQuotaInfo(ctx, orgID)
}

// NearQuota lists organizations at or above threshold in their current
// cycle. A threshold <= 0 uses the configured warning threshold.
func (s *Service) NearQuota(ctx context.Context, threshold float64) ([]domain.QuotaRecord, error) {
	if threshold <= 0 {
		threshold = s.warningThreshold
	}
	return s.repo.NearQuota(ctx, s.now().UTC(), threshold)
}

// ShouldWarn reports whether the organization just crossed the warning
// threshold and has not been warned in this cycle. A true result records
// the warning, so each cycle warns at most once.
func (s *Service) ShouldWarn(ctx context.Context, orgID string) (bool, *domain.QuotaInfo, error) {
	rec, err := s.current(ctx, orgID)
	if err != nil {
		return false, nil, err
	}
	info := s.info(rec)
	if !info.NearLimit() || info.IsOverQuota {
		return false, &info, nil
	}

	cycleStart := rec.ResetAt.AddDate(0, -1, 0)
	warned, err := s.repo.MarkWarned(ctx, orgID, s.now().UTC(), cycleStart)
	if err != nil {
		return false, &info, fmt.Errorf("mark quota warning: %w", err)
	}
	return warned, &info, nil
}
