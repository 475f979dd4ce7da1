package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/distlock"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
)

// DefaultQuotaResetSchedule fires at midnight UTC on the first of the month.
const DefaultQuotaResetSchedule = "0 0 1 * *"

// DefaultNearQuotaSchedule fires daily at 08:00 UTC.
const DefaultNearQuotaSchedule = "0 8 * * *"

// QuotaResetter zeroes usage for every organization whose cycle ended and
// lists organizations close to their ceiling. *quota.Service implements it.
type QuotaResetter interface {
	ResetAll(ctx context.Context) (int64, error)
	NearQuota(ctx context.Context, threshold float64) ([]domain.QuotaRecord, error)
}

// QuotaResetScheduler runs the monthly quota rollover on a cron schedule.
// Usage also rolls over lazily on access, so a missed run only delays the
// reset of idle organizations.
type QuotaResetScheduler struct {
	cron   *cron.Cron
	quotas QuotaResetter
	locks  distlock.Factory
	log    *logger.Logger
}

// NewQuotaResetScheduler parses schedule (standard five-field cron, UTC).
// locks may be nil when only one worker process runs.
func NewQuotaResetScheduler(quotas QuotaResetter, locks distlock.Factory, schedule string) (*QuotaResetScheduler, error) {
	if schedule == "" {
		schedule = DefaultQuotaResetSchedule
	}
	s := &QuotaResetScheduler{
		cron:   cron.New(cron.WithLocation(time.UTC)),
		quotas: quotas,
		locks:  locks,
		log:    logger.Default().With("component", "quota_reset"),
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return nil, fmt.Errorf("invalid quota reset schedule %q: %w", schedule, err)
	}
	return s, nil
}

// ScheduleNearQuotaReport adds a recurring ReportNearQuota run.
func (s *QuotaResetScheduler) ScheduleNearQuotaReport(schedule string) error {
	if schedule == "" {
		schedule = DefaultNearQuotaSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.ReportNearQuota(ctx)
	}); err != nil {
		return fmt.Errorf("invalid near quota schedule %q: %w", schedule, err)
	}
	return nil
}

// Start begins the cron scheduler in its own goroutine.
func (s *QuotaResetScheduler) Start() {
	s.log.Info("starting")
	s.cron.Start()
}

// Stop halts the scheduler and waits for a running reset to finish.
func (s *QuotaResetScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce resets every due quota. Only one process runs it at a time; the
// others skip. Returns the number of organizations reset.
func (s *QuotaResetScheduler) RunOnce(ctx context.Context) (int64, error) {
	if s.locks != nil {
		lock := s.locks("quota-reset")
		ok, err := lock.Acquire(ctx)
		if err != nil {
			s.log.Error("quota reset lock failed", "error", err.Error())
			return 0, err
		}
		if !ok {
			s.log.Debug("quota reset already running elsewhere")
			return 0, nil
		}
		defer lock.Release(context.Background())
	}

	n, err := s.quotas.ResetAll(ctx)
	if err != nil {
		s.log.Error("quota reset failed", "error", err.Error())
		return 0, err
	}
	s.log.Info("monthly quotas reset", "organizations", n)
	return n, nil
}

// ReportNearQuota logs every organization at or above the warning
// threshold and publishes the count as a gauge.
func (s *QuotaResetScheduler) ReportNearQuota(ctx context.Context) ([]domain.QuotaRecord, error) {
	near, err := s.quotas.NearQuota(ctx, 0)
	if err != nil {
		s.log.Error("near quota report failed", "error", err.Error())
		return nil, err
	}
	metrics.OrganizationsNearQuota.Set(float64(len(near)))
	for _, q := range near {
		s.log.Warn("organization near monthly quota",
			"organization_id", q.OrganizationID,
			"used", q.MonthlyUsed,
			"quota", q.MonthlyQuota,
			"reset_at", q.ResetAt.Format(time.RFC3339))
	}
	return near, nil
}
