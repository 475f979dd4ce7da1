package worker

import (
	"context"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
)

// =============================================================================
// QUEUE RECOVERY WORKER - Reclaims jobs and items stranded by a crash
// =============================================================================
// If a worker dies mid-batch its job stays 'running' and any items it had
// claimed stay 'sending'. Stale jobs are requeued (or dead-lettered once
// their attempts are spent). Stale sending items are failed rather than
// re-sent, since the provider may already have accepted them. A generating
// or sending campaign whose job chain broke (its first enqueue failed, or a
// continuation was lost) is resumed with a fresh batch.

const (
	// DefaultRecoveryInterval is how often we scan for stuck work.
	DefaultRecoveryInterval = 2 * time.Minute

	// DefaultStaleAge is how long a job may run before we consider its
	// worker gone.
	DefaultStaleAge = 5 * time.Minute

	// StaleSendingReason is recorded on items failed by recovery.
	StaleSendingReason = "delivery outcome unknown"
)

// StaleItemFailer fails items stuck in sending.
type StaleItemFailer interface {
	FailStaleSending(ctx context.Context, staleBefore time.Time, reason string) (int64, error)
}

// InFlightLister lists campaigns that should have a live job chain.
type InFlightLister interface {
	ListInFlight(ctx context.Context, updatedBefore time.Time) ([]domain.Campaign, error)
}

// PhaseTracker reports where a campaign's job chain stands.
type PhaseTracker interface {
	// PhaseState reports whether the phase has any job that is not done,
	// and the seq a new job for the phase should take.
	PhaseState(ctx context.Context, campaignID string, phase domain.JobPhase) (open bool, nextSeq int, err error)
}

// QueueRecoveryWorker periodically reclaims stuck jobs and items.
type QueueRecoveryWorker struct {
	queue    JobQueue
	items    StaleItemFailer
	inFlight InFlightLister
	phases   PhaseTracker
	interval time.Duration
	staleAge time.Duration
	now      func() time.Time
	log      *logger.Logger
}

// NewQueueRecoveryWorker creates a recovery worker. Non-positive durations
// take their defaults.
func NewQueueRecoveryWorker(queue JobQueue, items StaleItemFailer, interval, staleAge time.Duration) *QueueRecoveryWorker {
	if interval <= 0 {
		interval = DefaultRecoveryInterval
	}
	if staleAge <= 0 {
		staleAge = DefaultStaleAge
	}
	return &QueueRecoveryWorker{
		queue:    queue,
		items:    items,
		interval: interval,
		staleAge: staleAge,
		now:      time.Now,
		log:      logger.Default().With("component", "queue_recovery"),
	}
}

// WithClock replaces time.Now, for tests.
func (qr *QueueRecoveryWorker) WithClock(now func() time.Time) *QueueRecoveryWorker {
	qr.now = now
	return qr
}

// WithOrphanResume enables resuming in-flight campaigns that have no open
// job. Campaigns whose chain ended in a dead job stay put.
func (qr *QueueRecoveryWorker) WithOrphanResume(campaigns InFlightLister, phases PhaseTracker) *QueueRecoveryWorker {
	qr.inFlight = campaigns
	qr.phases = phases
	return qr
}

// Start runs the recovery loop. It blocks until ctx is cancelled.
func (qr *QueueRecoveryWorker) Start(ctx context.Context) {
	qr.log.Info("starting", "interval", qr.interval, "stale_age", qr.staleAge)

	ticker := time.NewTicker(qr.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			qr.log.Info("stopping")
			return
		case <-ticker.C:
			qr.RunOnce(ctx)
		}
	}
}

// RunOnce performs one recovery pass and returns how many jobs and items it
// touched.
func (qr *QueueRecoveryWorker) RunOnce(ctx context.Context) (jobs, items int64) {
	queryCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	staleBefore := qr.now().UTC().Add(-qr.staleAge)

	jobs, err := qr.queue.RecoverStale(queryCtx, staleBefore)
	if err != nil {
		qr.log.Error("recover stale jobs failed", "error", err.Error())
	} else if jobs > 0 {
		qr.log.Warn("recovered stale jobs", "count", jobs)
	}

	if qr.items != nil {
		items, err = qr.items.FailStaleSending(queryCtx, staleBefore, StaleSendingReason)
		if err != nil {
			qr.log.Error("fail stale sending items failed", "error", err.Error())
		} else if items > 0 {
			qr.log.Warn("failed stale sending items", "count", items)
		}
	}
	if qr.inFlight != nil && qr.phases != nil {
		if n, err := qr.ResumeOrphans(queryCtx, staleBefore); err != nil {
			qr.log.Error("resume orphaned campaigns failed", "error", err.Error())
		} else if n > 0 {
			qr.log.Warn("resumed orphaned campaigns", "count", n)
		}
	}
	return jobs, items
}

// ResumeOrphans enqueues a batch for every generating or sending campaign,
// untouched since staleBefore, whose phase has no open job.
func (qr *QueueRecoveryWorker) ResumeOrphans(ctx context.Context, staleBefore time.Time) (int, error) {
	campaigns, err := qr.inFlight.ListInFlight(ctx, staleBefore)
	if err != nil {
		return 0, err
	}
	resumed := 0
	for _, c := range campaigns {
		phase, ok := c.Status.Phase()
		if !ok {
			continue
		}
		open, seq, err := qr.phases.PhaseState(ctx, c.ID, phase)
		if err != nil {
			return resumed, err
		}
		if open {
			continue
		}
		job := domain.NewJob(c.OrganizationID, c.ID, phase, seq, qr.now().UTC())
		added, err := qr.queue.Enqueue(ctx, job)
		if err != nil {
			return resumed, err
		}
		if added {
			qr.log.Info("resumed campaign", "campaign_id", c.ID, "phase", string(phase), "seq", seq)
			resumed++
		}
	}
	return resumed, nil
}
