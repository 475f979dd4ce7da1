package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/notify"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
)

// ErrUnknownPhase is returned for jobs the orchestrator cannot run.
var ErrUnknownPhase = errors.New("unknown job phase")

// Config controls batch sizes and pacing.
type Config struct {
	GenerateBatchSize int
	SendBatchSize     int
	// SendDelay is the pause before the next send batch runs. It is applied
	// as the follow-up job's run_at, never as a sleep.
	SendDelay        time.Duration
	DefaultFromName  string
	DefaultFromEmail string
}

// DefaultConfig returns batches of 20 for generation and 10 for sending,
// one second apart.
func DefaultConfig() Config {
	return Config{
		GenerateBatchSize: 20,
		SendBatchSize:     10,
		SendDelay:         time.Second,
		DefaultFromName:   "Campaign",
	}
}

// Orchestrator runs generate and send batches. It holds no per-campaign
// state; every decision is derived from the stores.
type Orchestrator struct {
	deps Deps
	cfg  Config
	now  func() time.Time
	log  *logger.Logger
}

// New creates an Orchestrator. Zero config fields take their defaults.
func New(deps Deps, cfg Config) *Orchestrator {
	def := DefaultConfig()
	if cfg.GenerateBatchSize <= 0 {
		cfg.GenerateBatchSize = def.GenerateBatchSize
	}
	if cfg.SendBatchSize <= 0 {
		cfg.SendBatchSize = def.SendBatchSize
	}
	if cfg.SendDelay < 0 {
		cfg.SendDelay = 0
	}
	if cfg.DefaultFromName == "" {
		cfg.DefaultFromName = def.DefaultFromName
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Log{}
	}
	return &Orchestrator{
		deps: deps,
		cfg:  cfg,
		now:  time.Now,
		log:  logger.Default().With("component", "pipeline"),
	}
}

// WithClock replaces time.Now, for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// BatchResult summarizes one invocation.
type BatchResult struct {
	Phase      domain.JobPhase
	CampaignID string
	Seq        int
	Processed  int
	Outcomes   map[string]int
	Remaining  int
	// Continued is set when a follow-up batch was enqueued.
	Continued bool
	// Finalized is set when this invocation moved the campaign to the
	// phase's terminal status.
	Finalized bool
	// Stopped is set when the campaign was no longer in the phase's active
	// status, so nothing further was scheduled.
	Stopped bool
	// Deferred counts items a rate limiter turned away; they are back in
	// generated and the next batch runs no sooner than RetryAfter.
	Deferred   int
	RetryAfter time.Duration
	Counters   *domain.CampaignCounters
}

// Handle runs the batch a job describes. Returned errors are infrastructure
// failures that warrant a retry; per-item failures are recorded on items.
func (o *Orchestrator) Handle(ctx context.Context, job domain.Job) (*BatchResult, error) {
	switch job.Phase {
	case domain.PhaseGenerate:
		return o.GenerateBatch(ctx, job.OrganizationID, job.CampaignID, job.Seq)
	case domain.PhaseSend:
		return o.SendBatch(ctx, job.OrganizationID, job.CampaignID, job.Seq)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownPhase, job.Phase)
}

// phasePlan describes the statuses one phase moves between.
type phasePlan struct {
	phase    domain.JobPhase
	active   domain.CampaignStatus
	terminal domain.CampaignStatus
	source   domain.ItemStatus
	delay    time.Duration
}

func (o *Orchestrator) generatePlan() phasePlan {
	return phasePlan{
		phase:    domain.PhaseGenerate,
		active:   domain.CampaignGenerating,
		terminal: domain.CampaignReady,
		source:   domain.ItemPending,
	}
}

func (o *Orchestrator) sendPlan() phasePlan {
	return phasePlan{
		phase:    domain.PhaseSend,
		active:   domain.CampaignSending,
		terminal: domain.CampaignSent,
		source:   domain.ItemGenerated,
		delay:    o.cfg.SendDelay,
	}
}

// load fetches the campaign and reports whether the phase should run.
func (o *Orchestrator) load(ctx context.Context, pl phasePlan, orgID, campaignID string) (*domain.Campaign, bool, error) {
	c, err := o.deps.Campaigns.Get(ctx, orgID, campaignID)
	if err != nil {
		return nil, false, fmt.Errorf("load campaign: %w", err)
	}
	if c.Status != pl.active {
		o.log.Info("campaign not in active status, skipping batch",
			"campaign_id", campaignID, "phase", string(pl.phase), "status", string(c.Status))
		return c, false, nil
	}
	return c, true, nil
}

// advance re-derives counters and remaining work after a batch, then either
// enqueues the follow-up batch or finalizes. If the campaign left the
// active status while the batch ran, the batch's writes stand but nothing
// further is scheduled.
func (o *Orchestrator) advance(ctx context.Context, pl phasePlan, c *domain.Campaign, res *BatchResult) (*BatchResult, error) {
	remaining, err := o.deps.Items.CountByStatus(ctx, c.OrganizationID, c.ID, pl.source)
	if err != nil {
		return nil, fmt.Errorf("count remaining: %w", err)
	}
	res.Remaining = remaining

	counters, err := o.deps.Campaigns.RefreshCounters(ctx, c.OrganizationID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("refresh counters: %w", err)
	}
	res.Counters = counters

	current, err := o.deps.Campaigns.Get(ctx, c.OrganizationID, c.ID)
	if err != nil {
		return nil, fmt.Errorf("reload campaign: %w", err)
	}
	if current.Status != pl.active {
		o.log.Info("campaign left active status during batch, stopping",
			"campaign_id", c.ID, "phase", string(pl.phase), "status", string(current.Status))
		res.Stopped = true
		return res, nil
	}

	if remaining == 0 {
		return o.finalize(ctx, pl, c, res)
	}

	delay := pl.delay
	if res.RetryAfter > delay {
		delay = res.RetryAfter
	}
	job := domain.NewJob(c.OrganizationID, c.ID, pl.phase, res.Seq+1, o.now().UTC().Add(delay))
	if _, err := o.deps.Jobs.Enqueue(ctx, job); err != nil {
		return nil, fmt.Errorf("enqueue next batch: %w", err)
	}
	res.Continued = true
	return res, nil
}

// finalize moves the campaign to the phase's terminal status. Losing the
// compare-and-set means another invocation finalized first.
func (o *Orchestrator) finalize(ctx context.Context, pl phasePlan, c *domain.Campaign, res *BatchResult) (*BatchResult, error) {
	if res.Counters == nil {
		counters, err := o.deps.Campaigns.RefreshCounters(ctx, c.OrganizationID, c.ID)
		if err != nil {
			return nil, fmt.Errorf("refresh counters: %w", err)
		}
		res.Counters = counters
	}

	err := o.deps.Campaigns.TransitionStatus(ctx, c.OrganizationID, c.ID, pl.active, pl.terminal)
	if errors.Is(err, campaign.ErrInvalidTransition) {
		res.Stopped = true
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finalize campaign: %w", err)
	}
	res.Finalized = true
	o.log.Info("campaign phase complete",
		"campaign_id", c.ID, "phase", string(pl.phase), "status", string(pl.terminal))

	ev := notify.StatusEvent{
		OrganizationID: c.OrganizationID,
		CampaignID:     c.ID,
		Status:         pl.terminal,
		Counters:       *res.Counters,
		OccurredAt:     o.now().UTC(),
	}
	if err := o.deps.Notifier.CampaignStatusChanged(ctx, ev); err != nil {
		o.log.Warn("status notification failed", "campaign_id", c.ID, "error", err.Error())
	}
	return res, nil
}

// record tallies per-item outcomes once the batch's fan-out has finished.
func record(pl phasePlan, res *BatchResult, outcomes []string, start time.Time) {
	for _, oc := range outcomes {
		if oc == "" {
			continue
		}
		res.Processed++
		res.Outcomes[oc]++
		metrics.ItemsProcessedTotal.WithLabelValues(string(pl.phase), oc).Inc()
	}
	metrics.BatchDuration.WithLabelValues(string(pl.phase)).Observe(time.Since(start).Seconds())
}

func newResult(pl phasePlan, campaignID string, seq int) *BatchResult {
	return &BatchResult{Phase: pl.phase, CampaignID: campaignID, Seq: seq, Outcomes: make(map[string]int)}
}
