package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/distlock"
	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/pipeline"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
)

// =============================================================================
// CAMPAIGN PROCESSOR - Pool of workers draining the campaign_jobs queue
// =============================================================================
// Each worker claims one due job at a time, takes the campaign's lock so two
// batches of the same campaign never overlap, and runs the batch through the
// pipeline. Failed jobs are requeued with exponential backoff until their
// attempts run out.

// JobHandler runs one batch. *pipeline.Orchestrator implements it.
type JobHandler interface {
	Handle(ctx context.Context, job domain.Job) (*pipeline.BatchResult, error)
}

// ProcessorConfig holds processor configuration.
type ProcessorConfig struct {
	NumWorkers   int
	PollInterval time.Duration
	Backoff      httpretry.Backoff
	// LockTTL is the campaign lock lifetime. Held locks are renewed while
	// a batch runs.
	LockTTL      time.Duration
}

// DefaultProcessorConfig returns default configuration.
func DefaultProcessorConfig() ProcessorConfig {
	return ProcessorConfig{
		NumWorkers:   4,
		PollInterval: 500 * time.Millisecond,
		Backoff:      httpretry.Backoff{Base: 5 * time.Second, Max: 5 * time.Minute, Jitter: true},
		LockTTL:      5 * time.Minute,
	}
}

// CampaignProcessor runs pipeline jobs in the background.
type CampaignProcessor struct {
	queue   JobQueue
	handler JobHandler
	locks   distlock.Factory

	workerID     string
	numWorkers   int
	pollInterval time.Duration
	backoff      httpretry.Backoff
	lockTTL      time.Duration
	now          func() time.Time
	log          *logger.Logger

	// Stats
	totalDone   int64
	totalFailed int64

	// Control
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.RWMutex
	running bool
}

// NewCampaignProcessor creates a processor. locks may be nil when only one
// worker process runs.
func NewCampaignProcessor(queue JobQueue, handler JobHandler, locks distlock.Factory, cfg ProcessorConfig) *CampaignProcessor {
	def := DefaultProcessorConfig()
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = def.NumWorkers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Backoff.Base <= 0 {
		cfg.Backoff = def.Backoff
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}

	workerID := fmt.Sprintf("processor-%s", uuid.New().String()[:8])
	return &CampaignProcessor{
		queue:        queue,
		handler:      handler,
		locks:        locks,
		workerID:     workerID,
		numWorkers:   cfg.NumWorkers,
		pollInterval: cfg.PollInterval,
		backoff:      cfg.Backoff,
		lockTTL:      cfg.LockTTL,
		now:          time.Now,
		log:          logger.Default().With("component", "campaign_processor", "worker_id", workerID),
	}
}

// WithClock replaces time.Now, for tests.
func (p *CampaignProcessor) WithClock(now func() time.Time) *CampaignProcessor {
	p.now = now
	return p
}

// Start begins the processor workers.
func (p *CampaignProcessor) Start() error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("processor already running")
	}
	p.running = true
	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.mu.Unlock()

	p.log.Info("starting workers", "workers", p.numWorkers, "poll_interval", p.pollInterval)
	for i := 0; i < p.numWorkers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	return nil
}

// Stop signals every worker and waits for in-flight batches to finish.
func (p *CampaignProcessor) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.cancel()
	p.mu.Unlock()

	p.wg.Wait()
	p.log.Info("stopped", "done", atomic.LoadInt64(&p.totalDone), "failed", atomic.LoadInt64(&p.totalFailed))
}

// IsRunning reports whether Start has been called without Stop.
func (p *CampaignProcessor) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// Stats returns the number of jobs completed and failed since start.
func (p *CampaignProcessor) Stats() (done, failed int64) {
	return atomic.LoadInt64(&p.totalDone), atomic.LoadInt64(&p.totalFailed)
}

func (p *CampaignProcessor) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		default:
		}

		handled, err := p.ProcessNext(p.ctx)
		if err != nil && p.ctx.Err() == nil {
			p.log.Error("claim failed", "worker", id, "error", err.Error())
		}
		if handled {
			continue
		}

		select {
		case <-p.ctx.Done():
			return
		case <-time.After(p.pollInterval):
		}
	}
}

// ProcessNext claims and runs at most one due job. It reports whether a job
// was claimed.
func (p *CampaignProcessor) ProcessNext(ctx context.Context) (bool, error) {
	jobs, err := p.queue.Claim(ctx, p.workerID, 1, p.now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim job: %w", err)
	}
	if len(jobs) == 0 {
		return false, nil
	}
	p.process(ctx, jobs[0])
	return true, nil
}

func (p *CampaignProcessor) process(ctx context.Context, job domain.Job) {
	log := p.log.With("job_id", job.ID, "campaign_id", job.CampaignID,
		"phase", string(job.Phase), "seq", job.Seq, "attempt", job.Attempts)
	phase := string(job.Phase)

	// Queue bookkeeping must survive shutdown of the worker context.
	bg, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if p.locks != nil {
		lock := p.locks("campaign:" + job.CampaignID)
		ok, err := lock.Acquire(ctx)
		if err != nil || !ok {
			if err != nil {
				log.Warn("campaign lock failed", "error", err.Error())
			}
			if err := p.queue.Release(bg, job.ID, p.now().UTC().Add(p.pollInterval)); err != nil {
				log.Error("release job failed", "error", err.Error())
			}
			metrics.JobsTotal.WithLabelValues(phase, "deferred").Inc()
			return
		}
		defer func() {
			if err := lock.Release(bg); err != nil {
				log.Warn("campaign unlock failed", "error", err.Error())
			}
		}()
		stop := distlock.KeepAlive(ctx, lock, p.lockTTL, func(err error) {
			log.Warn("campaign lock lost during batch", "error", err.Error())
		})
		defer stop()
	}

	res, err := p.handler.Handle(ctx, job)
	if err == nil {
		if err := p.queue.Complete(bg, job.ID); err != nil {
			log.Error("complete job failed", "error", err.Error())
		}
		atomic.AddInt64(&p.totalDone, 1)
		metrics.JobsTotal.WithLabelValues(phase, "done").Inc()
		log.Info("batch processed",
			"processed", res.Processed, "remaining", res.Remaining,
			"continued", res.Continued, "finalized", res.Finalized, "stopped", res.Stopped)
		return
	}

	permanent := isPermanent(err)
	retryAt := p.now().UTC().Add(p.backoff.Delay(job.Attempts))
	status, ferr := p.queue.Fail(bg, job.ID, err.Error(), retryAt, permanent)
	if ferr != nil {
		log.Error("fail job failed", "error", ferr.Error())
		return
	}
	atomic.AddInt64(&p.totalFailed, 1)

	if status == domain.JobDead {
		metrics.JobsTotal.WithLabelValues(phase, "dead").Inc()
		log.Error("job dead", "error", err.Error(), "permanent", permanent)
		return
	}
	metrics.JobsTotal.WithLabelValues(phase, "retry").Inc()
	log.Warn("job failed, retrying", "error", err.Error(), "retry_at", retryAt.Format(time.RFC3339))
}

// isPermanent reports errors that no retry can fix. A quota-exceeded batch
// leaves the campaign in sending until someone restarts it.
func isPermanent(err error) bool {
	return errors.Is(err, quota.ErrExceeded) ||
		errors.Is(err, pipeline.ErrUnknownPhase) ||
		errors.Is(err, campaign.ErrNotFound)
}
