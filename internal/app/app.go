// Package app wires configuration into stores, services and the pipeline
// for the server and worker binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/esp"
	"github.com/ignite/outreach-pipeline/internal/llm"
	"github.com/ignite/outreach-pipeline/internal/notify"
	"github.com/ignite/outreach-pipeline/internal/pkg/distlock"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/pkg/metrics"
	"github.com/ignite/outreach-pipeline/internal/repository/memory"
	"github.com/ignite/outreach-pipeline/internal/repository/postgres"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/content"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
	"github.com/ignite/outreach-pipeline/internal/service/pipeline"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
	"github.com/ignite/outreach-pipeline/internal/worker"
)

const devUnsubscribeSecret = "dev-unsubscribe-secret"

// Store is everything the pipeline persists campaigns and items through.
type Store interface {
	campaign.Repository
	pipeline.CampaignStore
	pipeline.ItemStore
	worker.StaleItemFailer
	worker.InFlightLister
}

// App holds the shared infrastructure and services of one process.
type App struct {
	Config *config.Config

	// DB is nil in in-memory mode.
	DB    *sql.DB
	Redis *redis.Client

	Store     Store
	Events    campaign.EventStore
	Jobs      worker.JobQueue
	Directory pipeline.Directory
	Quotas    quota.Repository
	Locks     distlock.Factory
	Notifier  notify.Notifier

	Campaigns    *campaign.Service
	Quota        *quota.Service
	Suppressions *suppression.Service
	Signer       *delivery.Signer

	suppressionRepo suppression.Repository
	closers         []func() error
}

// Memory reports whether the process runs without a database.
func (a *App) Memory() bool { return a.DB == nil }

// Open applies logging settings, connects to Postgres, Redis and the broker
// when configured, and builds the services. Without a database URL every
// store is in-memory, which is only suitable for a single dev process.
func Open(ctx context.Context, cfg *config.Config) (*App, error) {
	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	logger.SetRedactPII(cfg.Log.Redact())
	metrics.Init()

	a := &App{Config: cfg}
	if err := a.openStores(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.openRedis(ctx); err != nil {
		a.Close()
		return nil, err
	}
	a.openNotifier()

	secret := cfg.Unsubscribe.Secret
	if secret == "" {
		if !cfg.Server.DevMode && !a.Memory() {
			a.Close()
			return nil, errors.New("unsubscribe secret is required")
		}
		log.Println("[app] WARNING: using the development unsubscribe secret")
		secret = devUnsubscribeSecret
	}
	a.Signer = delivery.NewSigner(secret, cfg.Unsubscribe.BaseURL, cfg.Unsubscribe.TokenTTL())

	a.Quota = quota.NewService(a.Quotas,
		quota.WithDefaultQuota(cfg.Quota.DefaultMonthly),
		quota.WithWarningThreshold(cfg.Quota.WarningThreshold))
	a.Suppressions = suppression.NewService(a.suppressionRepo)
	a.Campaigns = campaign.NewService(a.Store, a.Jobs, a.Quota, a.Events)

	if a.DB != nil || a.Redis != nil {
		a.Locks = distlock.NewFactory(a.Redis, a.DB, cfg.Pipeline.LockTTL())
	}
	return a, nil
}

func (a *App) openStores(ctx context.Context) error {
	cfg := a.Config.Database
	if cfg.URL == "" {
		log.Println("[app] DATABASE_URL not set, using in-memory stores")
		store := memory.NewStore()
		a.Store = store
		a.Events = store
		a.Jobs = memory.NewJobQueue().WithMaxAttempts(a.Config.Pipeline.MaxAttempts)
		a.Directory = memory.NewDirectory()
		a.Quotas = memory.NewQuotaRepo()
		a.suppressionRepo = memory.NewSuppressionRepo()
		return nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnLifetime())
	a.closers = append(a.closers, db.Close)
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	log.Println("[app] Connected to PostgreSQL")

	a.DB = db
	a.Store = postgres.NewCampaignRepo(db)
	a.Events = postgres.NewEventRepo(db)
	a.Jobs = postgres.NewJobRepo(db).WithMaxAttempts(a.Config.Pipeline.MaxAttempts)
	a.Directory = postgres.NewDirectoryRepo(db)
	a.Quotas = postgres.NewQuotaRepo(db)
	a.suppressionRepo = postgres.NewSuppressionRepo(db)
	return nil
}

func (a *App) openRedis(ctx context.Context) error {
	url := a.Config.Redis.URL
	if url == "" {
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, client.Close)
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	log.Println("[app] Connected to Redis")
	a.Redis = client
	return nil
}

// openNotifier falls back to log lines when no broker is configured or the
// broker is unreachable at startup.
func (a *App) openNotifier() {
	a.Notifier = notify.Log{}
	if a.Config.AMQP.URL == "" {
		return
	}
	n, err := notify.DialAMQP(a.Config.AMQP.URL, a.Config.AMQP.Exchange)
	if err != nil {
		logger.Warn("amqp notifier unavailable, using log notifier", "error", err)
		return
	}
	a.Notifier = n
	a.closers = append(a.closers, n.Close)
}

// Orchestrator builds the generate/send pipeline with the configured model
// and email provider. Sends are throttled in-process and, when Redis is
// available, against the provider's shared rate windows.
func (a *App) Orchestrator(ctx context.Context) (*pipeline.Orchestrator, error) {
	cfg := a.Config

	model, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("llm: %w", err)
	}
	gen := content.NewGenerator(model, content.GeneratorConfig{
		Provider:    cfg.LLM.Provider,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Attempts:    cfg.LLM.Attempts,
	})

	adapter, err := esp.New(ctx, cfg.ESP)
	if err != nil {
		return nil, fmt.Errorf("esp: %w", err)
	}
	limiters := []delivery.Limiter{delivery.NewRateLimiter(cfg.ESP.RatePerSecond)}
	if a.Redis != nil {
		// Items wait on the limiter after they are claimed, so a wait must
		// end well before recovery would call them stale.
		limiters = append(limiters, a.ProviderLimiter().WithMaxWait(cfg.Pipeline.StaleAfter()/4))
	}

	return pipeline.New(pipeline.Deps{
		Campaigns:   a.Store,
		Items:       a.Store,
		Jobs:        a.Jobs,
		Directory:   a.Directory,
		Generator:   gen,
		Sender:      delivery.NewThrottled(adapter, cfg.ESP.Provider, limiters...),
		Links:       a.Signer,
		Suppression: a.Suppressions,
		Quota:       a.Quota,
		Notifier:    a.Notifier,
	}, pipeline.Config{
		GenerateBatchSize: cfg.Pipeline.GenerateBatchSize,
		SendBatchSize:     cfg.Pipeline.SendBatchSize,
		SendDelay:         cfg.Pipeline.SendDelay(),
		DefaultFromName:   cfg.ESP.DefaultFromName,
		DefaultFromEmail:  cfg.ESP.DefaultFromEmail,
	}), nil
}

// ProviderLimiter returns the shared per-provider send limiter, or nil
// without Redis.
func (a *App) ProviderLimiter() *worker.RateLimiter {
	if a.Redis == nil {
		return nil
	}
	cfg := a.Config.ESP
	return worker.NewRateLimiter(a.Redis, cfg.Provider, worker.RateLimit{
		PerSecond: cfg.RatePerSecond,
		PerMinute: cfg.RatePerMinute,
		Daily:     cfg.DailyLimit,
	})
}

// Processor builds the job runner pool around the orchestrator.
func (a *App) Processor(handler worker.JobHandler) *worker.CampaignProcessor {
	pcfg := worker.DefaultProcessorConfig()
	pcfg.NumWorkers = a.Config.Pipeline.Workers
	pcfg.PollInterval = a.Config.Pipeline.PollInterval()
	pcfg.LockTTL = a.Config.Pipeline.LockTTL()
	return worker.NewCampaignProcessor(a.Jobs, handler, a.Locks, pcfg)
}

// Recovery builds the queue recovery worker, with orphaned campaign resume.
func (a *App) Recovery() *worker.QueueRecoveryWorker {
	return worker.NewQueueRecoveryWorker(a.Jobs, a.Store, a.Config.Pipeline.RecoveryInterval(), a.Config.Pipeline.StaleAfter()).
		WithOrphanResume(a.Store, a.Jobs)
}

// Close releases connections in reverse order of opening.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
