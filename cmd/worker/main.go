package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/outreach-pipeline/internal/app"
	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/worker"
)

func main() {
	log.Println("Starting Outreach Pipeline Worker...")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()
	if a.Memory() {
		log.Println("WARNING: no DATABASE_URL, this worker only sees its own in-memory jobs")
	}

	orch, err := a.Orchestrator(ctx)
	if err != nil {
		log.Fatalf("Failed to build pipeline: %v", err)
	}

	processor := a.Processor(orch)
	if err := processor.Start(); err != nil {
		log.Fatalf("Failed to start processor: %v", err)
	}
	log.Printf("Campaign processor started (%d workers)", cfg.Pipeline.Workers)

	// Reclaims jobs and send items abandoned by crashed workers and resumes
	// campaigns left without a job
	recovery := a.Recovery()
	go recovery.Start(ctx)
	log.Println("Queue recovery worker started")

	quotaReset, err := worker.NewQuotaResetScheduler(a.Quota, a.Locks, cfg.Quota.ResetSchedule)
	if err != nil {
		log.Fatalf("Failed to create quota reset scheduler: %v", err)
	}
	if err := quotaReset.ScheduleNearQuotaReport(cfg.Quota.ReportSchedule); err != nil {
		log.Fatalf("Failed to schedule near-quota report: %v", err)
	}
	quotaReset.Start()
	log.Printf("Quota reset scheduled (%s), near-quota report (%s)", cfg.Quota.ResetSchedule, cfg.Quota.ReportSchedule)

	log.Println("Worker running...")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down worker...")
	cancel()
	quotaReset.Stop()
	processor.Stop()
	log.Println("Worker stopped")
}
