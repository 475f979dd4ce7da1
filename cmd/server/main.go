package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/outreach-pipeline/internal/api"
	"github.com/ignite/outreach-pipeline/internal/app"
	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/worker"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v\n"+
			"  Hint: Run 'lsof -i :%d' to find the blocking process", port, addr, err, port)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("╔════════════════════════════════════════════════════════════╗")
	log.Println("║  Outreach Pipeline API (cmd/server/main.go)               ║")
	log.Println("║  Campaigns, quota, suppressions, unsubscribe, webhooks    ║")
	log.Println("╚════════════════════════════════════════════════════════════╝")

	cfg, err := config.LoadFromEnv("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Pre-flight check FAILED: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.Open(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer a.Close()

	// In-memory stores are private to this process, so the pipeline has to
	// run here for queued jobs to be picked up at all.
	var processor *worker.CampaignProcessor
	if a.Memory() {
		orch, err := a.Orchestrator(ctx)
		if err != nil {
			log.Printf("WARNING: pipeline unavailable, campaigns will stay queued: %v", err)
		} else {
			processor = a.Processor(orch)
			if err := processor.Start(); err != nil {
				log.Fatalf("Failed to start processor: %v", err)
			}
			go a.Recovery().Start(ctx)
			log.Println("In-memory mode: campaign processor running in the API process")
		}
	}

	handlers := api.NewHandlers(a.Campaigns, a.Quota, a.Suppressions, a.Signer)
	if cfg.ESP.WebhookSecret != "" {
		verifier, err := api.NewWebhookVerifier(cfg.ESP.WebhookSecret)
		if err != nil {
			log.Fatalf("Invalid webhook secret: %v", err)
		}
		handlers.WithWebhookVerifier(verifier)
	} else {
		log.Println("WARNING: RESEND_WEBHOOK_SECRET not set, email event webhooks are unauthenticated")
	}
	health := api.NewHealthChecker(a.DB, a.Redis)
	if limiter := a.ProviderLimiter(); limiter != nil {
		health.WithSendUsage(limiter)
	}
	server := api.NewServer(cfg.Server, handlers, health)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	log.Println("All services initialized, server is ready")

	<-done
	log.Println("Shutting down...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
	if processor != nil {
		processor.Stop()
	}

	log.Println("Server stopped")
}
