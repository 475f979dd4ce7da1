package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// SendUsage reports the shared send rate windows. *worker.RateLimiter
// implements it.
type SendUsage interface {
	Usage(ctx context.Context) (map[string]int64, error)
}

// HealthChecker reports on the database, Redis, the job backlog and the
// provider send windows.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	sendUsage   SendUsage
	startTime   time.Time
	now         func() time.Time
}

// NewHealthChecker creates a new HealthChecker.
// Any dependency can be nil; the check will report "not configured" for nil deps.
func NewHealthChecker(db *sql.DB, redisClient *redis.Client) *HealthChecker {
	return &HealthChecker{
		db:          db,
		redisClient: redisClient,
		startTime:   time.Now(),
		now:         time.Now,
	}
}

// WithSendUsage adds the provider send windows to the checks.
func (hc *HealthChecker) WithSendUsage(u SendUsage) *HealthChecker {
	hc.sendUsage = u
	return hc
}

// Version is reported by the health endpoint; overridden at link time.
var Version = "dev"

// maxQueuedJobs is the backlog above which the job queue reports degraded.
const maxQueuedJobs = 500

// HandleHealth returns the status of all components. It always answers 200;
// the body conveys health.
//
//	GET /healthz
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: Version,
		Uptime:  formatUptime(hc.now().Sub(hc.startTime)),
		Checks:  checks,
	})
}

// HandleReadiness returns 503 while a configured critical dependency is down.
//
//	GET /healthz/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	httputil.JSON(w, status, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	ch := make(chan result, 4)

	go func() { ch <- result{"database", hc.checkDatabase(ctx)} }()
	go func() { ch <- result{"redis", hc.checkRedis(ctx)} }()
	go func() { ch <- result{"jobs", hc.checkJobs(ctx)} }()
	go func() { ch <- result{"send_rate", hc.checkSendRate(ctx)} }()

	checks := make(map[string]ComponentCheck, 4)
	for i := 0; i < 4; i++ {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// checkDatabase pings PostgreSQL with a 3-second timeout.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.db.PingContext(pingCtx)
	return latencyCheck(time.Since(start), time.Second, err)
}

// checkRedis pings Redis with a 2-second timeout.
func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	err := hc.redisClient.Ping(pingCtx).Err()
	return latencyCheck(time.Since(start), 500*time.Millisecond, err)
}

func latencyCheck(latency, slow time.Duration, err error) ComponentCheck {
	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("ping failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: "connected"}
}

// checkJobs uses the due job backlog as a proxy for worker health.
func (hc *HealthChecker) checkJobs(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	start := time.Now()
	var count int
	err := hc.db.QueryRowContext(queryCtx,
		`SELECT COUNT(*) FROM campaign_jobs WHERE status = 'queued' AND run_at <= $1`, hc.now().UTC(),
	).Scan(&count)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("queue check failed: %v", err),
		}
	}

	if count > maxQueuedJobs {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("high queue depth: %d jobs due", count),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: fmt.Sprintf("%d jobs due", count)}
}

// checkSendRate reports today's sends against the provider's daily limit.
// An exhausted window is degraded: sends are deferred until it resets.
func (hc *HealthChecker) checkSendRate(ctx context.Context) ComponentCheck {
	if hc.sendUsage == nil {
		return ComponentCheck{Status: "down", Message: "not configured"}
	}

	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	start := time.Now()
	usage, err := hc.sendUsage.Usage(queryCtx)
	latency := time.Since(start)
	if err != nil {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("usage check failed: %v", err),
		}
	}

	sent, limit := usage["daily_current"], usage["daily_limit"]
	if limit <= 0 {
		return ComponentCheck{Status: "up", Latency: latency.String(), Message: fmt.Sprintf("%d sent today", sent)}
	}
	if sent >= limit {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("daily send limit reached: %d of %d", sent, limit),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: fmt.Sprintf("%d of %d sent today", sent, limit)}
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if a configured database is down
//   - "degraded"  if any check is degraded or another configured check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	if db, ok := checks["database"]; ok && db.Status == "down" && db.Message != "not configured" {
		return "unhealthy"
	}

	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != "not configured" {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime renders whole seconds, e.g. "74h3m12s".
func formatUptime(d time.Duration) string {
	return d.Truncate(time.Second).String()
}
