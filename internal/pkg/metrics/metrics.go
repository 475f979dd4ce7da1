// Package metrics holds the Prometheus collectors shared by the API and worker.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var ItemsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_items_processed_total",
		Help: "Campaign items processed, by phase and outcome",
	},
	[]string{"phase", "outcome"},
)

var BatchDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_batch_duration_seconds",
		Help:    "Time taken to process one generate or send batch",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"phase"},
)

var JobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "pipeline_jobs_total",
		Help: "Jobs handled by the worker pool, by phase and result",
	},
	[]string{"phase", "result"},
)

var ModelCallDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_model_call_duration_seconds",
		Help:    "Latency of text-generation model calls",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40},
	},
	[]string{"provider"},
)

var ProviderSendDuration = prometheus.NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "pipeline_provider_send_duration_seconds",
		Help:    "Latency of delivery provider send calls",
		Buckets: prometheus.DefBuckets,
	},
	[]string{"provider"},
)

var QuotaUsedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "pipeline_quota_used_total",
		Help: "Emails counted against organization quotas",
	},
)

var OrganizationsNearQuota = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "pipeline_organizations_near_quota",
		Help: "Organizations at or above the quota warning threshold at the last report",
	},
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			ItemsProcessedTotal,
			BatchDuration,
			JobsTotal,
			ModelCallDuration,
			ProviderSendDuration,
			QuotaUsedTotal,
			OrganizationsNearQuota,
		)
	})
}
