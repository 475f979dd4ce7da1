// Package notify publishes campaign lifecycle changes to interested
// consumers. The pipeline calls a Notifier when a phase finishes; failures
// are logged by the caller and never affect campaign state.
package notify

import (
	"context"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
)

// StatusEvent describes a campaign reaching a new status.
type StatusEvent struct {
	OrganizationID string                  `json:"organization_id"`
	CampaignID     string                  `json:"campaign_id"`
	Status         domain.CampaignStatus   `json:"status"`
	Counters       domain.CampaignCounters `json:"counters"`
	OccurredAt     time.Time               `json:"occurred_at"`
}

// RoutingKey returns the topic the event is published under.
func (e StatusEvent) RoutingKey() string {
	return "campaign." + string(e.Status)
}

// Notifier receives campaign lifecycle events.
type Notifier interface {
	CampaignStatusChanged(ctx context.Context, e StatusEvent) error
}

// Log is a Notifier that writes events to the structured log.
type Log struct{}

// CampaignStatusChanged implements Notifier.
func (Log) CampaignStatusChanged(_ context.Context, e StatusEvent) error {
	logger.Info("campaign status changed",
		"org_id", e.OrganizationID,
		"campaign_id", e.CampaignID,
		"status", string(e.Status),
		"sent", e.Counters.Sent,
		"failed", e.Counters.Failed,
		"suppressed", e.Counters.Suppressed,
	)
	return nil
}

// Multi fans an event out to several notifiers and returns the first error.
type Multi []Notifier

// CampaignStatusChanged implements Notifier.
func (m Multi) CampaignStatusChanged(ctx context.Context, e StatusEvent) error {
	var first error
	for _, n := range m {
		if err := n.CampaignStatusChanged(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
