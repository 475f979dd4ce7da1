package domain

import (
	"encoding/json"
	"time"
)

// EmailEventType enumerates delivery lifecycle events reported by the provider.
type EmailEventType string

const (
	EventDelivered  EmailEventType = "delivered"
	EventOpened     EmailEventType = "opened"
	EventClicked    EmailEventType = "clicked"
	EventBounced    EmailEventType = "bounced"
	EventComplained EmailEventType = "complained"
)

// Valid reports whether t is a known event type.
func (t EmailEventType) Valid() bool {
	switch t {
	case EventDelivered, EventOpened, EventClicked, EventBounced, EventComplained:
		return true
	}
	return false
}

// SuppressionType returns the suppression an event implies, if any.
func (t EmailEventType) SuppressionType() (SuppressionType, bool) {
	switch t {
	case EventBounced:
		return SuppressionBounced, true
	case EventComplained:
		return SuppressionComplained, true
	}
	return "", false
}

// EmailEvent is an append-only record of a delivery lifecycle event.
type EmailEvent struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	CampaignID     string          `json:"campaign_id" db:"campaign_id"`
	ItemID         string          `json:"item_id" db:"item_id"`
	MessageID      string          `json:"message_id" db:"message_id"`
	Type           EmailEventType  `json:"type" db:"type"`
	Payload        json.RawMessage `json:"payload,omitempty" db:"payload"`
	OccurredAt     time.Time       `json:"occurred_at" db:"occurred_at"`
}
