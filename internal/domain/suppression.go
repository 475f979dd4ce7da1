package domain

import "time"

// SuppressionType enumerates why an address was suppressed.
type SuppressionType string

const (
	SuppressionBounced      SuppressionType = "bounced"
	SuppressionComplained   SuppressionType = "complained"
	SuppressionManual       SuppressionType = "manual"
	SuppressionUnsubscribed SuppressionType = "unsubscribed"
)

// Valid reports whether t is a known suppression type.
func (t SuppressionType) Valid() bool {
	switch t {
	case SuppressionBounced, SuppressionComplained, SuppressionManual, SuppressionUnsubscribed:
		return true
	}
	return false
}

// SuppressionEntry blocks all mail to one address for one organization.
type SuppressionEntry struct {
	ID             string          `json:"id" db:"id"`
	OrganizationID string          `json:"organization_id" db:"organization_id"`
	Email          string          `json:"email" db:"email"`
	Type           SuppressionType `json:"type" db:"type"`
	Reason         string          `json:"reason,omitempty" db:"reason"`
	CampaignID     string          `json:"campaign_id,omitempty" db:"campaign_id"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}
