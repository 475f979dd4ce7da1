package campaign

import (
	"errors"
	"fmt"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrItemNotFound      = errors.New("campaign item not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNoRecipients      = errors.New("campaign has no recipients")
	ErrInvalidInput      = errors.New("invalid campaign input")
	ErrNotScheduled      = errors.New("campaign started but its first batch is not queued yet")
)

// StatusError reports an action attempted while the campaign is in the
// wrong status.
type StatusError struct {
	CampaignID string
	Current    domain.CampaignStatus
	Required   domain.CampaignStatus
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("campaign %s is %s, must be %s", e.CampaignID, e.Current, e.Required)
}

func (e *StatusError) Unwrap() error { return ErrInvalidTransition }
