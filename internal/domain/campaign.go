package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft      CampaignStatus = "draft"
	CampaignGenerating CampaignStatus = "generating"
	CampaignReady      CampaignStatus = "ready"
	CampaignSending    CampaignStatus = "sending"
	CampaignSent       CampaignStatus = "sent"
)

var campaignRank = map[CampaignStatus]int{
	CampaignDraft:      0,
	CampaignGenerating: 1,
	CampaignReady:      2,
	CampaignSending:    3,
	CampaignSent:       4,
}

// Valid reports whether s is a known campaign status.
func (s CampaignStatus) Valid() bool {
	_, ok := campaignRank[s]
	return ok
}

// CanTransition reports whether a campaign may move from s to next.
// Only single forward steps are allowed; status never regresses.
func (s CampaignStatus) CanTransition(next CampaignStatus) bool {
	from, ok := campaignRank[s]
	if !ok {
		return false
	}
	to, ok := campaignRank[next]
	if !ok {
		return false
	}
	return to == from+1
}

// Phase returns the job phase that drives a campaign in s. Only generating
// and sending campaigns have one.
func (s CampaignStatus) Phase() (JobPhase, bool) {
	switch s {
	case CampaignGenerating:
		return PhaseGenerate, true
	case CampaignSending:
		return PhaseSend, true
	}
	return "", false
}

// Tone is the writing style requested for generated emails.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneFriendly     Tone = "friendly"
	ToneCasual       Tone = "casual"
	ToneFormal       Tone = "formal"
	ToneEnthusiastic Tone = "enthusiastic"
)

// Tones lists every supported tone.
var Tones = []Tone{ToneProfessional, ToneFriendly, ToneCasual, ToneFormal, ToneEnthusiastic}

// Valid reports whether t is one of the supported tones.
func (t Tone) Valid() bool {
	for _, v := range Tones {
		if v == t {
			return true
		}
	}
	return false
}

// OrDefault returns t, or ToneProfessional when t is empty or unknown.
func (t Tone) OrDefault() Tone {
	if t.Valid() {
		return t
	}
	return ToneProfessional
}

// Campaign is one outreach effort sent to a recipient set with shared copy and tone.
type Campaign struct {
	ID                 string         `json:"id" db:"id"`
	OrganizationID     string         `json:"organization_id" db:"organization_id"`
	Name               string         `json:"name" db:"name"`
	Subject            string         `json:"subject" db:"subject"`
	SenderName         string         `json:"sender_name" db:"sender_name"`
	SenderEmail        string         `json:"sender_email" db:"sender_email"`
	ServiceDescription string         `json:"service_description" db:"service_description"`
	Tone               Tone           `json:"tone" db:"tone"`
	Status             CampaignStatus `json:"status" db:"status"`

	// Counters are re-derived from item rows, never incremented in place.
	TotalRecipients int `json:"total_recipients" db:"total_recipients"`
	GeneratedCount  int `json:"generated_count" db:"generated_count"`
	SentCount       int `json:"sent_count" db:"sent_count"`
	FailedCount     int `json:"failed_count" db:"failed_count"`
	SuppressedCount int `json:"suppressed_count" db:"suppressed_count"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// IsActive returns true while a background phase is running for the campaign.
// The dashboard polls campaigns in this state.
func (c *Campaign) IsActive() bool {
	return c.Status == CampaignGenerating || c.Status == CampaignSending
}

// IsTerminal returns true if the campaign is in its final state.
func (c *Campaign) IsTerminal() bool {
	return c.Status == CampaignSent
}

// CampaignCounters are the aggregate values derived from a campaign's items.
type CampaignCounters struct {
	Total      int `json:"total"`
	Generated  int `json:"generated"`
	Sent       int `json:"sent"`
	Failed     int `json:"failed"`
	Suppressed int `json:"suppressed"`
}
