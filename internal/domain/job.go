package domain

import (
	"fmt"
	"time"
)

// JobPhase names the pipeline step a job runs.
type JobPhase string

const (
	PhaseGenerate JobPhase = "generate"
	PhaseSend     JobPhase = "send"
)

// Event names that trigger each phase.
const (
	EventGenerateEmails = "campaign/generate-emails"
	EventSendBatch      = "campaign/send-batch"
)

// EventName returns the trigger event for the phase.
func (p JobPhase) EventName() string {
	switch p {
	case PhaseGenerate:
		return EventGenerateEmails
	case PhaseSend:
		return EventSendBatch
	}
	return ""
}

// PhaseForEvent maps a trigger event name back to its phase.
func PhaseForEvent(name string) (JobPhase, bool) {
	switch name {
	case EventGenerateEmails:
		return PhaseGenerate, true
	case EventSendBatch:
		return PhaseSend, true
	}
	return "", false
}

// JobStatus enumerates the lifecycle of a queued job.
type JobStatus string

const (
	JobQueued  JobStatus = "queued"
	JobRunning JobStatus = "running"
	JobDone    JobStatus = "done"
	JobDead    JobStatus = "dead"
)

// Job is one persisted unit of pipeline work: a single batch for one campaign.
type Job struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	CampaignID     string     `json:"campaign_id" db:"campaign_id"`
	Phase          JobPhase   `json:"phase" db:"phase"`
	Seq            int        `json:"seq" db:"seq"`
	IdempotencyKey string     `json:"idempotency_key" db:"idempotency_key"`
	Status         JobStatus  `json:"status" db:"status"`
	Attempts       int        `json:"attempts" db:"attempts"`
	MaxAttempts    int        `json:"max_attempts" db:"max_attempts"`
	RunAt          time.Time  `json:"run_at" db:"run_at"`
	LastError      string     `json:"last_error,omitempty" db:"last_error"`
	LockedBy       string     `json:"locked_by,omitempty" db:"locked_by"`
	LockedAt       *time.Time `json:"locked_at,omitempty" db:"locked_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// JobKey builds the idempotency key of the seq-th batch of a phase.
// Enqueueing the same key twice is a no-op.
func JobKey(phase JobPhase, campaignID string, seq int) string {
	return fmt.Sprintf("%s:%s:%d", phase, campaignID, seq)
}

// NewJob builds a queued job for the given batch.
func NewJob(orgID, campaignID string, phase JobPhase, seq int, runAt time.Time) Job {
	return Job{
		OrganizationID: orgID,
		CampaignID:     campaignID,
		Phase:          phase,
		Seq:            seq,
		IdempotencyKey: JobKey(phase, campaignID, seq),
		Status:         JobQueued,
		RunAt:          runAt,
	}
}
