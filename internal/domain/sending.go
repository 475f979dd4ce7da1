package domain

import "time"

// ESPType identifies the email service provider used for delivery.
type ESPType string

const (
	ESPSES    ESPType = "ses"
	ESPResend ESPType = "resend"
)

// SendOutcome is the per-item result of one send pass.
type SendOutcome string

const (
	OutcomeSent       SendOutcome = "sent"
	OutcomeSuppressed SendOutcome = "suppressed"
	OutcomeFailed     SendOutcome = "failed"
)

// SendResult records what happened to one item during a send batch.
type SendResult struct {
	ItemID    string      `json:"item_id"`
	Outcome   SendOutcome `json:"outcome"`
	MessageID string      `json:"message_id,omitempty"`
	SentAt    time.Time   `json:"sent_at,omitempty"`
	Error     string      `json:"error,omitempty"`
}
