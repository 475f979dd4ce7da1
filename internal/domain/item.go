package domain

import "time"

// ItemStatus enumerates the lifecycle of a single campaign item.
type ItemStatus string

const (
	ItemPending    ItemStatus = "pending"
	ItemGenerated  ItemStatus = "generated"
	ItemSending    ItemStatus = "sending"
	ItemSent       ItemStatus = "sent"
	ItemSuppressed ItemStatus = "suppressed"
	ItemFailed     ItemStatus = "failed"
	ItemOpened     ItemStatus = "opened"
	ItemClicked    ItemStatus = "clicked"
)

// Valid reports whether s is a known item status.
func (s ItemStatus) Valid() bool {
	switch s {
	case ItemPending, ItemGenerated, ItemSending, ItemSent,
		ItemSuppressed, ItemFailed, ItemOpened, ItemClicked:
		return true
	}
	return false
}

// IsAbsorbing returns true for statuses no pipeline step moves an item out of.
func (s ItemStatus) IsAbsorbing() bool {
	return s == ItemFailed || s == ItemSuppressed
}

// Delivered returns true once the provider accepted the message.
func (s ItemStatus) Delivered() bool {
	return s == ItemSent || s == ItemOpened || s == ItemClicked
}

// CampaignItem is one (campaign, recipient) pairing and the unit of pipeline work.
// RecipientName and RecipientEmail hold the resolved recipient, written when
// the item is generated. Sending reads only these.
type CampaignItem struct {
	ID             string     `json:"id" db:"id"`
	CampaignID     string     `json:"campaign_id" db:"campaign_id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Recipient      Recipient  `json:"recipient" db:"-"`
	RecipientName  string     `json:"recipient_name,omitempty" db:"recipient_name"`
	RecipientEmail string     `json:"recipient_email,omitempty" db:"recipient_email"`
	Status         ItemStatus `json:"status" db:"status"`
	EmailSubject   string     `json:"email_subject,omitempty" db:"email_subject"`
	EmailContent   string     `json:"email_content,omitempty" db:"email_content"`
	MessageID      string     `json:"message_id,omitempty" db:"message_id"`
	ErrorMessage   string     `json:"error_message,omitempty" db:"error_message"`
	GeneratedAt    *time.Time `json:"generated_at,omitempty" db:"generated_at"`
	SentAt         *time.Time `json:"sent_at,omitempty" db:"sent_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// HasContent returns true if generation produced a subject and body for the item.
func (i *CampaignItem) HasContent() bool {
	return i.EmailSubject != "" && i.EmailContent != ""
}
