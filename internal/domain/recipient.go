package domain

import "strings"

// RecipientKind discriminates the Recipient variants.
type RecipientKind string

const (
	RecipientDirectory RecipientKind = "directory"
	RecipientManual    RecipientKind = "manual"
)

// Recipient identifies who a campaign item is addressed to. It is either a
// DirectoryRecipient or a ManualRecipient.
type Recipient interface {
	Kind() RecipientKind
}

// DirectoryRecipient points at a business in the directory.
type DirectoryRecipient struct {
	BusinessID int64 `json:"business_id"`
}

// Kind implements Recipient.
func (DirectoryRecipient) Kind() RecipientKind { return RecipientDirectory }

// ManualRecipient carries an inline name and address added by hand.
type ManualRecipient struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Kind implements Recipient.
func (ManualRecipient) Kind() RecipientKind { return RecipientManual }

// Business is a read-only directory record.
type Business struct {
	ID          int64  `json:"id" db:"listing_id"`
	Name        string `json:"name" db:"company_name"`
	Email       string `json:"email" db:"email"`
	Industry    string `json:"industry" db:"category_name"`
	Description string `json:"description" db:"description_short"`
}

// Defaults used when a recipient carries no directory details.
const (
	DefaultRecipientName = "Valued Customer"
	DefaultIndustry      = "Business Services"
)

// ResolvedRecipient is a Recipient normalized into the fields generation and
// delivery need. Email may be empty when nothing could be resolved.
type ResolvedRecipient struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	Industry    string `json:"industry"`
	Description string `json:"description,omitempty"`
}

// HasEmail reports whether the recipient can be mailed at all.
func (r ResolvedRecipient) HasEmail() bool {
	return strings.TrimSpace(r.Email) != ""
}

// Resolve normalizes a recipient. biz is the directory record for a
// DirectoryRecipient, or nil when the lookup found nothing.
func Resolve(rcpt Recipient, biz *Business) ResolvedRecipient {
	out := ResolvedRecipient{Name: DefaultRecipientName, Industry: DefaultIndustry}
	switch r := rcpt.(type) {
	case DirectoryRecipient:
		if biz != nil {
			if biz.Name != "" {
				out.Name = biz.Name
			}
			if biz.Industry != "" {
				out.Industry = biz.Industry
			}
			out.Email = biz.Email
			out.Description = biz.Description
		}
	case ManualRecipient:
		if r.Name != "" {
			out.Name = r.Name
		}
		out.Email = r.Email
	}
	out.Email = NormalizeEmail(out.Email)
	return out
}

// NormalizeEmail lowercases and trims an address for comparison and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
