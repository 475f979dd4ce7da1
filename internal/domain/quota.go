package domain

import "time"

// QuotaRecord is the persisted monthly send budget of one organization.
type QuotaRecord struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	MonthlyQuota   int        `json:"monthly_quota" db:"monthly_quota"`
	MonthlyUsed    int        `json:"monthly_used" db:"monthly_used"`
	ResetAt        time.Time  `json:"reset_at" db:"reset_at"`
	LastWarningAt  *time.Time `json:"last_warning_at,omitempty" db:"last_warning_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// QuotaInfo is the read model returned to callers of the quota ledger.
type QuotaInfo struct {
	Quota            int       `json:"monthly_quota"`
	Used             int       `json:"monthly_used"`
	Remaining        int       `json:"remaining"`
	Percentage       float64   `json:"percentage"`
	ResetDate        time.Time `json:"reset_date"`
	IsOverQuota      bool      `json:"is_over_quota"`
	WarningThreshold float64   `json:"warning_threshold"`
}

// NearLimit reports whether usage reached the warning threshold.
func (q QuotaInfo) NearLimit() bool {
	return q.Quota > 0 && q.Percentage >= q.WarningThreshold
}

// QuotaCheck is the outcome of checking a requested send volume.
type QuotaCheck struct {
	Allowed   bool      `json:"allowed"`
	Reason    string    `json:"reason,omitempty"`
	Requested int       `json:"requested"`
	CanSend   int       `json:"can_send"`
	Info      QuotaInfo `json:"quota"`
}

// NextQuotaReset returns midnight UTC on the first day of the month after t.
func NextQuotaReset(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
