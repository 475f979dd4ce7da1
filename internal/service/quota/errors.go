package quota

import (
	"errors"
	"fmt"
)

// Sentinel errors for the quota service layer.
var (
	ErrNotFound     = errors.New("quota record not found")
	ErrExceeded     = errors.New("monthly quota exceeded")
	ErrInvalidQuota = errors.New("monthly quota must not be negative")
)

// ExceededError reports a send request that the ledger cannot admit at all.
type ExceededError struct {
	Requested int
	Remaining int
	Reason    string
}

func (e *ExceededError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("quota exceeded: %d requested, %d remaining", e.Requested, e.Remaining)
}

func (e *ExceededError) Unwrap() error { return ErrExceeded }
