package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

// Machine-readable error codes the UI switches on.
const (
	CodeInvalidStatus = "invalid_status"
	CodeQuotaExceeded = "quota_exceeded"
	CodeNotFound      = "not_found"
	CodeInvalidInput  = "invalid_input"
	CodeNotScheduled  = "not_scheduled"
)

// respondServiceError maps a service-layer error onto an HTTP response.
// Anything it does not recognize is logged and returned as a sanitized 500.
func respondServiceError(w http.ResponseWriter, err error) {
	var statusErr *campaign.StatusError
	var quotaErr *quota.ExceededError

	switch {
	case errors.As(err, &quotaErr):
		httputil.ErrorWithCode(w, http.StatusPaymentRequired, CodeQuotaExceeded, quotaErr.Error(), map[string]int{
			"requested": quotaErr.Requested,
			"remaining": quotaErr.Remaining,
		})
	case errors.As(err, &statusErr):
		httputil.ErrorWithCode(w, http.StatusConflict, CodeInvalidStatus, statusErr.Error(), map[string]string{
			"current":  string(statusErr.Current),
			"required": string(statusErr.Required),
		})
	case errors.Is(err, campaign.ErrInvalidTransition):
		httputil.ErrorWithCode(w, http.StatusConflict, CodeInvalidStatus, err.Error(), nil)
	case errors.Is(err, campaign.ErrNotScheduled):
		logger.Error("api: campaign not scheduled", "error", err)
		httputil.ErrorWithCode(w, http.StatusServiceUnavailable, CodeNotScheduled, campaign.ErrNotScheduled.Error(), nil)
	case errors.Is(err, campaign.ErrNotFound),
		errors.Is(err, campaign.ErrItemNotFound),
		errors.Is(err, suppression.ErrNotFound),
		errors.Is(err, quota.ErrNotFound):
		httputil.ErrorWithCode(w, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, campaign.ErrInvalidInput),
		errors.Is(err, campaign.ErrNoRecipients),
		errors.Is(err, suppression.ErrInvalidEmail),
		errors.Is(err, suppression.ErrInvalidType),
		errors.Is(err, suppression.ErrInvalidReason),
		errors.Is(err, quota.ErrInvalidQuota):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInvalidInput, err.Error(), nil)
	case errors.Is(err, delivery.ErrInvalidToken):
		httputil.BadRequest(w, err.Error())
	case errors.Is(err, delivery.ErrExpiredToken):
		httputil.Error(w, http.StatusGone, err.Error())
	default:
		respondSafeError(w, http.StatusInternalServerError, err)
	}
}

// respondSafeError logs the full internal error and sends a public-safe message.
func respondSafeError(w http.ResponseWriter, code int, internalErr error) {
	msg := safeErrorMessage(code, internalErr)
	if internalErr != nil {
		logger.Error("api: request failed", "status", code, "public", msg, "error", internalErr)
	}
	httputil.Error(w, code, msg)
}

// safeErrorMessage maps common internal error patterns to public-safe messages.
// For 400-level errors, the original message is typically fine (user input issues).
// For 500-level errors, this returns a generic safe message.
func safeErrorMessage(code int, internalErr error) string {
	if code < 500 {
		if internalErr != nil {
			return internalErr.Error()
		}
		return "Bad request"
	}

	if internalErr == nil {
		return "An internal error occurred"
	}

	errStr := strings.ToLower(internalErr.Error())

	switch {
	case strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "no such host") ||
		strings.Contains(errStr, "dial tcp"):
		return "Service temporarily unavailable"

	case strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "deadline exceeded") ||
		strings.Contains(errStr, "context canceled"):
		return "Request timed out"

	case strings.Contains(errStr, "sql") ||
		strings.Contains(errStr, "pq:") ||
		strings.Contains(errStr, "query") ||
		strings.Contains(errStr, "scan") ||
		strings.Contains(errStr, "transaction") ||
		strings.Contains(errStr, "database"):
		return "A database error occurred"

	default:
		return "An internal error occurred"
	}
}
