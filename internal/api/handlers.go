package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

// Handlers contains all HTTP handlers
type Handlers struct {
	campaigns    *campaign.Service
	quota        *quota.Service
	suppressions *suppression.Service
	signer       *delivery.Signer
	webhooks     *WebhookVerifier
}

// NewHandlers creates a new Handlers instance
func NewHandlers(campaigns *campaign.Service, q *quota.Service, s *suppression.Service, signer *delivery.Signer) *Handlers {
	return &Handlers{
		campaigns:    campaigns,
		quota:        q,
		suppressions: s,
		signer:       signer,
	}
}

// WithWebhookVerifier requires signed provider webhooks.
func (h *Handlers) WithWebhookVerifier(v *WebhookVerifier) *Handlers {
	h.webhooks = v
	return h
}

// verifyWebhook passes through when no verifier is configured.
func (h *Handlers) verifyWebhook(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.webhooks == nil {
			next.ServeHTTP(w, r)
			return
		}
		h.webhooks.Middleware(next).ServeHTTP(w, r)
	})
}

// orgID returns the tenant resolved by RequireOrgMiddleware.
func orgID(r *http.Request) string {
	return GetOrgIDFromContext(r.Context())
}

// campaignID reads and validates the {id} path parameter. It writes a 400
// and returns false when the id is not a UUID.
func campaignID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		httputil.BadRequest(w, "invalid campaign id")
		return "", false
	}
	return id, true
}

// pagination parses page/limit, writing a 400 on failure.
func pagination(w http.ResponseWriter, r *http.Request) (PaginationParams, bool) {
	p, err := ParsePagination(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return PaginationParams{}, false
	}
	return p, true
}
