package api

import (
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

// ListSuppressions pages through the organization's suppression list.
//
//	GET /suppressions?type=&search=&page=&limit=
func (h *Handlers) ListSuppressions(w http.ResponseWriter, r *http.Request) {
	p, ok := pagination(w, r)
	if !ok {
		return
	}
	typ := r.URL.Query().Get("type")
	if typ != "" && !domain.SuppressionType(typ).Valid() {
		httputil.BadRequest(w, "unknown suppression type")
		return
	}

	entries, total, err := h.suppressions.List(r.Context(), orgID(r), suppression.ListFilter{
		Type:   typ,
		Search: r.URL.Query().Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.SuppressionEntry{}
	}
	httputil.OK(w, NewPaginatedResponse(entries, p, total))
}

// SuppressionStats returns entry counts by type.
//
//	GET /suppressions/stats
func (h *Handlers) SuppressionStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.suppressions.GetStats(r.Context(), orgID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, stats)
}

// addSuppressionRequest is validated by the service after normalization.
type addSuppressionRequest struct {
	Email      string                 `json:"email"`
	Type       domain.SuppressionType `json:"type"`
	Reason     string                 `json:"reason"`
	CampaignID string                 `json:"campaign_id"`
}

// AddSuppression suppresses an address. Re-adding updates the entry.
//
//	POST /suppressions
func (h *Handlers) AddSuppression(w http.ResponseWriter, r *http.Request) {
	var req addSuppressionRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	entry, err := h.suppressions.Add(r.Context(), orgID(r), suppression.AddInput{
		Email:      req.Email,
		Type:       req.Type,
		Reason:     req.Reason,
		CampaignID: req.CampaignID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, entry)
}

// RemoveSuppression deletes an address from the list.
//
//	DELETE /suppressions/{email}
func (h *Handlers) RemoveSuppression(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		httputil.BadRequest(w, "invalid email")
		return
	}
	if err := h.suppressions.Remove(r.Context(), orgID(r), email); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}
