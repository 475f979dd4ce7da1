package api

import (
	"net/http"
	"strconv"

	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
)

// GetQuota returns the organization's monthly send budget.
//
//	GET /quota
func (h *Handlers) GetQuota(w http.ResponseWriter, r *http.Request) {
	info, err := h.quota.GetQuotaInfo(r.Context(), orgID(r))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, info)
}

type updateQuotaRequest struct {
	MonthlyQuota *int `json:"monthly_quota" validate:"required,gte=0"`
}

// UpdateQuota sets the organization's monthly ceiling.
//
//	PUT /quota
func (h *Handlers) UpdateQuota(w http.ResponseWriter, r *http.Request) {
	var req updateQuotaRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	info, err := h.quota.SetMonthlyQuota(r.Context(), orgID(r), *req.MonthlyQuota)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, info)
}

// CheckQuota reports how many of count sends the quota admits now.
//
//	GET /quota/check?count=
func (h *Handlers) CheckQuota(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.URL.Query().Get("count"))
	if err != nil || n < 0 {
		httputil.BadRequest(w, "count must be a non-negative integer")
		return
	}

	check, err := h.quota.CheckQuota(r.Context(), orgID(r), n)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, check)
}
