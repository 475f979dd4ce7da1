package api

import (
	"net/http"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
)

// CreateCampaign creates a draft campaign with its recipients.
//
//	POST /campaigns
func (h *Handlers) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var input campaign.CreateInput
	if !httputil.Decode(w, r, &input) {
		return
	}

	c, err := h.campaigns.Create(r.Context(), orgID(r), input)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Created(w, c)
}

// ListCampaigns returns the organization's campaigns, newest first.
//
//	GET /campaigns?status=&search=&page=&limit=
func (h *Handlers) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	p, ok := pagination(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !domain.CampaignStatus(status).Valid() {
		httputil.BadRequest(w, "unknown campaign status")
		return
	}

	list, total, err := h.campaigns.List(r.Context(), orgID(r), campaign.ListFilter{
		Status: status,
		Search: r.URL.Query().Get("search"),
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if list == nil {
		list = []domain.Campaign{}
	}
	httputil.OK(w, NewPaginatedResponse(list, p, total))
}

// GetCampaign returns the campaign with live progress. The UI polls this
// while the campaign is generating or sending.
//
//	GET /campaigns/{id}
func (h *Handlers) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	progress, err := h.campaigns.Progress(r.Context(), orgID(r), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, progress)
}

type updateCampaignRequest struct {
	Name               *string      `json:"name" validate:"omitempty,min=1,max=200"`
	Subject            *string      `json:"subject" validate:"omitempty,max=200"`
	SenderName         *string      `json:"sender_name" validate:"omitempty,max=100"`
	SenderEmail        *string      `json:"sender_email" validate:"omitempty,email"`
	ServiceDescription *string      `json:"service_description" validate:"omitempty,min=1,max=4000"`
	Tone               *domain.Tone `json:"tone"`
}

// UpdateCampaign edits a draft campaign.
//
//	PUT /campaigns/{id}
func (h *Handlers) UpdateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	var req updateCampaignRequest
	if !httputil.Decode(w, r, &req) {
		return
	}

	c, err := h.campaigns.Update(r.Context(), orgID(r), id, campaign.UpdateFields{
		Name:               req.Name,
		Subject:            req.Subject,
		SenderName:         req.SenderName,
		SenderEmail:        req.SenderEmail,
		ServiceDescription: req.ServiceDescription,
		Tone:               req.Tone,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, c)
}

// DeleteCampaign removes a draft campaign and its items.
//
//	DELETE /campaigns/{id}
func (h *Handlers) DeleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	if err := h.campaigns.Delete(r.Context(), orgID(r), id); err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.NoContent(w)
}

// StartCampaign moves a draft campaign to generating and emits
// campaign/generate-emails.
//
//	POST /campaigns/{id}/start
func (h *Handlers) StartCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	c, err := h.campaigns.StartGeneration(r.Context(), orgID(r), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Accepted(w, c)
}

// SendCampaign checks quota, moves a ready campaign to sending and emits
// campaign/send-batch. The response reports how many items the quota admits.
//
//	POST /campaigns/{id}/send
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	plan, err := h.campaigns.StartSending(r.Context(), orgID(r), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.Accepted(w, plan)
}

// ListCampaignItems pages through a campaign's items.
//
//	GET /campaigns/{id}/items?status=&page=&limit=
func (h *Handlers) ListCampaignItems(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	p, ok := pagination(w, r)
	if !ok {
		return
	}
	status := r.URL.Query().Get("status")
	if status != "" && !domain.ItemStatus(status).Valid() {
		httputil.BadRequest(w, "unknown item status")
		return
	}

	items, total, err := h.campaigns.ListItems(r.Context(), orgID(r), id, campaign.ItemFilter{
		Status: status,
		Limit:  p.Limit,
		Offset: p.Offset,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if items == nil {
		items = []domain.CampaignItem{}
	}
	httputil.OK(w, NewPaginatedResponse(items, p, total))
}

// GetCampaignAnalytics returns event counts and engagement rates.
//
//	GET /campaigns/{id}/analytics
func (h *Handlers) GetCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}

	a, err := h.campaigns.Analytics(r.Context(), orgID(r), id)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	httputil.OK(w, a)
}

// ListCampaignEvents pages through a campaign's delivery events, newest first.
//
//	GET /campaigns/{id}/events?page=&limit=
func (h *Handlers) ListCampaignEvents(w http.ResponseWriter, r *http.Request) {
	id, ok := campaignID(w, r)
	if !ok {
		return
	}
	p, ok := pagination(w, r)
	if !ok {
		return
	}

	events, total, err := h.campaigns.ListEvents(r.Context(), orgID(r), id, p.Limit, p.Offset)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if events == nil {
		events = []domain.EmailEvent{}
	}
	httputil.OK(w, NewPaginatedResponse(events, p, total))
}
