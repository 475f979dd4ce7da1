package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
)

// maxWebhookBody limits provider payloads.
const maxWebhookBody = 1 << 20

// emailEventPayload is a provider delivery event, e.g.
// {"type":"email.opened","created_at":"...","data":{"email_id":"..."}}.
type emailEventPayload struct {
	Type      string          `json:"type"`
	CreatedAt string          `json:"created_at"`
	Data      json.RawMessage `json:"data"`
}

type emailEventData struct {
	ID      string `json:"id"`
	EmailID string `json:"email_id"`
}

func (d emailEventData) messageID() string {
	if d.EmailID != "" {
		return d.EmailID
	}
	return d.ID
}

// HandleEmailEvent records a provider delivery event against the item that
// carries its message id, advances engagement, and suppresses the recipient
// of a bounce or complaint. Unknown event types and unknown message ids are
// acknowledged so the provider does not retry them.
//
//	POST /webhooks/email-events
func (h *Handlers) HandleEmailEvent(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBody)

	var payload emailEventPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		httputil.BadRequest(w, "invalid JSON: "+err.Error())
		return
	}
	var data emailEventData
	if len(payload.Data) > 0 {
		if err := json.Unmarshal(payload.Data, &data); err != nil {
			httputil.BadRequest(w, "invalid event data")
			return
		}
	}

	evt := domain.EmailEventType(strings.TrimPrefix(payload.Type, "email."))
	if !evt.Valid() {
		logger.Debug("webhook: ignoring event", "type", payload.Type)
		httputil.OK(w, map[string]interface{}{"received": true, "ignored": true})
		return
	}

	occurred, _ := time.Parse(time.RFC3339, payload.CreatedAt)

	ctx := r.Context()
	item, err := h.campaigns.RecordEvent(ctx, campaign.EventInput{
		MessageID:  data.messageID(),
		Type:       evt,
		Payload:    payload.Data,
		OccurredAt: occurred,
	})
	switch {
	case errors.Is(err, campaign.ErrItemNotFound):
		logger.Info("webhook: no campaign item for message", "message_id", data.messageID(), "type", evt)
		httputil.OK(w, map[string]interface{}{"received": true, "ignored": true})
		return
	case errors.Is(err, campaign.ErrInvalidInput):
		httputil.BadRequest(w, err.Error())
		return
	case err != nil:
		respondServiceError(w, err)
		return
	}

	if item.RecipientEmail != "" {
		if _, err := h.suppressions.HandleEvent(ctx, item.OrganizationID, item.CampaignID, item.RecipientEmail, evt); err != nil {
			respondServiceError(w, err)
			return
		}
	}
	httputil.OK(w, map[string]bool{"received": true})
}
