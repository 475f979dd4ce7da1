package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

const unsubscribedPage = `<!DOCTYPE html><html><body style="font-family:Arial;text-align:center;padding:50px;">
		<h1>You have been unsubscribed</h1>
		<p>You will no longer receive emails from this sender.</p>
	</body></html>`

// HandleUnsubscribe verifies a footer link token and suppresses the
// recipient of the linked item. GET serves the link from the email body;
// POST serves one-click List-Unsubscribe. Repeating either is harmless.
//
//	GET|POST /unsubscribe/{token}
func (h *Handlers) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	claims, err := h.signer.Verify(chi.URLParam(r, "token"))
	if err != nil {
		if errors.Is(err, delivery.ErrExpiredToken) {
			http.Error(w, "This unsubscribe link has expired", http.StatusGone)
			return
		}
		http.Error(w, "Invalid unsubscribe link", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	item, err := h.campaigns.GetItem(ctx, claims.OrganizationID, claims.ItemID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	if item.RecipientEmail == "" {
		httputil.NotFound(w, "no recipient for this link")
		return
	}

	_, err = h.suppressions.Add(ctx, claims.OrganizationID, suppression.AddInput{
		Email:      item.RecipientEmail,
		Type:       domain.SuppressionUnsubscribed,
		Reason:     "unsubscribe link",
		CampaignID: item.CampaignID,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}
	logger.Info("recipient unsubscribed",
		"organization_id", claims.OrganizationID,
		"campaign_id", item.CampaignID,
		"email", item.RecipientEmail)

	if r.Method == http.MethodPost {
		httputil.OK(w, map[string]bool{"unsubscribed": true})
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(unsubscribedPage))
}
