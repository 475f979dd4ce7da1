package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-pipeline/internal/config"
	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/httputil"
	"github.com/ignite/outreach-pipeline/internal/repository/memory"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
	"github.com/ignite/outreach-pipeline/internal/service/pipeline"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
	"github.com/ignite/outreach-pipeline/internal/worker"
)

const testOrg = "org-1"

type testEnv struct {
	store        *memory.Store
	jobs         *memory.JobQueue
	suppressions *memory.SuppressionRepo
	signer       *delivery.Signer
	handlers     *Handlers
	router       http.Handler
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:        memory.NewStore(),
		jobs:         memory.NewJobQueue(),
		suppressions: memory.NewSuppressionRepo(),
		signer:       delivery.NewSigner("test-secret", "https://app.example.com", time.Hour),
	}
	quotaSvc := quota.NewService(memory.NewQuotaRepo(), quota.WithDefaultQuota(100))
	h := NewHandlers(
		campaign.NewService(env.store, env.jobs, quotaSvc, env.store),
		quotaSvc,
		suppression.NewService(env.suppressions),
		env.signer,
	)
	env.handlers = h
	env.router = SetupRoutes(h, NewHealthChecker(nil, nil), config.ServerConfig{})
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(OrgHeader, testOrg)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) createCampaign(t *testing.T, emails ...string) domain.Campaign {
	t.Helper()
	in := map[string]interface{}{
		"name":                "Spring outreach",
		"service_description": "Managed IT support for small offices",
	}
	var rcpts []map[string]string
	for _, em := range emails {
		rcpts = append(rcpts, map[string]string{"email": em})
	}
	in["manual_recipients"] = rcpts

	w := e.do(t, http.MethodPost, "/campaigns", in)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var c domain.Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &c))
	return c
}

// deliver generates and sends every item of a campaign directly through
// the store, returning the items.
func (e *testEnv) deliver(t *testing.T, campaignID string) []domain.CampaignItem {
	t.Helper()
	ctx := context.Background()
	items, err := e.store.ListByStatus(ctx, testOrg, campaignID, domain.ItemPending, 0)
	require.NoError(t, err)
	var ids []string
	for _, it := range items {
		email := it.Recipient.(domain.ManualRecipient).Email
		requireUpdated(t)(e.store.MarkGenerated(ctx, testOrg, it.ID, pipeline.Generated{
			RecipientEmail: email, Subject: "Hello", HTML: "<p>Hi</p>", At: time.Now(),
		}))
		ids = append(ids, it.ID)
	}
	_, err = e.store.ClaimForSend(ctx, testOrg, ids)
	require.NoError(t, err)
	for _, id := range ids {
		requireUpdated(t)(e.store.MarkSent(ctx, testOrg, id, "msg-"+id, time.Now()))
	}
	out, _, err := e.store.ListItems(ctx, testOrg, campaignID, campaign.ItemFilter{})
	require.NoError(t, err)
	return out
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var resp httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestRequireOrg(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/campaigns", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/campaigns", nil)
	req.Header.Set(OrgHeader, "bad org!")
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireOrg_DevModeFallback(t *testing.T) {
	p := NewOrgContextProvider("dev-org", true)
	var seen string
	h := p.RequireOrgMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetOrgIDFromContext(r.Context())
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, "dev-org", seen)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(OrgHeader, "org-9")
	h.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "org-9", seen)
}

func TestCreateAndGetCampaign(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io", "b@acme.io")
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Equal(t, 2, c.TotalRecipients)

	w := env.do(t, http.MethodGet, "/campaigns/"+c.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var p campaign.Progress
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	assert.Equal(t, c.ID, p.Campaign.ID)
	assert.Equal(t, 2, p.Counts[domain.ItemPending])
	assert.False(t, p.Active)
}

func TestCreateCampaign_Validation(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/campaigns", map[string]interface{}{
		"name":              "x",
		"manual_recipients": []map[string]string{{"email": "a@acme.io"}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/campaigns", map[string]interface{}{
		"name":                "x",
		"service_description": "y",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetCampaign_InvalidAndMissing(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/campaigns/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/campaigns/6f1c1c52-6d64-4b0a-9b0e-9a0f2f0b5a11", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStartCampaign(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io")

	w := env.do(t, http.MethodPost, "/campaigns/"+c.ID+"/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	jobs := env.jobs.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, domain.PhaseGenerate, jobs[0].Phase)
	assert.Equal(t, 0, jobs[0].Seq)

	w = env.do(t, http.MethodPost, "/campaigns/"+c.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, CodeInvalidStatus, decodeError(t, w).Code)
	assert.Len(t, env.jobs.Jobs(), 1)
}

func TestSendCampaign_RequiresReady(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io")

	w := env.do(t, http.MethodPost, "/campaigns/"+c.ID+"/send", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Empty(t, env.jobs.Jobs())
}

func TestSendCampaign_QuotaExceeded(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io", "b@acme.io")

	ctx := context.Background()
	items, err := env.store.ListByStatus(ctx, testOrg, c.ID, domain.ItemPending, 0)
	require.NoError(t, err)
	for _, it := range items {
		requireUpdated(t)(env.store.MarkGenerated(ctx, testOrg, it.ID, pipeline.Generated{
			RecipientEmail: "x@acme.io", Subject: "s", HTML: "<p>b</p>", At: time.Now(),
		}))
	}
	env.store.SetStatus(c.ID, domain.CampaignReady)

	w := env.do(t, http.MethodPut, "/quota", map[string]int{"monthly_quota": 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/campaigns/"+c.ID+"/send", nil)
	require.Equal(t, http.StatusPaymentRequired, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeQuotaExceeded, resp.Code)
	details := resp.Details.(map[string]interface{})
	assert.Equal(t, float64(2), details["requested"])
	assert.Equal(t, float64(0), details["remaining"])
	assert.Empty(t, env.jobs.Jobs())
}

func TestSendCampaign_PartialQuota(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io", "b@acme.io", "c@acme.io")

	ctx := context.Background()
	items, err := env.store.ListByStatus(ctx, testOrg, c.ID, domain.ItemPending, 0)
	require.NoError(t, err)
	for _, it := range items {
		requireUpdated(t)(env.store.MarkGenerated(ctx, testOrg, it.ID, pipeline.Generated{
			RecipientEmail: "x@acme.io", Subject: "s", HTML: "<p>b</p>", At: time.Now(),
		}))
	}
	env.store.SetStatus(c.ID, domain.CampaignReady)
	require.Equal(t, http.StatusOK, env.do(t, http.MethodPut, "/quota", map[string]int{"monthly_quota": 2}).Code)

	w := env.do(t, http.MethodPost, "/campaigns/"+c.ID+"/send", nil)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	var plan campaign.SendPlan
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &plan))
	assert.Equal(t, 3, plan.Requested)
	assert.Equal(t, 2, plan.CanSend)
	assert.Equal(t, domain.CampaignSending, plan.Campaign.Status)
}

func TestListCampaignItems_Pagination(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io", "b@acme.io", "c@acme.io")

	w := env.do(t, http.MethodGet, "/campaigns/"+c.ID+"/items?limit=2&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data       []map[string]interface{} `json:"data"`
		Pagination PaginationMeta           `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 1)
	assert.Equal(t, int64(3), resp.Pagination.Total)
	assert.Equal(t, 2, resp.Pagination.TotalPages)
	assert.False(t, resp.Pagination.HasMore)

	for _, q := range []string{"limit=0", "limit=201", "page=-1", "page=abc", "status=bogus"} {
		w := env.do(t, http.MethodGet, "/campaigns/"+c.ID+"/items?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestUpdateAndDeleteCampaign(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io")

	w := env.do(t, http.MethodPut, "/campaigns/"+c.ID, map[string]string{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var got domain.Campaign
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Renamed", got.Name)

	w = env.do(t, http.MethodDelete, "/campaigns/"+c.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, http.MethodGet, "/campaigns/"+c.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuotaEndpoints(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodGet, "/quota", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info domain.QuotaInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, 100, info.Quota)
	assert.Equal(t, 100, info.Remaining)

	w = env.do(t, http.MethodPut, "/quota", map[string]int{"monthly_quota": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/quota/check?count=150", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var check domain.QuotaCheck
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &check))
	assert.False(t, check.Allowed)
	assert.Equal(t, 100, check.CanSend)
}

func TestSuppressionEndpoints(t *testing.T) {
	env := setupTestServer(t)

	w := env.do(t, http.MethodPost, "/suppressions", map[string]string{"email": " Bob@Acme.io ", "type": "bounced"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/suppressions", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodGet, "/suppressions?type=bounced", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data []domain.SuppressionEntry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "bob@acme.io", resp.Data[0].Email)

	w = env.do(t, http.MethodGet, "/suppressions/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var stats suppression.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Total)

	w = env.do(t, http.MethodDelete, "/suppressions/bob@acme.io", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, http.MethodDelete, "/suppressions/bob@acme.io", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUnsubscribe(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io")
	items := env.deliver(t, c.ID)

	tok, err := env.signer.Token(testOrg, items[0].ID)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/unsubscribe/"+tok, nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "unsubscribed")

	got, err := env.suppressions.Suppressed(context.Background(), testOrg, []string{"a@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a@acme.io"}, got)

	// One-click repeat is harmless.
	req = httptest.NewRequest(http.MethodPost, "/unsubscribe/"+tok, nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUnsubscribe_BadToken(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/unsubscribe/forged.token", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	expired := delivery.NewSigner("test-secret", "", time.Hour).
		WithClock(func() time.Time { return time.Now().Add(-2 * time.Hour) })
	tok, err := expired.Token(testOrg, "item-1")
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/unsubscribe/"+tok, nil)
	w = httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusGone, w.Code)
}

func postWebhook(t *testing.T, env *testEnv, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhooks/email-events", strings.NewReader(body))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestEmailEventWebhook(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io", "b@acme.io")
	items := env.deliver(t, c.ID)

	byEmail := map[string]domain.CampaignItem{}
	for _, it := range items {
		byEmail[it.RecipientEmail] = it
	}
	opened := byEmail["a@acme.io"]
	bounced := byEmail["b@acme.io"]

	w := postWebhook(t, env, `{"type":"email.opened","created_at":"2024-03-15T12:00:00Z","data":{"email_id":"`+opened.MessageID+`"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = postWebhook(t, env, `{"type":"email.bounced","data":{"id":"`+bounced.MessageID+`"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	it, err := env.store.GetItem(context.Background(), testOrg, opened.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ItemOpened, it.Status)

	got, err := env.suppressions.Suppressed(context.Background(), testOrg, []string{"a@acme.io", "b@acme.io"})
	require.NoError(t, err)
	assert.Equal(t, []string{"b@acme.io"}, got)

	events := env.store.Events()
	require.Len(t, events, 2)
	assert.Equal(t, time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC), events[0].OccurredAt)
}

func TestEmailEventWebhook_Ignored(t *testing.T) {
	env := setupTestServer(t)

	w := postWebhook(t, env, `{"type":"email.delivery_delayed","data":{"email_id":"m1"}}`)
	assert.Equal(t, http.StatusOK, w.Code)

	w = postWebhook(t, env, `{"type":"email.opened","data":{"email_id":"unknown"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.store.Events())

	w = postWebhook(t, env, `{not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCampaignAnalyticsAndEvents(t *testing.T) {
	env := setupTestServer(t)
	c := env.createCampaign(t, "a@acme.io", "b@acme.io")
	items := env.deliver(t, c.ID)

	for _, it := range items {
		w := postWebhook(t, env, `{"type":"email.delivered","data":{"email_id":"`+it.MessageID+`"}}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}
	w := postWebhook(t, env, `{"type":"email.opened","data":{"email_id":"`+items[0].MessageID+`"}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = env.do(t, http.MethodGet, "/campaigns/"+c.ID+"/analytics", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var a campaign.Analytics
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	assert.Equal(t, 2, a.Sent)
	assert.Equal(t, 100.0, a.DeliveryRate)
	assert.Equal(t, 50.0, a.OpenRate)
	assert.Equal(t, 2, a.Events[domain.EventDelivered].Total)

	w = env.do(t, http.MethodGet, "/campaigns/"+c.ID+"/events?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page struct {
		Data       []domain.EmailEvent `json:"data"`
		Pagination PaginationMeta      `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Len(t, page.Data, 2)
	assert.EqualValues(t, 3, page.Pagination.Total)
	assert.True(t, page.Pagination.HasMore)

	w = env.do(t, http.MethodGet, "/campaigns/not-a-uuid/analytics", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodGet, "/campaigns/00000000-0000-0000-0000-000000000000/events", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealth(t *testing.T) {
	env := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "not configured", status.Checks["database"].Message)
}

func TestReadiness_ReportsSendRate(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	limiter := worker.NewRateLimiter(rdb, "ses", worker.RateLimit{Daily: 2})
	hc := NewHealthChecker(nil, nil).WithSendUsage(limiter)
	router := SetupRoutes(NewHandlers(nil, nil, nil, nil), hc, config.ServerConfig{})

	ready := func() map[string]ComponentCheck {
		req := httptest.NewRequest(http.MethodGet, "/healthz/ready", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		var body struct {
			Status string                    `json:"status"`
			Checks map[string]ComponentCheck `json:"checks"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		return body.Checks
	}

	require.NoError(t, limiter.Wait(context.Background()))
	check := ready()["send_rate"]
	assert.Equal(t, "up", check.Status)
	assert.Equal(t, "1 of 2 sent today", check.Message)

	require.NoError(t, limiter.Wait(context.Background()))
	check = ready()["send_rate"]
	assert.Equal(t, "degraded", check.Status)
	assert.Contains(t, check.Message, "daily send limit reached")
}

func TestSafeErrorMessage(t *testing.T) {
	assert.Equal(t, "A database error occurred", safeErrorMessage(500, assertErr("pq: relation does not exist")))
	assert.Equal(t, "Request timed out", safeErrorMessage(500, assertErr("context deadline exceeded")))
	assert.Equal(t, "bad field", safeErrorMessage(400, assertErr("bad field")))
}

func TestRespondServiceError_NotScheduled(t *testing.T) {
	w := httptest.NewRecorder()
	respondServiceError(w, fmt.Errorf("%w: enqueue campaign/generate-emails: pq: connection refused", campaign.ErrNotScheduled))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, CodeNotScheduled, resp.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
}

type assertErr string

func (e assertErr) Error() string { return string(e) }

// requireUpdated asserts a conditional item write matched.
func requireUpdated(t *testing.T) func(bool, error) {
	return func(ok bool, err error) {
		t.Helper()
		require.NoError(t, err)
		require.True(t, ok)
	}
}
