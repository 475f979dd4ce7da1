package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/notify"
	"github.com/ignite/outreach-pipeline/internal/repository/memory"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/content"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
	"github.com/ignite/outreach-pipeline/internal/service/pipeline"
	"github.com/ignite/outreach-pipeline/internal/service/quota"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

const testOrg = "org-1"

type fakeGenerator struct {
	calls atomic.Int32
	fail  map[string]bool // recipient emails that fail
}

func (g *fakeGenerator) Generate(_ context.Context, req content.Request) (*content.Email, error) {
	g.calls.Add(1)
	if g.fail[req.Recipient.Email] {
		return nil, errors.New("generate email after 3 attempts: model unavailable")
	}
	return &content.Email{
		Subject: "Quick idea for " + req.Recipient.Name,
		Body:    "Hi " + req.Recipient.Name,
		HTML:    "<html><body><p>Hi " + req.Recipient.Name + "</p></body></html>",
	}, nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []delivery.Message
	fail map[string]bool
}

func (s *fakeSender) Send(_ context.Context, msg delivery.Message) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail[msg.To] {
		return "", fmt.Errorf("%w: mailbox unavailable", delivery.ErrRejected)
	}
	s.sent = append(s.sent, msg)
	return fmt.Sprintf("msg-%d", len(s.sent)), nil
}

func (s *fakeSender) messages() []delivery.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]delivery.Message(nil), s.sent...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.StatusEvent
}

func (n *recordingNotifier) CampaignStatusChanged(_ context.Context, e notify.StatusEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	return nil
}

type harness struct {
	store       *memory.Store
	jobs        *memory.JobQueue
	quotaRepo   *memory.QuotaRepo
	suppression *suppression.Service
	generator   *fakeGenerator
	sender      *fakeSender
	notifier    *recordingNotifier
	campaigns   *campaign.Service
	orch        *pipeline.Orchestrator
	now         time.Time
}

func newHarness(t *testing.T, cfg pipeline.Config, businesses ...domain.Business) *harness {
	t.Helper()
	h := &harness{
		store:     memory.NewStore(),
		jobs:      memory.NewJobQueue(),
		quotaRepo: memory.NewQuotaRepo(),
		generator: &fakeGenerator{fail: map[string]bool{}},
		sender:    &fakeSender{fail: map[string]bool{}},
		notifier:  &recordingNotifier{},
		now:       time.Date(2024, time.March, 15, 9, 0, 0, 0, time.UTC),
	}
	h.suppression = suppression.NewService(memory.NewSuppressionRepo())
	ledger := quota.NewService(h.quotaRepo)
	h.campaigns = campaign.NewService(h.store, h.jobs, ledger, h.store)
	h.orch = pipeline.New(pipeline.Deps{
		Campaigns:   h.store,
		Items:       h.store,
		Jobs:        h.jobs,
		Directory:   memory.NewDirectory(businesses...),
		Generator:   h.generator,
		Sender:      h.sender,
		Links:       delivery.NewSigner("test-secret", "https://app.example.com", 0),
		Suppression: h.suppression,
		Quota:       ledger,
		Notifier:    h.notifier,
	}, cfg).WithClock(func() time.Time { return h.now })
	return h
}

func (h *harness) create(t *testing.T, in campaign.CreateInput) *domain.Campaign {
	t.Helper()
	if in.Name == "" {
		in.Name = "Outreach"
	}
	if in.ServiceDescription == "" {
		in.ServiceDescription = "Commercial cleaning"
	}
	c, err := h.campaigns.Create(context.Background(), testOrg, in)
	require.NoError(t, err)
	return c
}

func manual(n int) []campaign.ManualInput {
	out := make([]campaign.ManualInput, n)
	for i := range out {
		out[i] = campaign.ManualInput{Name: fmt.Sprintf("Person %d", i), Email: fmt.Sprintf("person%d@example.com", i)}
	}
	return out
}

func (h *harness) setQuota(used, limit int) {
	h.quotaRepo.Seed(domain.QuotaRecord{
		OrganizationID: testOrg,
		MonthlyQuota:   limit,
		MonthlyUsed:    used,
		ResetAt:        domain.NextQuotaReset(time.Now()),
	})
}

func (h *harness) quotaUsed(t *testing.T) int {
	t.Helper()
	info, err := quota.NewService(h.quotaRepo).GetQuotaInfo(context.Background(), testOrg)
	require.NoError(t, err)
	return info.Used
}

// drain runs queued jobs until none remain, the way a worker would, and
// returns each batch result in order.
func (h *harness) drain(t *testing.T) []*pipeline.BatchResult {
	t.Helper()
	ctx := context.Background()
	var results []*pipeline.BatchResult
	for i := 0; i < 100; i++ {
		jobs, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(24*time.Hour))
		require.NoError(t, err)
		if len(jobs) == 0 {
			return results
		}
		res, err := h.orch.Handle(ctx, jobs[0])
		if err != nil {
			_, ferr := h.jobs.Fail(ctx, jobs[0].ID, err.Error(), time.Now(), true)
			require.NoError(t, ferr)
			results = append(results, nil)
			continue
		}
		require.NoError(t, h.jobs.Complete(ctx, jobs[0].ID))
		results = append(results, res)
	}
	t.Fatal("job queue did not drain")
	return nil
}

func (h *harness) campaign(t *testing.T, id string) *domain.Campaign {
	t.Helper()
	c, err := h.store.Get(context.Background(), testOrg, id)
	require.NoError(t, err)
	return c
}

func (h *harness) items(t *testing.T, id string) []domain.CampaignItem {
	t.Helper()
	items, _, err := h.store.ListItems(context.Background(), testOrg, id, campaign.ItemFilter{})
	require.NoError(t, err)
	return items
}

func TestGenerate_BatchesUntilReady(t *testing.T) {
	h := newHarness(t, pipeline.Config{GenerateBatchSize: 10})
	c := h.create(t, campaign.CreateInput{ManualRecipients: manual(25)})
	_, err := h.campaigns.StartGeneration(context.Background(), testOrg, c.ID)
	require.NoError(t, err)

	results := h.drain(t)
	require.Len(t, results, 3)
	assert.Equal(t, []int{10, 10, 5}, []int{results[0].Processed, results[1].Processed, results[2].Processed})
	assert.True(t, results[0].Continued)
	assert.True(t, results[1].Continued)
	assert.True(t, results[2].Finalized)

	got := h.campaign(t, c.ID)
	assert.Equal(t, domain.CampaignReady, got.Status)
	assert.Equal(t, 25, got.GeneratedCount+got.FailedCount)
	assert.EqualValues(t, 25, h.generator.calls.Load())

	for _, j := range h.jobs.Jobs() {
		assert.Equal(t, domain.JobDone, j.Status)
	}
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, domain.CampaignReady, h.notifier.events[0].Status)
}

func TestGenerate_PerItemFailures(t *testing.T) {
	h := newHarness(t, pipeline.Config{},
		domain.Business{ID: 1, Name: "Acme Plumbing", Email: "info@acme.test", Industry: "Plumbing"},
		domain.Business{ID: 2, Name: "No Inbox LLC"},
	)
	h.generator.fail["broken@example.com"] = true
	c := h.create(t, campaign.CreateInput{
		BusinessIDs:      []int64{1, 2, 3},
		ManualRecipients: []campaign.ManualInput{{Email: "broken@example.com"}},
	})
	_, err := h.campaigns.StartGeneration(context.Background(), testOrg, c.ID)
	require.NoError(t, err)
	h.drain(t)

	got := h.campaign(t, c.ID)
	assert.Equal(t, domain.CampaignReady, got.Status)
	assert.Equal(t, 1, got.GeneratedCount)
	assert.Equal(t, 3, got.FailedCount)

	byEmail := map[string]domain.CampaignItem{}
	var noEmail int
	for _, it := range h.items(t, c.ID) {
		if it.ErrorMessage == pipeline.NoEmailReason {
			noEmail++
			continue
		}
		byEmail[it.RecipientEmail] = it
	}
	assert.Equal(t, 2, noEmail)
	assert.Equal(t, domain.ItemGenerated, byEmail["info@acme.test"].Status)
	assert.Equal(t, "Acme Plumbing", byEmail["info@acme.test"].RecipientName)
	assert.Contains(t, byEmail["info@acme.test"].EmailSubject, "Acme Plumbing")
	assert.Equal(t, domain.ItemFailed, byEmail["broken@example.com"].Status)
	assert.Contains(t, byEmail["broken@example.com"].ErrorMessage, "model unavailable")
}

func TestGenerate_RerunAfterReadyIsNoop(t *testing.T) {
	h := newHarness(t, pipeline.Config{})
	c := h.create(t, campaign.CreateInput{ManualRecipients: manual(3)})
	_, err := h.campaigns.StartGeneration(context.Background(), testOrg, c.ID)
	require.NoError(t, err)
	h.drain(t)
	before := h.items(t, c.ID)

	res, err := h.orch.Handle(context.Background(), domain.NewJob(testOrg, c.ID, domain.PhaseGenerate, 0, h.now))
	require.NoError(t, err)
	assert.True(t, res.Stopped)
	assert.Zero(t, res.Processed)

	assert.Equal(t, domain.CampaignReady, h.campaign(t, c.ID).Status)
	assert.Equal(t, before, h.items(t, c.ID))
	assert.EqualValues(t, 3, h.generator.calls.Load())
}

func (h *harness) generate(t *testing.T, in campaign.CreateInput) *domain.Campaign {
	t.Helper()
	c := h.create(t, in)
	_, err := h.campaigns.StartGeneration(context.Background(), testOrg, c.ID)
	require.NoError(t, err)
	h.drain(t)
	require.Equal(t, domain.CampaignReady, h.campaign(t, c.ID).Status)
	return c
}

func TestSend_EndToEnd(t *testing.T) {
	h := newHarness(t, pipeline.Config{DefaultFromEmail: "outreach@sender.test"})
	h.setQuota(10, 1000)
	ctx := context.Background()
	_, err := h.suppression.Add(ctx, testOrg, suppression.AddInput{Email: "carol@example.com"})
	require.NoError(t, err)

	c := h.generate(t, campaign.CreateInput{
		Tone: domain.ToneFriendly,
		ManualRecipients: []campaign.ManualInput{
			{Name: "Alice", Email: "alice@example.com"},
			{Name: "Bob", Email: "bob@example.com"},
			{Name: "Carol", Email: "carol@example.com"},
		},
	})
	for _, it := range h.items(t, c.ID) {
		assert.Contains(t, []domain.ItemStatus{domain.ItemGenerated, domain.ItemFailed}, it.Status)
	}

	plan, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.CanSend)

	results := h.drain(t)
	require.Len(t, results, 1)
	assert.True(t, results[0].Finalized)
	assert.Equal(t, 2, results[0].Outcomes[pipeline.OutcomeSent])
	assert.Equal(t, 1, results[0].Outcomes[pipeline.OutcomeSuppressed])

	statuses := map[string]domain.ItemStatus{}
	for _, it := range h.items(t, c.ID) {
		statuses[it.RecipientEmail] = it.Status
	}
	assert.Equal(t, domain.ItemSent, statuses["alice@example.com"])
	assert.Equal(t, domain.ItemSent, statuses["bob@example.com"])
	assert.Equal(t, domain.ItemSuppressed, statuses["carol@example.com"])

	got := h.campaign(t, c.ID)
	assert.Equal(t, domain.CampaignSent, got.Status)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.SuppressedCount)
	assert.Equal(t, 12, h.quotaUsed(t))

	msgs := h.sender.messages()
	require.Len(t, msgs, 2)
	for _, m := range msgs {
		assert.NotEqual(t, "carol@example.com", m.To)
		assert.Equal(t, "outreach@sender.test", m.From.Email)
		assert.Equal(t, "Campaign", m.From.Name)
		assert.Equal(t, c.ID, m.Tags["campaign"])
		assert.Contains(t, m.HTML, "https://app.example.com/unsubscribe/")
		assert.True(t, strings.HasSuffix(m.HTML, "</body></html>"))
	}
}

func TestSend_BatchesAreDelayed(t *testing.T) {
	h := newHarness(t, pipeline.Config{SendBatchSize: 10, SendDelay: time.Second, DefaultFromEmail: "a@sender.test"})
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(25)})
	ctx := context.Background()
	_, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)

	jobs, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	res, err := h.orch.Handle(ctx, jobs[0])
	require.NoError(t, err)
	require.NoError(t, h.jobs.Complete(ctx, jobs[0].ID))
	assert.Equal(t, 10, res.Outcomes[pipeline.OutcomeSent])
	assert.Equal(t, 15, res.Remaining)
	assert.True(t, res.Continued)

	next := h.jobs.Pending()
	require.Len(t, next, 1)
	assert.Equal(t, 1, next[0].Seq)
	assert.Equal(t, h.now.Add(time.Second), next[0].RunAt)

	results := h.drain(t)
	require.Len(t, results, 2)
	assert.Equal(t, domain.CampaignSent, h.campaign(t, c.ID).Status)
	assert.Len(t, h.sender.messages(), 25)
	assert.Equal(t, 25, h.quotaUsed(t))
}

func TestSend_ProviderFailureMarksItemFailed(t *testing.T) {
	h := newHarness(t, pipeline.Config{DefaultFromEmail: "a@sender.test"})
	h.sender.fail["person1@example.com"] = true
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(3)})
	_, err := h.campaigns.StartSending(context.Background(), testOrg, c.ID)
	require.NoError(t, err)
	h.drain(t)

	got := h.campaign(t, c.ID)
	assert.Equal(t, domain.CampaignSent, got.Status)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.Equal(t, 2, h.quotaUsed(t))
}

func TestSend_SuppressionWinsOverQuota(t *testing.T) {
	h := newHarness(t, pipeline.Config{DefaultFromEmail: "a@sender.test"})
	ctx := context.Background()
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(2)})
	_, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)

	// Quota runs out and both recipients are suppressed before the batch runs.
	h.setQuota(50, 50)
	for _, m := range manual(2) {
		_, err := h.suppression.Add(ctx, testOrg, suppression.AddInput{Email: m.Email})
		require.NoError(t, err)
	}

	results := h.drain(t)
	require.Len(t, results, 1)
	require.NotNil(t, results[0])
	assert.Equal(t, 2, results[0].Outcomes[pipeline.OutcomeSuppressed])
	assert.Empty(t, h.sender.messages())
	assert.Equal(t, domain.CampaignSent, h.campaign(t, c.ID).Status)
	assert.Equal(t, 50, h.quotaUsed(t))
}

func TestSend_QuotaTruncatesThenStops(t *testing.T) {
	h := newHarness(t, pipeline.Config{SendBatchSize: 10, DefaultFromEmail: "a@sender.test"})
	ctx := context.Background()
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(10)})
	h.setQuota(97, 100)

	plan, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, plan.CanSend)

	jobs, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	res, err := h.orch.Handle(ctx, jobs[0])
	require.NoError(t, err)
	assert.Equal(t, 3, res.Outcomes[pipeline.OutcomeSent])
	assert.Equal(t, 7, res.Remaining)
	assert.True(t, res.Continued)
	assert.Equal(t, 100, h.quotaUsed(t))

	next, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, next, 1)
	_, err = h.orch.Handle(ctx, next[0])
	var qe *quota.ExceededError
	require.True(t, errors.As(err, &qe))
	assert.Equal(t, 7, qe.Requested)

	got := h.campaign(t, c.ID)
	assert.Equal(t, domain.CampaignSending, got.Status)
	assert.Equal(t, 3, got.SentCount)
	assert.Len(t, h.sender.messages(), 3)
}

func TestSend_DuplicateInvocationsSendOnce(t *testing.T) {
	h := newHarness(t, pipeline.Config{SendBatchSize: 10, DefaultFromEmail: "a@sender.test"})
	ctx := context.Background()
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(10)})
	_, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)

	job := domain.NewJob(testOrg, c.ID, domain.PhaseSend, 0, h.now)
	var wg sync.WaitGroup
	var finalized atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.orch.Handle(ctx, job)
			if assert.NoError(t, err) && res.Finalized {
				finalized.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Len(t, h.sender.messages(), 10)
	assert.EqualValues(t, 1, finalized.Load())
	assert.Equal(t, 10, h.quotaUsed(t))
	assert.Equal(t, domain.CampaignSent, h.campaign(t, c.ID).Status)
}

type cancellingSender struct {
	inner  *fakeSender
	cancel func()
	once   sync.Once
}

func (s *cancellingSender) Send(ctx context.Context, msg delivery.Message) (string, error) {
	s.once.Do(s.cancel)
	return s.inner.Send(ctx, msg)
}

func TestSend_StatusChangeMidBatchStopsScheduling(t *testing.T) {
	h := newHarness(t, pipeline.Config{SendBatchSize: 5, DefaultFromEmail: "a@sender.test"})
	ctx := context.Background()
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(12)})
	_, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)

	// Rebuild the orchestrator with a sender that moves the campaign out of
	// sending as soon as the first message goes out.
	sender := &cancellingSender{inner: h.sender, cancel: func() { h.store.SetStatus(c.ID, domain.CampaignReady) }}
	orch := pipeline.New(pipeline.Deps{
		Campaigns:   h.store,
		Items:       h.store,
		Jobs:        h.jobs,
		Generator:   h.generator,
		Sender:      sender,
		Links:       delivery.NewSigner("s", "https://app.example.com", 0),
		Suppression: h.suppression,
		Quota:       quota.NewService(h.quotaRepo),
	}, pipeline.Config{SendBatchSize: 5, DefaultFromEmail: "a@sender.test"})

	jobs, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	res, err := orch.Handle(ctx, jobs[0])
	require.NoError(t, err)

	assert.True(t, res.Stopped)
	assert.False(t, res.Continued)
	assert.Equal(t, 5, res.Outcomes[pipeline.OutcomeSent])
	assert.Empty(t, h.jobs.Pending())
	assert.Equal(t, 5, h.campaign(t, c.ID).SentCount)
}

func TestHandle_UnknownPhase(t *testing.T) {
	h := newHarness(t, pipeline.Config{})
	_, err := h.orch.Handle(context.Background(), domain.Job{Phase: "archive"})
	assert.ErrorIs(t, err, pipeline.ErrUnknownPhase)
}

// withSender rebuilds the harness orchestrator around a different sender.
func (h *harness) withSender(s delivery.Adapter, cfg pipeline.Config) *pipeline.Orchestrator {
	return pipeline.New(pipeline.Deps{
		Campaigns:   h.store,
		Items:       h.store,
		Jobs:        h.jobs,
		Generator:   h.generator,
		Sender:      s,
		Links:       delivery.NewSigner("s", "https://app.example.com", 0),
		Suppression: h.suppression,
		Quota:       quota.NewService(h.quotaRepo),
	}, cfg).WithClock(func() time.Time { return h.now })
}

func TestSend_RateLimitedItemsReturnToGenerated(t *testing.T) {
	cfg := pipeline.Config{SendBatchSize: 10, SendDelay: time.Second, DefaultFromEmail: "a@sender.test"}
	h := newHarness(t, cfg)
	ctx := context.Background()
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(3)})
	_, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)

	limited := delivery.AdapterFunc(func(ctx context.Context, msg delivery.Message) (string, error) {
		if msg.To == "person0@example.com" {
			return h.sender.Send(ctx, msg)
		}
		return "", &delivery.RateLimitedError{RetryAfter: 2 * time.Hour}
	})
	orch := h.withSender(limited, cfg)

	jobs, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	res, err := orch.Handle(ctx, jobs[0])
	require.NoError(t, err)
	require.NoError(t, h.jobs.Complete(ctx, jobs[0].ID))

	assert.Equal(t, 1, res.Outcomes[pipeline.OutcomeSent])
	assert.Zero(t, res.Outcomes[pipeline.OutcomeFailed])
	assert.Equal(t, 2, res.Deferred)
	assert.Equal(t, 2*time.Hour, res.RetryAfter)
	assert.Equal(t, 2, res.Remaining)
	assert.True(t, res.Continued)
	assert.Equal(t, 1, h.quotaUsed(t))

	for _, it := range h.items(t, c.ID) {
		if it.RecipientEmail == "person0@example.com" {
			assert.Equal(t, domain.ItemSent, it.Status)
			continue
		}
		assert.Equal(t, domain.ItemGenerated, it.Status, it.RecipientEmail)
		assert.Empty(t, it.ErrorMessage)
	}

	next := h.jobs.Pending()
	require.Len(t, next, 1)
	assert.Equal(t, h.now.Add(2*time.Hour), next[0].RunAt)

	// Once the window reopens the deferred items go out normally.
	h.drain(t)
	assert.Equal(t, domain.CampaignSent, h.campaign(t, c.ID).Status)
	assert.Len(t, h.sender.messages(), 3)
	assert.Equal(t, 3, h.quotaUsed(t))
}

func TestSend_ItemFailedDuringSendIsNotCounted(t *testing.T) {
	cfg := pipeline.Config{SendBatchSize: 10, DefaultFromEmail: "a@sender.test"}
	h := newHarness(t, cfg)
	ctx := context.Background()
	c := h.generate(t, campaign.CreateInput{ManualRecipients: manual(1)})
	_, err := h.campaigns.StartSending(ctx, testOrg, c.ID)
	require.NoError(t, err)

	// Recovery fails the in-flight item while the provider call is slow.
	slow := delivery.AdapterFunc(func(ctx context.Context, msg delivery.Message) (string, error) {
		_, err := h.store.FailStaleSending(ctx, time.Now().Add(time.Hour), "stuck in sending")
		assert.NoError(t, err)
		return "msg-1", nil
	})
	orch := h.withSender(slow, cfg)

	jobs, err := h.jobs.Claim(ctx, "test", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)
	res, err := orch.Handle(ctx, jobs[0])
	require.NoError(t, err)

	assert.Zero(t, res.Outcomes[pipeline.OutcomeSent])
	assert.Zero(t, res.Outcomes[pipeline.OutcomeFailed])
	assert.Zero(t, h.quotaUsed(t))
	got := h.campaign(t, c.ID)
	assert.Zero(t, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
	assert.Equal(t, domain.ItemFailed, h.items(t, c.ID)[0].Status)
}
