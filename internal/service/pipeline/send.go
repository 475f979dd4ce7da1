package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/delivery"
)

// Send outcomes.
const (
	OutcomeSent       = string(domain.OutcomeSent)
	OutcomeSuppressed = string(domain.OutcomeSuppressed)
)

// SendBatch delivers up to SendBatchSize generated items of a sending
// campaign. Suppressed recipients are settled before quota is consulted and
// never reach the provider. When the organization has no quota left the
// batch fails with a *quota.ExceededError; when quota covers only part of
// the batch the rest stays generated for a later batch.
func (o *Orchestrator) SendBatch(ctx context.Context, orgID, campaignID string, seq int) (*BatchResult, error) {
	pl := o.sendPlan()
	start := time.Now()
	res := newResult(pl, campaignID, seq)

	c, ok, err := o.load(ctx, pl, orgID, campaignID)
	if err != nil {
		return nil, err
	}
	if !ok {
		res.Stopped = true
		return res, nil
	}

	items, err := o.deps.Items.ListByStatus(ctx, orgID, campaignID, domain.ItemGenerated, o.cfg.SendBatchSize)
	if err != nil {
		return nil, fmt.Errorf("load generated items: %w", err)
	}
	if len(items) == 0 {
		return o.finalize(ctx, pl, c, res)
	}

	outcomes := make([]string, 0, len(items))
	sendable, settled, err := o.settleUnsendable(ctx, c, items)
	if err != nil {
		return nil, err
	}
	outcomes = append(outcomes, settled...)

	if len(sendable) > 0 {
		canSend, err := o.deps.Quota.Admit(ctx, orgID, len(sendable))
		if err != nil {
			record(pl, res, outcomes, start)
			if _, cerr := o.deps.Campaigns.RefreshCounters(ctx, orgID, campaignID); cerr != nil {
				o.log.Warn("refresh counters failed", "campaign_id", campaignID, "error", cerr.Error())
			}
			return nil, err
		}
		if canSend < len(sendable) {
			o.log.Warn("quota limits send batch", "campaign_id", campaignID, "requested", len(sendable), "can_send", canSend)
			sendable = sendable[:canSend]
		}
	}

	d, err := o.deliver(ctx, c, sendable)
	if err != nil {
		return nil, err
	}
	outcomes = append(outcomes, d.outcomes...)
	record(pl, res, outcomes, start)
	res.Deferred = d.deferred
	res.RetryAfter = d.retryAfter
	sent := res.Outcomes[OutcomeSent]

	if err := o.deps.Quota.IncrementUsage(ctx, orgID, sent); err != nil {
		return nil, fmt.Errorf("record quota usage: %w", err)
	}
	o.warnIfNearQuota(ctx, orgID)

	o.log.Info("send batch complete",
		"campaign_id", campaignID, "seq", seq,
		"sent", res.Outcomes[OutcomeSent],
		"suppressed", res.Outcomes[OutcomeSuppressed],
		"failed", res.Outcomes[OutcomeFailed],
		"deferred", res.Deferred)
	return o.advance(ctx, pl, c, res)
}

// settleUnsendable fails items without an address and suppresses listed
// recipients, using one suppression lookup for the whole batch. It returns
// the items still eligible for delivery.
func (o *Orchestrator) settleUnsendable(ctx context.Context, c *domain.Campaign, items []domain.CampaignItem) ([]domain.CampaignItem, []string, error) {
	emails := make([]string, 0, len(items))
	for _, it := range items {
		if it.RecipientEmail != "" {
			emails = append(emails, it.RecipientEmail)
		}
	}
	suppressed, err := o.deps.Suppression.IsSuppressed(ctx, c.OrganizationID, emails)
	if err != nil {
		return nil, nil, fmt.Errorf("check suppression: %w", err)
	}

	var sendable []domain.CampaignItem
	var outcomes []string
	for _, it := range items {
		email := domain.NormalizeEmail(it.RecipientEmail)
		switch {
		case email == "":
			ok, err := o.deps.Items.MarkFailed(ctx, c.OrganizationID, it.ID, NoEmailReason)
			if err != nil {
				return nil, nil, fmt.Errorf("mark item %s failed: %w", it.ID, err)
			}
			if ok {
				outcomes = append(outcomes, OutcomeFailed)
			}
		case suppressed[email]:
			ok, err := o.deps.Items.MarkSuppressed(ctx, c.OrganizationID, it.ID)
			if err != nil {
				return nil, nil, fmt.Errorf("mark item %s suppressed: %w", it.ID, err)
			}
			if ok {
				outcomes = append(outcomes, OutcomeSuppressed)
			}
		default:
			sendable = append(sendable, it)
		}
	}
	return sendable, outcomes, nil
}

// sendResult is what one batch's sends produced.
type sendResult struct {
	outcomes   []string
	deferred   int
	retryAfter time.Duration
}

// deliver claims the items and sends each claimed one concurrently. Only
// items this invocation claimed are sent, so a concurrent or repeated
// invocation cannot deliver the same item twice. Items a rate limiter
// turned away are released back to generated for a later batch.
func (o *Orchestrator) deliver(ctx context.Context, c *domain.Campaign, items []domain.CampaignItem) (*sendResult, error) {
	d := &sendResult{}
	if len(items) == 0 {
		return d, nil
	}
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	claimed, err := o.deps.Items.ClaimForSend(ctx, c.OrganizationID, ids)
	if err != nil {
		return nil, fmt.Errorf("claim items: %w", err)
	}
	isClaimed := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		isClaimed[id] = true
	}

	outcomes := make([]string, len(items))
	waits := make([]time.Duration, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(items))
	for i := range items {
		if !isClaimed[items[i].ID] {
			continue
		}
		i := i
		g.Go(func() error {
			oc, wait, err := o.sendItem(gctx, c, items[i])
			outcomes[i] = oc
			waits[i] = wait
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.outcomes = outcomes
	for _, w := range waits {
		if w > 0 {
			d.deferred++
			if w > d.retryAfter {
				d.retryAfter = w
			}
		}
	}
	return d, nil
}

// sendItem sends one claimed item. It returns the recorded outcome, or a
// positive retry delay when a rate limiter deferred the send. An empty
// outcome means the item changed state underneath this send.
func (o *Orchestrator) sendItem(ctx context.Context, c *domain.Campaign, item domain.CampaignItem) (string, time.Duration, error) {
	fail := func(reason string) (string, time.Duration, error) {
		o.log.Warn("email send failed", "campaign_id", c.ID, "item_id", item.ID, "error", reason)
		ok, err := o.deps.Items.MarkFailed(ctx, c.OrganizationID, item.ID, reason)
		if err != nil {
			return "", 0, fmt.Errorf("mark item %s failed: %w", item.ID, err)
		}
		if !ok {
			return "", 0, nil
		}
		return OutcomeFailed, 0, nil
	}

	link, err := o.deps.Links.URL(c.OrganizationID, item.ID)
	if err != nil {
		return fail(err.Error())
	}

	msg := delivery.Message{
		From:    o.from(c),
		To:      item.RecipientEmail,
		Subject: item.EmailSubject,
		HTML:    delivery.AddUnsubscribeFooter(item.EmailContent, link),
		Tags: map[string]string{
			"campaign":     c.ID,
			"organization": c.OrganizationID,
		},
	}
	if msg.Subject == "" {
		msg.Subject = c.Subject
	}
	if err := msg.Validate(); err != nil {
		return fail(err.Error())
	}

	messageID, err := o.deps.Sender.Send(ctx, msg)
	var limited *delivery.RateLimitedError
	if errors.As(err, &limited) {
		if _, rerr := o.deps.Items.ReleaseClaim(ctx, c.OrganizationID, item.ID); rerr != nil {
			return "", 0, fmt.Errorf("release item %s: %w", item.ID, rerr)
		}
		return "", limited.RetryAfter, nil
	}
	if err != nil {
		return fail(err.Error())
	}
	ok, err := o.deps.Items.MarkSent(ctx, c.OrganizationID, item.ID, messageID, o.now().UTC())
	if err != nil {
		return "", 0, fmt.Errorf("store sent item %s: %w", item.ID, err)
	}
	if !ok {
		o.log.Warn("item left sending before the send was recorded",
			"campaign_id", c.ID, "item_id", item.ID, "message_id", messageID)
		return "", 0, nil
	}
	return OutcomeSent, 0, nil
}

func (o *Orchestrator) from(c *domain.Campaign) delivery.Address {
	addr := delivery.Address{Name: c.SenderName, Email: c.SenderEmail}
	if addr.Name == "" {
		addr.Name = o.cfg.DefaultFromName
	}
	if addr.Email == "" {
		addr.Email = o.cfg.DefaultFromEmail
	}
	return addr
}

func (o *Orchestrator) warnIfNearQuota(ctx context.Context, orgID string) {
	warn, info, err := o.deps.Quota.ShouldWarn(ctx, orgID)
	if err != nil {
		o.log.Warn("quota warning check failed", "org_id", orgID, "error", err.Error())
		return
	}
	if warn {
		o.log.Warn("organization approaching monthly quota",
			"org_id", orgID, "used", info.Used, "quota", info.Quota, "reset_date", info.ResetDate.Format(time.RFC3339))
	}
}
