package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/content"
)

// NoEmailReason is the failure recorded on items whose recipient has no
// resolvable address.
const NoEmailReason = "No email address found for this business"

// Generation outcomes.
const (
	OutcomeGenerated = "generated"
	OutcomeFailed    = "failed"
)

// GenerateBatch writes content for up to GenerateBatchSize pending items of
// a generating campaign. Model and parse failures are recorded on the item;
// only store failures are returned.
func (o *Orchestrator) GenerateBatch(ctx context.Context, orgID, campaignID string, seq int) (*BatchResult, error) {
	pl := o.generatePlan()
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

	items, err := o.deps.Items.ListByStatus(ctx, orgID, campaignID, domain.ItemPending, o.cfg.GenerateBatchSize)
	if err != nil {
		return nil, fmt.Errorf("load pending items: %w", err)
	}
	if len(items) == 0 {
		return o.finalize(ctx, pl, c, res)
	}

	businesses, err := o.lookupBusinesses(ctx, items)
	if err != nil {
		return nil, err
	}

	outcomes := make([]string, len(items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(items))
	for i := range items {
		i := i
		g.Go(func() error {
			oc, err := o.generateItem(gctx, c, items[i], businesses)
			outcomes[i] = oc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	record(pl, res, outcomes, start)

	o.log.Info("generation batch complete",
		"campaign_id", campaignID, "seq", seq,
		"generated", res.Outcomes[OutcomeGenerated], "failed", res.Outcomes[OutcomeFailed])
	return o.advance(ctx, pl, c, res)
}

func (o *Orchestrator) lookupBusinesses(ctx context.Context, items []domain.CampaignItem) (map[int64]domain.Business, error) {
	var ids []int64
	for _, it := range items {
		if r, ok := it.Recipient.(domain.DirectoryRecipient); ok {
			ids = append(ids, r.BusinessID)
		}
	}
	if len(ids) == 0 || o.deps.Directory == nil {
		return map[int64]domain.Business{}, nil
	}
	businesses, err := o.deps.Directory.Businesses(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load businesses: %w", err)
	}
	return businesses, nil
}

func resolve(item domain.CampaignItem, businesses map[int64]domain.Business) domain.ResolvedRecipient {
	var biz *domain.Business
	if r, ok := item.Recipient.(domain.DirectoryRecipient); ok {
		if b, found := businesses[r.BusinessID]; found {
			biz = &b
		}
	}
	return domain.Resolve(item.Recipient, biz)
}

func (o *Orchestrator) generateItem(ctx context.Context, c *domain.Campaign, item domain.CampaignItem, businesses map[int64]domain.Business) (string, error) {
	rcpt := resolve(item, businesses)
	if !rcpt.HasEmail() {
		return o.failItem(ctx, c, item, NoEmailReason)
	}

	senderName := c.SenderName
	if senderName == "" {
		senderName = c.Name
	}
	email, genErr := o.deps.Generator.Generate(ctx, content.Request{
		Recipient:          rcpt,
		ServiceDescription: c.ServiceDescription,
		Tone:               c.Tone,
		SenderName:         senderName,
	})
	if genErr != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		o.log.Warn("email generation failed", "campaign_id", c.ID, "item_id", item.ID, "error", genErr.Error())
		return o.failItem(ctx, c, item, genErr.Error())
	}

	ok, err := o.deps.Items.MarkGenerated(ctx, c.OrganizationID, item.ID, Generated{
		RecipientName:  rcpt.Name,
		RecipientEmail: rcpt.Email,
		Subject:        email.Subject,
		HTML:           email.HTML,
		At:             o.now().UTC(),
	})
	if err != nil {
		return "", fmt.Errorf("store generated item %s: %w", item.ID, err)
	}
	if !ok {
		return "", nil
	}
	return OutcomeGenerated, nil
}

// failItem records a failure; an item another writer already settled is not
// counted again.
func (o *Orchestrator) failItem(ctx context.Context, c *domain.Campaign, item domain.CampaignItem, reason string) (string, error) {
	ok, err := o.deps.Items.MarkFailed(ctx, c.OrganizationID, item.ID, reason)
	if err != nil {
		return "", fmt.Errorf("mark item %s failed: %w", item.ID, err)
	}
	if !ok {
		return "", nil
	}
	return OutcomeFailed, nil
}
