package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/campaign"
	"github.com/ignite/outreach-pipeline/internal/service/pipeline"
)

// Store holds campaigns, their items, and delivery events. It implements
// campaign.Repository, campaign.EventStore, pipeline.CampaignStore and
// pipeline.ItemStore.
type Store struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	items     map[string]*domain.CampaignItem
	order     []string // item ids in insertion order
	events    []domain.EmailEvent
	now       func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		campaigns: make(map[string]*domain.Campaign),
		items:     make(map[string]*domain.CampaignItem),
		now:       time.Now,
	}
}

// ---- campaigns ----

func (s *Store) Create(_ context.Context, c *domain.Campaign, items []domain.CampaignItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.campaigns[cp.ID] = &cp
	for i := range items {
		it := items[i]
		s.items[it.ID] = &it
		s.order = append(s.order, it.ID)
	}
	return nil
}

func (s *Store) Get(_ context.Context, orgID, id string) (*domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *Store) List(_ context.Context, orgID string, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if c.OrganizationID != orgID {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		if f.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	return page(out, f.Limit, f.Offset), total, nil
}

func (s *Store) Update(_ context.Context, orgID, id string, u campaign.UpdateFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft {
		return campaign.ErrInvalidTransition
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Subject != nil {
		c.Subject = *u.Subject
	}
	if u.SenderName != nil {
		c.SenderName = *u.SenderName
	}
	if u.SenderEmail != nil {
		c.SenderEmail = *u.SenderEmail
	}
	if u.ServiceDescription != nil {
		c.ServiceDescription = *u.ServiceDescription
	}
	if u.Tone != nil {
		c.Tone = *u.Tone
	}
	c.UpdatedAt = s.now()
	return nil
}

func (s *Store) Delete(_ context.Context, orgID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignDraft {
		return campaign.ErrInvalidTransition
	}
	delete(s.campaigns, id)
	kept := s.order[:0]
	for _, itemID := range s.order {
		if s.items[itemID].CampaignID == id {
			delete(s.items, itemID)
			continue
		}
		kept = append(kept, itemID)
	}
	s.order = kept
	return nil
}

func (s *Store) TransitionStatus(_ context.Context, orgID, id string, from, to domain.CampaignStatus) error {
	if !from.CanTransition(to) {
		return fmt.Errorf("%w: %s to %s", campaign.ErrInvalidTransition, from, to)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return campaign.ErrNotFound
	}
	if c.Status != from {
		return campaign.ErrInvalidTransition
	}
	c.Status = to
	c.UpdatedAt = s.now()
	return nil
}

// ListInFlight returns generating and sending campaigns last updated
// before updatedBefore.
func (s *Store) ListInFlight(_ context.Context, updatedBefore time.Time) ([]domain.Campaign, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Campaign
	for _, c := range s.campaigns {
		if _, ok := c.Status.Phase(); ok && c.UpdatedAt.Before(updatedBefore) {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].UpdatedAt.Before(out[b].UpdatedAt) })
	return out, nil
}

// SetStatus overwrites a campaign's status without a guard. Tests use it to
// simulate an out-of-band status change.
func (s *Store) SetStatus(id string, status domain.CampaignStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.campaigns[id]; ok {
		c.Status = status
	}
}

func (s *Store) RefreshCounters(_ context.Context, orgID, id string) (*domain.CampaignCounters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.campaigns[id]
	if !ok || c.OrganizationID != orgID {
		return nil, campaign.ErrNotFound
	}
	var n domain.CampaignCounters
	for _, itemID := range s.order {
		it := s.items[itemID]
		if it.CampaignID != id {
			continue
		}
		n.Total++
		if it.GeneratedAt != nil {
			n.Generated++
		}
		switch {
		case it.Status.Delivered():
			n.Sent++
		case it.Status == domain.ItemFailed:
			n.Failed++
		case it.Status == domain.ItemSuppressed:
			n.Suppressed++
		}
	}
	c.TotalRecipients = n.Total
	c.GeneratedCount = n.Generated
	c.SentCount = n.Sent
	c.FailedCount = n.Failed
	c.SuppressedCount = n.Suppressed
	c.UpdatedAt = s.now()
	return &n, nil
}

// ---- items ----

func (s *Store) campaignItems(orgID, campaignID string, match func(*domain.CampaignItem) bool) []domain.CampaignItem {
	var out []domain.CampaignItem
	for _, itemID := range s.order {
		it := s.items[itemID]
		if it.CampaignID != campaignID || it.OrganizationID != orgID {
			continue
		}
		if match != nil && !match(it) {
			continue
		}
		out = append(out, *it)
	}
	return out
}

func (s *Store) ListItems(_ context.Context, orgID, campaignID string, f campaign.ItemFilter) ([]domain.CampaignItem, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.campaignItems(orgID, campaignID, func(it *domain.CampaignItem) bool {
		return f.Status == "" || string(it.Status) == f.Status
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (s *Store) GetItem(_ context.Context, orgID, itemID string) (*domain.CampaignItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok || it.OrganizationID != orgID {
		return nil, campaign.ErrItemNotFound
	}
	cp := *it
	return &cp, nil
}

func (s *Store) CountItems(_ context.Context, orgID, campaignID string) (map[domain.ItemStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.ItemStatus]int)
	for _, it := range s.campaignItems(orgID, campaignID, nil) {
		counts[it.Status]++
	}
	return counts, nil
}

func (s *Store) FindItemByMessageID(_ context.Context, messageID string) (*domain.CampaignItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, itemID := range s.order {
		if it := s.items[itemID]; it.MessageID == messageID && messageID != "" {
			cp := *it
			return &cp, nil
		}
	}
	return nil, campaign.ErrItemNotFound
}

func (s *Store) AdvanceEngagement(_ context.Context, orgID, itemID string, to domain.ItemStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[itemID]
	if !ok || it.OrganizationID != orgID {
		return false, campaign.ErrItemNotFound
	}
	allowed := it.Status == domain.ItemSent ||
		(to == domain.ItemClicked && it.Status == domain.ItemOpened)
	if !allowed {
		return false, nil
	}
	it.Status = to
	it.UpdatedAt = s.now()
	return true, nil
}

func (s *Store) ListByStatus(_ context.Context, orgID, campaignID string, status domain.ItemStatus, limit int) ([]domain.CampaignItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.campaignItems(orgID, campaignID, func(it *domain.CampaignItem) bool { return it.Status == status })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context, orgID, campaignID string, status domain.ItemStatus) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.campaignItems(orgID, campaignID, func(it *domain.CampaignItem) bool { return it.Status == status })), nil
}

// update applies fn to the item when its status is one of from.
func (s *Store) update(orgID, itemID string, fn func(*domain.CampaignItem), from ...domain.ItemStatus) bool {
	it, ok := s.items[itemID]
	if !ok || it.OrganizationID != orgID {
		return false
	}
	for _, st := range from {
		if it.Status == st {
			fn(it)
			it.UpdatedAt = s.now()
			return true
		}
	}
	return false
}

func (s *Store) MarkGenerated(_ context.Context, orgID, itemID string, g pipeline.Generated) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.update(orgID, itemID, func(it *domain.CampaignItem) {
		at := g.At
		it.Status = domain.ItemGenerated
		it.RecipientName = g.RecipientName
		it.RecipientEmail = g.RecipientEmail
		it.EmailSubject = g.Subject
		it.EmailContent = g.HTML
		it.GeneratedAt = &at
		it.ErrorMessage = ""
	}, domain.ItemPending)
	return ok, nil
}

func (s *Store) MarkFailed(_ context.Context, orgID, itemID, reason string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.update(orgID, itemID, func(it *domain.CampaignItem) {
		it.Status = domain.ItemFailed
		it.ErrorMessage = reason
	}, domain.ItemPending, domain.ItemGenerated, domain.ItemSending)
	return ok, nil
}

func (s *Store) ClaimForSend(_ context.Context, orgID string, itemIDs []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var claimed []string
	for _, id := range itemIDs {
		if s.update(orgID, id, func(it *domain.CampaignItem) { it.Status = domain.ItemSending }, domain.ItemGenerated) {
			claimed = append(claimed, id)
		}
	}
	return claimed, nil
}

func (s *Store) MarkSent(_ context.Context, orgID, itemID, messageID string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.update(orgID, itemID, func(it *domain.CampaignItem) {
		it.Status = domain.ItemSent
		it.MessageID = messageID
		it.SentAt = &at
	}, domain.ItemSending)
	return ok, nil
}

func (s *Store) MarkSuppressed(_ context.Context, orgID, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ok := s.update(orgID, itemID, func(it *domain.CampaignItem) {
		it.Status = domain.ItemSuppressed
	}, domain.ItemGenerated, domain.ItemSending)
	return ok, nil
}

// ReleaseClaim returns a sending item to generated.
func (s *Store) ReleaseClaim(_ context.Context, orgID, itemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.update(orgID, itemID, func(it *domain.CampaignItem) {
		it.Status = domain.ItemGenerated
	}, domain.ItemSending), nil
}

// FailStaleSending fails items stuck in sending since before staleBefore.
func (s *Store) FailStaleSending(_ context.Context, staleBefore time.Time, reason string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, it := range s.items {
		if it.Status == domain.ItemSending && it.UpdatedAt.Before(staleBefore) {
			it.Status = domain.ItemFailed
			it.ErrorMessage = reason
			it.UpdatedAt = s.now()
			n++
		}
	}
	return n, nil
}

// ---- events ----

func (s *Store) Append(_ context.Context, e *domain.EmailEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *e)
	return nil
}

// Events returns a copy of every appended event.
func (s *Store) Events() []domain.EmailEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.EmailEvent(nil), s.events...)
}

// ListEvents returns the campaign's events, newest first.
func (s *Store) ListEvents(_ context.Context, orgID, campaignID string, limit, offset int) ([]domain.EmailEvent, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.EmailEvent
	for _, e := range s.events {
		if e.OrganizationID == orgID && e.CampaignID == campaignID {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return page(out, limit, offset), len(out), nil
}

func (s *Store) CountEvents(_ context.Context, orgID, campaignID string) (map[domain.EmailEventType]campaign.EventCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[domain.EmailEventType]campaign.EventCount)
	seen := make(map[domain.EmailEventType]map[string]bool)
	for _, e := range s.events {
		if e.OrganizationID != orgID || e.CampaignID != campaignID {
			continue
		}
		c := counts[e.Type]
		c.Total++
		if seen[e.Type] == nil {
			seen[e.Type] = make(map[string]bool)
		}
		if !seen[e.Type][e.ItemID] {
			seen[e.Type][e.ItemID] = true
			c.Recipients++
		}
		counts[e.Type] = c
	}
	return counts, nil
}

func page[T any](in []T, limit, offset int) []T {
	if offset >= len(in) {
		return nil
	}
	end := len(in)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return in[offset:end]
}
