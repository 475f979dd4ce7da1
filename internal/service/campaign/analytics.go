package campaign

import (
	"context"
	"fmt"
	"math"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// Default and maximum page size for event listings.
const (
	DefaultEventLimit = 100
	MaxEventLimit     = 500
)

// Analytics is a campaign's engagement rollup. Rates are percentages of
// sent items, rounded to two decimals, and count each recipient once.
type Analytics struct {
	CampaignID    string                               `json:"campaign_id"`
	Sent          int                                  `json:"sent"`
	Events        map[domain.EmailEventType]EventCount `json:"events"`
	DeliveryRate  float64                              `json:"delivery_rate"`
	OpenRate      float64                              `json:"open_rate"`
	ClickRate     float64                              `json:"click_rate"`
	BounceRate    float64                              `json:"bounce_rate"`
	ComplaintRate float64                              `json:"complaint_rate"`
}

// Analytics rolls up a campaign's delivery events against its sent items.
func (s *Service) Analytics(ctx context.Context, orgID, id string) (*Analytics, error) {
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	counts, err := s.repo.CountItems(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	events, err := s.events.CountEvents(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("count events: %w", err)
	}

	a := &Analytics{CampaignID: id, Events: events}
	for st, n := range counts {
		if st.Delivered() {
			a.Sent += n
		}
	}
	rate := func(t domain.EmailEventType) float64 {
		if a.Sent == 0 {
			return 0
		}
		return math.Round(float64(events[t].Recipients)/float64(a.Sent)*10000) / 100
	}
	a.DeliveryRate = rate(domain.EventDelivered)
	a.OpenRate = rate(domain.EventOpened)
	a.ClickRate = rate(domain.EventClicked)
	a.BounceRate = rate(domain.EventBounced)
	a.ComplaintRate = rate(domain.EventComplained)
	return a, nil
}

// ListEvents returns a page of the campaign's delivery events, newest first.
func (s *Service) ListEvents(ctx context.Context, orgID, id string, limit, offset int) ([]domain.EmailEvent, int, error) {
	if _, err := s.repo.Get(ctx, orgID, id); err != nil {
		return nil, 0, err
	}
	switch {
	case limit <= 0:
		limit = DefaultEventLimit
	case limit > MaxEventLimit:
		limit = MaxEventLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.events.ListEvents(ctx, orgID, id, limit, offset)
}
