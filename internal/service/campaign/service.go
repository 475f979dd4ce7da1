package campaign

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/httpretry"
)

// Service implements campaign business logic. It coordinates between the
// repository, the job queue, and the quota ledger. All public methods are
// safe for concurrent use if the underlying dependencies are.
type Service struct {
	repo           Repository
	jobs           JobQueue
	quota          QuotaChecker
	events         EventStore
	validate       *validator.Validate
	now            func() time.Time
	enqueueBackoff httpretry.Backoff
}

// enqueueAttempts bounds how often starting a phase tries to queue its first
// batch.
const enqueueAttempts = 3

// NewService creates a campaign service.
func NewService(repo Repository, jobs JobQueue, quota QuotaChecker, events EventStore) *Service {
	return &Service{
		repo:           repo,
		jobs:           jobs,
		quota:          quota,
		events:         events,
		validate:       validator.New(),
		now:            time.Now,
		enqueueBackoff: httpretry.Backoff{Base: 100 * time.Millisecond, Max: time.Second},
	}
}

// Get returns a single campaign.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	return s.repo.Get(ctx, orgID, id)
}

// List returns campaigns matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.Campaign, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// ListItems returns a page of the campaign's items.
func (s *Service) ListItems(ctx context.Context, orgID, campaignID string, f ItemFilter) ([]domain.CampaignItem, int, error) {
	if _, err := s.repo.Get(ctx, orgID, campaignID); err != nil {
		return nil, 0, err
	}
	if f.Status != "" && !domain.ItemStatus(f.Status).Valid() {
		return nil, 0, fmt.Errorf("%w: unknown item status %q", ErrInvalidInput, f.Status)
	}
	return s.repo.ListItems(ctx, orgID, campaignID, f)
}

// GetItem returns one item.
func (s *Service) GetItem(ctx context.Context, orgID, itemID string) (*domain.CampaignItem, error) {
	return s.repo.GetItem(ctx, orgID, itemID)
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	Name               string        `json:"name" validate:"required,max=200"`
	Subject            string        `json:"subject" validate:"max=200"`
	SenderName         string        `json:"sender_name" validate:"max=100"`
	SenderEmail        string        `json:"sender_email" validate:"omitempty,email"`
	ServiceDescription string        `json:"service_description" validate:"required,max=4000"`
	Tone               domain.Tone   `json:"tone"`
	BusinessIDs        []int64       `json:"business_ids" validate:"dive,gt=0"`
	ManualRecipients   []ManualInput `json:"manual_recipients" validate:"dive"`
}

// ManualInput is a recipient entered by hand.
type ManualInput struct {
	Name  string `json:"name" validate:"max=200"`
	Email string `json:"email" validate:"required,email"`
}

// Create validates and persists a new draft campaign with one pending item
// per distinct recipient.
func (s *Service) Create(ctx context.Context, orgID string, input CreateInput) (*domain.Campaign, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidInput)
	}
	if strings.TrimSpace(input.ServiceDescription) == "" {
		return nil, fmt.Errorf("%w: service description is required", ErrInvalidInput)
	}
	for i := range input.ManualRecipients {
		input.ManualRecipients[i].Email = domain.NormalizeEmail(input.ManualRecipients[i].Email)
	}
	if err := s.validate.Struct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return nil, fmt.Errorf("%w: %s failed %s", ErrInvalidInput, verrs[0].Field(), verrs[0].Tag())
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Tone == "" {
		input.Tone = domain.ToneProfessional
	}
	if !input.Tone.Valid() {
		return nil, fmt.Errorf("%w: unknown tone %q", ErrInvalidInput, input.Tone)
	}

	now := s.now().UTC()
	c := &domain.Campaign{
		ID:                 uuid.New().String(),
		OrganizationID:     orgID,
		Name:               strings.TrimSpace(input.Name),
		Subject:            input.Subject,
		SenderName:         input.SenderName,
		SenderEmail:        domain.NormalizeEmail(input.SenderEmail),
		ServiceDescription: input.ServiceDescription,
		Tone:               input.Tone,
		Status:             domain.CampaignDraft,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	items := buildItems(c, input, now)
	if len(items) == 0 {
		return nil, ErrNoRecipients
	}
	c.TotalRecipients = len(items)

	if err := s.repo.Create(ctx, c, items); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s created with %d recipients", c.ID, len(items))
	return c, nil
}

func buildItems(c *domain.Campaign, input CreateInput, now time.Time) []domain.CampaignItem {
	var items []domain.CampaignItem
	newItem := func(r domain.Recipient) domain.CampaignItem {
		return domain.CampaignItem{
			ID:             uuid.New().String(),
			CampaignID:     c.ID,
			OrganizationID: c.OrganizationID,
			Recipient:      r,
			Status:         domain.ItemPending,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
	}

	seenBiz := make(map[int64]bool)
	for _, id := range input.BusinessIDs {
		if id <= 0 || seenBiz[id] {
			continue
		}
		seenBiz[id] = true
		items = append(items, newItem(domain.DirectoryRecipient{BusinessID: id}))
	}

	seenEmail := make(map[string]bool)
	for _, m := range input.ManualRecipients {
		email := domain.NormalizeEmail(m.Email)
		if email == "" || seenEmail[email] {
			continue
		}
		seenEmail[email] = true
		item := newItem(domain.ManualRecipient{Name: strings.TrimSpace(m.Name), Email: email})
		resolved := domain.Resolve(item.Recipient, nil)
		item.RecipientName = resolved.Name
		item.RecipientEmail = resolved.Email
		items = append(items, item)
	}
	return items
}

// Update modifies mutable fields of a draft campaign.
func (s *Service) Update(ctx context.Context, orgID, id string, u UpdateFields) (*domain.Campaign, error) {
	if u.Tone != nil && !u.Tone.Valid() {
		return nil, fmt.Errorf("%w: unknown tone %q", ErrInvalidInput, *u.Tone)
	}
	if err := s.requireStatus(ctx, orgID, id, domain.CampaignDraft); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, orgID, id, u); err != nil {
		return nil, s.statusError(ctx, orgID, id, domain.CampaignDraft, err)
	}
	return s.repo.Get(ctx, orgID, id)
}

// Delete removes a draft campaign.
func (s *Service) Delete(ctx context.Context, orgID, id string) error {
	if err := s.requireStatus(ctx, orgID, id, domain.CampaignDraft); err != nil {
		return err
	}
	return s.statusError(ctx, orgID, id, domain.CampaignDraft, s.repo.Delete(ctx, orgID, id))
}

// StartGeneration moves a draft campaign to generating and schedules the
// first generation batch.
func (s *Service) StartGeneration(ctx context.Context, orgID, id string) (*domain.Campaign, error) {
	if err := s.start(ctx, orgID, id, domain.CampaignDraft, domain.CampaignGenerating, domain.PhaseGenerate); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s: generation started", id)
	return s.repo.Get(ctx, orgID, id)
}

// SendPlan describes how much of a campaign the current quota admits.
type SendPlan struct {
	Campaign  *domain.Campaign `json:"campaign"`
	Requested int              `json:"requested"`
	CanSend   int              `json:"can_send"`
}

// StartSending checks quota for the generated items, moves a ready campaign
// to sending, and schedules the first send batch. It fails with a
// *quota.ExceededError when the organization has no quota left.
func (s *Service) StartSending(ctx context.Context, orgID, id string) (*SendPlan, error) {
	if err := s.requireStatus(ctx, orgID, id, domain.CampaignReady); err != nil {
		return nil, err
	}

	counts, err := s.repo.CountItems(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}
	requested := counts[domain.ItemGenerated]
	canSend, err := s.quota.Admit(ctx, orgID, requested)
	if err != nil {
		return nil, err
	}

	if err := s.start(ctx, orgID, id, domain.CampaignReady, domain.CampaignSending, domain.PhaseSend); err != nil {
		return nil, err
	}
	log.Printf("[campaign.Service] Campaign %s: sending started (%d generated, %d within quota)", id, requested, canSend)

	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	return &SendPlan{Campaign: c, Requested: requested, CanSend: canSend}, nil
}

func (s *Service) start(ctx context.Context, orgID, id string, from, to domain.CampaignStatus, phase domain.JobPhase) error {
	if err := s.requireStatus(ctx, orgID, id, from); err != nil {
		return err
	}
	if err := s.repo.TransitionStatus(ctx, orgID, id, from, to); err != nil {
		return s.statusError(ctx, orgID, id, from, err)
	}

	// The status stays forward on failure; queue recovery resumes campaigns
	// left without a job.
	job := domain.NewJob(orgID, id, phase, 0, s.now().UTC())
	var err error
	for attempt := 1; attempt <= enqueueAttempts; attempt++ {
		if _, err = s.jobs.Enqueue(ctx, job); err == nil {
			return nil
		}
		if attempt == enqueueAttempts {
			break
		}
		if werr := httpretry.Sleep(ctx, s.enqueueBackoff.Delay(attempt)); werr != nil {
			break
		}
	}
	log.Printf("[campaign.Service] Campaign %s: enqueue %s failed, left for recovery: %v", id, phase.EventName(), err)
	return fmt.Errorf("%w: enqueue %s: %v", ErrNotScheduled, phase.EventName(), err)
}

func (s *Service) requireStatus(ctx context.Context, orgID, id string, want domain.CampaignStatus) error {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return err
	}
	if c.Status != want {
		return &StatusError{CampaignID: id, Current: c.Status, Required: want}
	}
	return nil
}

// statusError converts a lost compare-and-set into a StatusError carrying
// the status the campaign moved to.
func (s *Service) statusError(ctx context.Context, orgID, id string, want domain.CampaignStatus, err error) error {
	if err == nil || !errors.Is(err, ErrInvalidTransition) {
		return err
	}
	var se *StatusError
	if errors.As(err, &se) {
		return err
	}
	c, getErr := s.repo.Get(ctx, orgID, id)
	if getErr != nil {
		return err
	}
	return &StatusError{CampaignID: id, Current: c.Status, Required: want}
}

// Progress is a polling snapshot of a campaign and its item counts.
type Progress struct {
	Campaign *domain.Campaign          `json:"campaign"`
	Counts   map[domain.ItemStatus]int `json:"counts"`
	Percent  float64                   `json:"percent"`
	Active   bool                      `json:"active"`
}

// Progress returns the campaign together with live item counts. Percent
// tracks the running phase: items that left pending while generating, or
// items that left generated and sending while sending.
func (s *Service) Progress(ctx context.Context, orgID, id string) (*Progress, error) {
	c, err := s.repo.Get(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	counts, err := s.repo.CountItems(ctx, orgID, id)
	if err != nil {
		return nil, fmt.Errorf("count items: %w", err)
	}

	total := 0
	for _, n := range counts {
		total += n
	}
	p := &Progress{Campaign: c, Counts: counts, Active: c.IsActive()}
	if total == 0 {
		return p, nil
	}

	var done int
	switch c.Status {
	case domain.CampaignDraft:
		done = 0
	case domain.CampaignGenerating, domain.CampaignReady:
		done = total - counts[domain.ItemPending]
	default:
		done = total - counts[domain.ItemPending] - counts[domain.ItemGenerated] - counts[domain.ItemSending]
	}
	p.Percent = float64(done) / float64(total) * 100
	return p, nil
}

// EventInput is a provider-reported delivery event.
type EventInput struct {
	MessageID  string
	Type       domain.EmailEventType
	Payload    []byte
	OccurredAt time.Time
}

// RecordEvent appends a delivery event to the item that carries the
// message id and advances delivered items to opened or clicked. It returns
// the item so callers can act on its recipient.
func (s *Service) RecordEvent(ctx context.Context, in EventInput) (*domain.CampaignItem, error) {
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidInput, in.Type)
	}
	if in.MessageID == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}

	item, err := s.repo.FindItemByMessageID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	if in.OccurredAt.IsZero() {
		in.OccurredAt = s.now().UTC()
	}

	ev := &domain.EmailEvent{
		ID:             uuid.New().String(),
		OrganizationID: item.OrganizationID,
		CampaignID:     item.CampaignID,
		ItemID:         item.ID,
		MessageID:      in.MessageID,
		Type:           in.Type,
		Payload:        in.Payload,
		OccurredAt:     in.OccurredAt,
	}
	if err := s.events.Append(ctx, ev); err != nil {
		return nil, fmt.Errorf("append event: %w", err)
	}

	switch in.Type {
	case domain.EventOpened:
		_, err = s.repo.AdvanceEngagement(ctx, item.OrganizationID, item.ID, domain.ItemOpened)
	case domain.EventClicked:
		_, err = s.repo.AdvanceEngagement(ctx, item.OrganizationID, item.ID, domain.ItemClicked)
	}
	if err != nil {
		return nil, fmt.Errorf("advance item: %w", err)
	}
	return item, nil
}
