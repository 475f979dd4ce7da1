package suppression

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/pkg/logger"
)

// Service implements suppression business logic. It is safe for concurrent use.
type Service struct {
	repo     Repository
	validate *validator.Validate
	log      *logger.Logger
}

// NewService creates a suppression service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, validate: validator.New(), log: logger.Default()}
}

// WithLogger replaces the default logger.
func (s *Service) WithLogger(l *logger.Logger) *Service {
	s.log = l
	return s
}

// AddInput holds the fields for suppressing an address.
type AddInput struct {
	Email      string                 `json:"email" validate:"required,email,max=254"`
	Type       domain.SuppressionType `json:"type"`
	Reason     string                 `json:"reason" validate:"max=500"`
	CampaignID string                 `json:"campaign_id"`
}

// Add suppresses an address for the organization. Re-adding an address
// updates the existing entry rather than creating a duplicate.
func (s *Service) Add(ctx context.Context, orgID string, in AddInput) (*domain.SuppressionEntry, error) {
	in.Email = domain.NormalizeEmail(in.Email)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, err
		}
		for _, fe := range verrs {
			if fe.Field() == "Reason" {
				return nil, fmt.Errorf("%w: must be at most %s characters", ErrInvalidReason, fe.Param())
			}
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidEmail, in.Email)
	}
	if in.Type == "" {
		in.Type = domain.SuppressionManual
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidType, in.Type)
	}

	entry := &domain.SuppressionEntry{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		Email:          in.Email,
		Type:           in.Type,
		Reason:         in.Reason,
		CampaignID:     in.CampaignID,
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, fmt.Errorf("suppress %s: %w", logger.RedactEmail(in.Email), err)
	}
	return entry, nil
}

// Remove deletes a suppression entry. Returns ErrNotFound if the email is not suppressed.
func (s *Service) Remove(ctx context.Context, orgID, email string) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return ErrInvalidEmail
	}
	return s.repo.Remove(ctx, orgID, email)
}

// IsSuppressed checks a batch of addresses in one lookup. The result maps
// each normalized address to true when it must not be mailed; addresses
// absent from the map are clear.
func (s *Service) IsSuppressed(ctx context.Context, orgID string, emails []string) (map[string]bool, error) {
	seen := make(map[string]bool, len(emails))
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		e = domain.NormalizeEmail(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		normalized = append(normalized, e)
	}
	out := make(map[string]bool)
	if len(normalized) == 0 {
		return out, nil
	}

	hits, err := s.repo.Suppressed(ctx, orgID, normalized)
	if err != nil {
		return nil, fmt.Errorf("check suppression: %w", err)
	}
	for _, e := range hits {
		out[domain.NormalizeEmail(e)] = true
	}
	return out, nil
}

// List returns suppression entries matching the filter.
func (s *Service) List(ctx context.Context, orgID string, f ListFilter) ([]domain.SuppressionEntry, int, error) {
	return s.repo.List(ctx, orgID, f)
}

// Count returns the total number of suppressed emails for an organization.
func (s *Service) Count(ctx context.Context, orgID string) (int, error) {
	return s.repo.Count(ctx, orgID)
}

// Stats returns aggregate counts grouped by type.
type Stats struct {
	Total  int            `json:"total"`
	ByType map[string]int `json:"by_type"`
}

// GetStats computes suppression statistics for the dashboard.
func (s *Service) GetStats(ctx context.Context, orgID string) (*Stats, error) {
	counts, err := s.repo.CountByType(ctx, orgID)
	if err != nil {
		return nil, err
	}

	stats := &Stats{ByType: make(map[string]int, len(counts))}
	for t, n := range counts {
		stats.ByType[string(t)] = n
		stats.Total += n
	}
	return stats, nil
}

// HandleEvent suppresses the recipient of a hard bounce or complaint.
// Other event types are ignored. Reports whether an entry was written.
func (s *Service) HandleEvent(ctx context.Context, orgID, campaignID, email string, evt domain.EmailEventType) (bool, error) {
	st, ok := evt.SuppressionType()
	if !ok {
		return false, nil
	}
	_, err := s.Add(ctx, orgID, AddInput{
		Email:      email,
		Type:       st,
		Reason:     "provider reported " + string(evt),
		CampaignID: campaignID,
	})
	if err != nil {
		return false, err
	}
	s.log.Info("address suppressed from provider event", "org_id", orgID, "email", logger.RedactEmail(email), "event", string(evt))
	return true, nil
}
