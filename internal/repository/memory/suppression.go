package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/outreach-pipeline/internal/domain"
	"github.com/ignite/outreach-pipeline/internal/service/suppression"
)

// SuppressionRepo implements suppression.Repository.
type SuppressionRepo struct {
	mu      sync.Mutex
	entries map[string]*domain.SuppressionEntry // org|email
}

// NewSuppressionRepo creates an empty suppression list.
func NewSuppressionRepo() *SuppressionRepo {
	return &SuppressionRepo{entries: make(map[string]*domain.SuppressionEntry)}
}

func suppressionKey(orgID, email string) string { return orgID + "|" + email }

func (r *SuppressionRepo) Upsert(_ context.Context, e *domain.SuppressionEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := suppressionKey(e.OrganizationID, e.Email)
	if cur, ok := r.entries[key]; ok {
		cur.Type = e.Type
		cur.Reason = e.Reason
		cur.CampaignID = e.CampaignID
		return nil
	}
	cp := *e
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	r.entries[key] = &cp
	return nil
}

func (r *SuppressionRepo) Remove(_ context.Context, orgID, email string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := suppressionKey(orgID, email)
	if _, ok := r.entries[key]; !ok {
		return suppression.ErrNotFound
	}
	delete(r.entries, key)
	return nil
}

func (r *SuppressionRepo) Suppressed(_ context.Context, orgID string, emails []string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range emails {
		if _, ok := r.entries[suppressionKey(orgID, e)]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *SuppressionRepo) List(_ context.Context, orgID string, f suppression.ListFilter) ([]domain.SuppressionEntry, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.SuppressionEntry
	for _, e := range r.entries {
		if e.OrganizationID != orgID {
			continue
		}
		if f.Type != "" && string(e.Type) != f.Type {
			continue
		}
		if f.Search != "" && !strings.Contains(e.Email, strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Email < out[j].Email
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return page(out, f.Limit, f.Offset), len(out), nil
}

func (r *SuppressionRepo) Count(_ context.Context, orgID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.entries {
		if e.OrganizationID == orgID {
			n++
		}
	}
	return n, nil
}

func (r *SuppressionRepo) CountByType(_ context.Context, orgID string) (map[domain.SuppressionType]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[domain.SuppressionType]int)
	for _, e := range r.entries {
		if e.OrganizationID == orgID {
			out[e.Type]++
		}
	}
	return out, nil
}
