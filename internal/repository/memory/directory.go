package memory

import (
	"context"
	"sync"

	"github.com/ignite/outreach-pipeline/internal/domain"
)

// Directory is a fixed set of business records.
type Directory struct {
	mu         sync.RWMutex
	businesses map[int64]domain.Business
}

// NewDirectory creates a directory holding the given businesses.
func NewDirectory(businesses ...domain.Business) *Directory {
	d := &Directory{businesses: make(map[int64]domain.Business, len(businesses))}
	for _, b := range businesses {
		d.businesses[b.ID] = b
	}
	return d
}

// Businesses returns the records found for ids. Missing ids are absent from
// the result.
func (d *Directory) Businesses(_ context.Context, ids []int64) (map[int64]domain.Business, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[int64]domain.Business, len(ids))
	for _, id := range ids {
		if b, ok := d.businesses[id]; ok {
			out[id] = b
		}
	}
	return out, nil
}
