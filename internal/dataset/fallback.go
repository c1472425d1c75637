package dataset

import (
	"context"
	"log"

	"github.com/lox/drillboard/internal/metrics"
	"github.com/lox/drillboard/internal/models"
)

var _ Store = (*Fallback)(nil)

// Fallback wraps a persistent Store with an in-memory one. When the primary
// rejects a write the dataset is kept in memory instead, so an upload never
// fails on storage. Reads prefer the in-memory copy for wells that fell
// back; the next successful primary write clears it.
type Fallback struct {
	primary Store
	backend string
	memory  *Memory
}

func NewFallback(primary Store, backend string) *Fallback {
	return &Fallback{primary: primary, backend: backend, memory: NewMemory()}
}

func (f *Fallback) Put(ctx context.Context, wellID string, records []models.Record) error {
	if err := f.primary.Put(ctx, wellID, records); err != nil {
		log.Printf("store: %s put %s failed, keeping dataset in memory: %v", f.backend, wellID, err)
		metrics.StoreFallbacks.WithLabelValues(f.backend).Inc()
		return f.memory.Put(ctx, wellID, records)
	}
	f.memory.Delete(wellID)
	return nil
}

func (f *Fallback) Get(ctx context.Context, wellID string) ([]models.Record, error) {
	if records, ok := f.memory.lookup(wellID); ok {
		return records, nil
	}
	return f.primary.Get(ctx, wellID)
}

func (f *Fallback) Contains(ctx context.Context, wellID string) (bool, error) {
	if records, ok := f.memory.lookup(wellID); ok {
		return len(records) > 0, nil
	}
	return f.primary.Contains(ctx, wellID)
}

// Backend names the primary store.
func (f *Fallback) Backend() string {
	return f.backend
}
