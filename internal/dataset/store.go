// Package dataset keeps the normalized records of each well's latest upload.
package dataset

import (
	"context"

	"github.com/lox/drillboard/internal/models"
)

// Store holds at most one dataset per well. Put is a full replace; a
// concurrent Get observes either the previous dataset or the new one in
// full. Get returns an empty slice, not an error, for unknown wells.
type Store interface {
	Put(ctx context.Context, wellID string, records []models.Record) error
	Get(ctx context.Context, wellID string) ([]models.Record, error)
	// Contains reports whether the well has a non-empty dataset.
	Contains(ctx context.Context, wellID string) (bool, error)
}
