package ingest

import (
	"time"

	"github.com/lox/drillboard/internal/models"
)

// RawRow is one spreadsheet row keyed by header. Empty cells are absent.
type RawRow map[string]any

// Normalize maps rows onto the fixed Record shape, one record per row in
// input order. IDs are 1-based row positions and every record in the batch
// carries the same timestamp.
func Normalize(rows []RawRow, at time.Time) []models.Record {
	at = at.UTC()
	out := make([]models.Record, len(rows))
	for i, row := range rows {
		rec := models.Record{ID: i + 1, Timestamp: at}
		for _, col := range Columns {
			*col.Field(&rec) = Coerce(row[col.Header])
		}
		out[i] = rec
	}
	return out
}
