package models

import (
	"database/sql"
	"time"
)

type Well struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Depth    float64 `json:"depth"`
	Location string  `json:"location"`
	Status   string  `json:"status"` // "active", "completed", "planned"
}

// Record is one normalized row of a well-log spreadsheet. Every numeric field
// is finite; values missing from the source row are zero.
type Record struct {
	ID        int       `json:"id"`
	Depth     float64   `json:"depth"`
	SH        float64   `json:"sh"`
	SS        float64   `json:"ss"`
	LS        float64   `json:"ls"`
	DOL       float64   `json:"dol"`
	ANH       float64   `json:"anh"`
	Coal      float64   `json:"coal"`
	Salt      float64   `json:"salt"`
	DT        float64   `json:"dt"`
	GR        float64   `json:"gr"`
	MinFinal  float64   `json:"minfinal"`
	UCS       float64   `json:"ucs"`
	FA        float64   `json:"fa"`
	RAT       float64   `json:"rat"`
	ROP       float64   `json:"rop"`
	Timestamp time.Time `json:"timestamp"`
}

// Lithology returns the seven rock-type fractions in display order.
func (r Record) Lithology() [7]float64 {
	return [7]float64{r.SH, r.SS, r.LS, r.DOL, r.ANH, r.Coal, r.Salt}
}

type Upload struct {
	ID           string
	WellID       sql.NullString
	FileName     string
	MimeType     string
	Format       sql.NullString // "csv", "xlsx", "xls"
	SizeBytes    int64
	RecordCount  sql.NullInt64
	QualityFlags sql.NullString // JSON object of flag -> count
	PayloadHash  sql.NullString
	Backend      string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Success      bool
	ErrorMessage sql.NullString
	ErrorDetail  sql.NullString // internal cause, never served
}
