package ingest

import (
	"encoding/json"

	"github.com/lox/drillboard/internal/models"
)

const (
	FlagDepthNegative       = "depth_negative"
	FlagDepthOutOfOrder     = "depth_out_of_order"
	FlagLithologyOutOfRange = "lithology_out_of_range"
	FlagLithologySumHigh    = "lithology_sum_high"
	FlagGammaNegative       = "gamma_ray_negative"
	FlagROPNegative         = "rop_negative"
)

// lithologySumTolerance absorbs rounding in hand-edited spreadsheets.
const lithologySumTolerance = 0.01

// ValidateRecord returns quality flags for a single record. Flags are
// advisory; a flagged record is still stored as-is.
func ValidateRecord(rec *models.Record) []string {
	var flags []string

	if rec.Depth < 0 {
		flags = append(flags, FlagDepthNegative)
	}

	var sum float64
	outOfRange := false
	for _, f := range rec.Lithology() {
		if f < 0 || f > 1 {
			outOfRange = true
		}
		sum += f
	}
	if outOfRange {
		flags = append(flags, FlagLithologyOutOfRange)
	}
	if sum > 1+lithologySumTolerance {
		flags = append(flags, FlagLithologySumHigh)
	}

	if rec.GR < 0 {
		flags = append(flags, FlagGammaNegative)
	}
	if rec.ROP < 0 {
		flags = append(flags, FlagROPNegative)
	}

	return flags
}

// SummarizeFlags counts flags across a dataset, including depths that go
// backwards between consecutive rows.
func SummarizeFlags(records []models.Record) map[string]int {
	counts := make(map[string]int)
	for i := range records {
		for _, f := range ValidateRecord(&records[i]) {
			counts[f]++
		}
		if i > 0 && records[i].Depth < records[i-1].Depth {
			counts[FlagDepthOutOfOrder]++
		}
	}
	return counts
}

func QualityFlagsToJSON(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	b, _ := json.Marshal(counts)
	return string(b)
}
