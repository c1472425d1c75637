package ingest

import "github.com/lox/drillboard/internal/models"

// Column maps a spreadsheet header to a Record field. Headers are matched
// exactly and case-sensitively; lithology headers carry a literal '%'.
type Column struct {
	Header string
	Field  func(*models.Record) *float64
}

// Columns is the complete header table for well-log uploads. Any header not
// listed here is ignored, and any listed header missing from a row yields 0.
var Columns = []Column{
	{"DEPTH", func(r *models.Record) *float64 { return &r.Depth }},
	{"%SH", func(r *models.Record) *float64 { return &r.SH }},
	{"%SS", func(r *models.Record) *float64 { return &r.SS }},
	{"%LS", func(r *models.Record) *float64 { return &r.LS }},
	{"%DOL", func(r *models.Record) *float64 { return &r.DOL }},
	{"%ANH", func(r *models.Record) *float64 { return &r.ANH }},
	{"%Coal", func(r *models.Record) *float64 { return &r.Coal }},
	{"%Salt", func(r *models.Record) *float64 { return &r.Salt }},
	{"DT", func(r *models.Record) *float64 { return &r.DT }},
	{"GR", func(r *models.Record) *float64 { return &r.GR }},
	{"MINFINAL", func(r *models.Record) *float64 { return &r.MinFinal }},
	{"UCS", func(r *models.Record) *float64 { return &r.UCS }},
	{"FA", func(r *models.Record) *float64 { return &r.FA }},
	{"RAT", func(r *models.Record) *float64 { return &r.RAT }},
	{"ROP", func(r *models.Record) *float64 { return &r.ROP }},
}

// Headers returns the recognised header names in table order.
func Headers() []string {
	out := make([]string, len(Columns))
	for i, c := range Columns {
		out[i] = c.Header
	}
	return out
}
