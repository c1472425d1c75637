package api

import (
	"encoding/json"
	"time"

	"github.com/lox/drillboard/internal/models"
	"github.com/lox/drillboard/internal/store"
)

// WellView is a directory entry with dataset presence.
type WellView struct {
	models.Well
	HasData bool `json:"hasData"`
}

// WellData is the normalized dataset for one well.
type WellData struct {
	WellID       string          `json:"wellId"`
	TotalRecords int             `json:"totalRecords"`
	Data         []models.Record `json:"data"`
}

// WellSummary holds headline figures for a dataset.
type WellSummary struct {
	WellID       string  `json:"wellId"`
	HasData      bool    `json:"hasData"`
	TotalRecords int     `json:"totalRecords"`
	DepthMin     float64 `json:"depthMin"`
	DepthMax     float64 `json:"depthMax"`
	AvgDT        float64 `json:"avgDT"`
	AvgGR        float64 `json:"avgGR"`
	AvgROP       float64 `json:"avgROP"`
}

// ChartRow is one depth sample with lithology fractions as percentages.
type ChartRow struct {
	Depth float64 `json:"depth"`
	SH    float64 `json:"sh"`
	SS    float64 `json:"ss"`
	LS    float64 `json:"ls"`
	DOL   float64 `json:"dol"`
	ANH   float64 `json:"anh"`
	Coal  float64 `json:"coal"`
	Salt  float64 `json:"salt"`
	DT    float64 `json:"dt"`
	GR    float64 `json:"gr"`
	ROP   float64 `json:"rop"`
}

type ChartData struct {
	WellID string     `json:"wellId"`
	Rows   []ChartRow `json:"rows"`
}

// UploadView flattens an audit row for JSON.
type UploadView struct {
	ID           string         `json:"id"`
	WellID       string         `json:"wellId,omitempty"`
	FileName     string         `json:"filename"`
	MimeType     string         `json:"mimeType"`
	Format       string         `json:"format,omitempty"`
	SizeBytes    int64          `json:"sizeBytes"`
	RecordCount  int64          `json:"recordCount"`
	QualityFlags map[string]int `json:"qualityFlags,omitempty"`
	Backend      string         `json:"backend"`
	UploadDate   time.Time      `json:"uploadDate"`
	FinishedAt   *time.Time     `json:"finishedAt,omitempty"`
	Success      bool           `json:"success"`
	Error        string         `json:"error,omitempty"`
	PayloadHash  string         `json:"payloadHash,omitempty"`
}

type UploadHealthView struct {
	Date         string `json:"date"`
	TotalUploads int    `json:"totalUploads"`
	Succeeded    int    `json:"succeeded"`
	Failed       int    `json:"failed"`
	TotalRecords int64  `json:"totalRecords"`
}

func buildChart(wellID string, records []models.Record) ChartData {
	rows := make([]ChartRow, len(records))
	for i, r := range records {
		rows[i] = ChartRow{
			Depth: r.Depth,
			SH:    r.SH * 100,
			SS:    r.SS * 100,
			LS:    r.LS * 100,
			DOL:   r.DOL * 100,
			ANH:   r.ANH * 100,
			Coal:  r.Coal * 100,
			Salt:  r.Salt * 100,
			DT:    r.DT,
			GR:    r.GR,
			ROP:   r.ROP,
		}
	}
	return ChartData{WellID: wellID, Rows: rows}
}

func summarize(wellID string, records []models.Record) WellSummary {
	sum := WellSummary{WellID: wellID, TotalRecords: len(records), HasData: len(records) > 0}
	if len(records) == 0 {
		return sum
	}

	sum.DepthMin, sum.DepthMax = records[0].Depth, records[0].Depth
	var dt, gr, rop float64
	for _, r := range records {
		sum.DepthMin = min(sum.DepthMin, r.Depth)
		sum.DepthMax = max(sum.DepthMax, r.Depth)
		dt += r.DT
		gr += r.GR
		rop += r.ROP
	}
	n := float64(len(records))
	sum.AvgDT = dt / n
	sum.AvgGR = gr / n
	sum.AvgROP = rop / n
	return sum
}

func uploadView(u models.Upload) UploadView {
	v := UploadView{
		ID:          u.ID,
		WellID:      u.WellID.String,
		FileName:    u.FileName,
		MimeType:    u.MimeType,
		Format:      u.Format.String,
		SizeBytes:   u.SizeBytes,
		RecordCount: u.RecordCount.Int64,
		Backend:     u.Backend,
		UploadDate:  u.StartedAt,
		Success:     u.Success,
		Error:       u.ErrorMessage.String,
		PayloadHash: u.PayloadHash.String,
	}
	if u.FinishedAt.Valid {
		t := u.FinishedAt.Time
		v.FinishedAt = &t
	}
	if u.QualityFlags.Valid {
		var flags map[string]int
		if err := json.Unmarshal([]byte(u.QualityFlags.String), &flags); err == nil {
			v.QualityFlags = flags
		}
	}
	return v
}

func uploadHealthView(h store.UploadHealthSummary) UploadHealthView {
	return UploadHealthView{
		Date:         h.Date,
		TotalUploads: h.TotalUploads,
		Succeeded:    h.Succeeded,
		Failed:       h.Failed,
		TotalRecords: h.TotalRecords,
	}
}
