package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lox/drillboard/internal/dataset"
	"github.com/lox/drillboard/internal/metrics"
	"github.com/lox/drillboard/internal/models"
	"github.com/lox/drillboard/internal/store"
)

// Importer runs an uploaded file through the pipeline, stores the dataset
// and keeps an audit trail of every attempt.
type Importer struct {
	store    *store.Store
	datasets dataset.Store
	pipeline *Pipeline
	backend  string
}

func NewImporter(st *store.Store, datasets dataset.Store, pipeline *Pipeline, backend string) *Importer {
	return &Importer{
		store:    st,
		datasets: datasets,
		pipeline: pipeline,
		backend:  backend,
	}
}

type ImportRequest struct {
	WellID   string
	FileName string
	MimeType string
	Data     []byte
}

type ImportResult struct {
	*Result
	UploadID string
	WellID   string
}

// Pipeline returns the pipeline used for parsing, for callers that need
// its limits before reading a body.
func (im *Importer) Pipeline() *Pipeline {
	return im.pipeline
}

func (im *Importer) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := im.pipeline.Validate(req.FileName, req.MimeType, int64(len(req.Data))); err != nil {
		metrics.UploadsTotal.WithLabelValues("unknown", outcome(err)).Inc()
		return nil, err
	}
	if req.WellID != "" {
		w, err := im.store.GetWell(req.WellID)
		if err != nil {
			return nil, fmt.Errorf("lookup well %s: %w", req.WellID, err)
		}
		if w == nil {
			err := &NotFoundError{Message: "Well not found"}
			metrics.UploadsTotal.WithLabelValues("unknown", outcome(err)).Inc()
			return nil, err
		}
	}

	run, err := im.store.StartUpload(req.WellID, req.FileName, req.MimeType, im.backend, int64(len(req.Data)))
	if err != nil {
		log.Printf("upload: start audit for %s: %v", req.FileName, err)
	}

	start := time.Now()
	result, err := im.pipeline.Ingest(req.Data, req.FileName, req.MimeType)
	if err != nil {
		metrics.UploadsTotal.WithLabelValues("unknown", outcome(err)).Inc()
		im.complete(run, nil, "", err)
		return nil, err
	}
	format := string(result.Format)
	metrics.UploadParseLatency.WithLabelValues(format).Observe(time.Since(start).Seconds())

	if req.WellID != "" {
		if err := im.datasets.Put(ctx, req.WellID, result.Full); err != nil {
			metrics.UploadsTotal.WithLabelValues(format, outcome(err)).Inc()
			im.complete(run, result, "", err)
			return nil, fmt.Errorf("store dataset %s: %w", req.WellID, err)
		}
		metrics.RecordsIngested.WithLabelValues(req.WellID).Add(float64(result.RecordCount))
	}
	for flag, n := range result.Flags {
		metrics.QualityFlags.WithLabelValues(flag).Add(float64(n))
	}

	var hash, uploadID string
	if run != nil {
		uploadID = run.ID
		if hash, err = im.store.StoreRawFile(run.ID, req.FileName, req.Data); err != nil {
			log.Printf("upload: store raw file %s: %v", req.FileName, err)
		}
	}
	im.complete(run, result, hash, nil)

	metrics.UploadsTotal.WithLabelValues(format, "success").Inc()
	log.Printf("upload: %s (%s) -> well %q: %d records", req.FileName, format, req.WellID, result.RecordCount)

	return &ImportResult{Result: result, UploadID: uploadID, WellID: req.WellID}, nil
}

func (im *Importer) complete(run *models.Upload, result *Result, hash string, err error) {
	if run == nil {
		return
	}
	run.Success = err == nil
	if result != nil {
		run.Format = sql.NullString{String: string(result.Format), Valid: true}
		run.RecordCount = sql.NullInt64{Int64: int64(result.RecordCount), Valid: true}
		if len(result.Flags) > 0 {
			run.QualityFlags = sql.NullString{String: QualityFlagsToJSON(result.Flags), Valid: true}
		}
	}
	if hash != "" {
		run.PayloadHash = sql.NullString{String: hash, Valid: true}
	}
	if err != nil {
		msg, detail := auditError(err)
		run.ErrorMessage = sql.NullString{String: msg, Valid: true}
		if detail != "" {
			run.ErrorDetail = sql.NullString{String: detail, Valid: true}
		}
	}
	if err := im.store.CompleteUpload(run); err != nil {
		log.Printf("upload: complete audit %s: %v", run.ID, err)
	}
}

// auditError splits err into the message served with the upload history
// and the internal cause, which is only stored.
func auditError(err error) (msg, detail string) {
	var pe *ParseError
	if errors.As(err, &pe) {
		if pe.Err != nil {
			detail = pe.Err.Error()
		}
		return pe.Error(), detail
	}
	return "Failed to upload file", err.Error()
}

func outcome(err error) string {
	if IsRejected(err) {
		return "rejected"
	}
	return "failed"
}
