package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/lox/drillboard/internal/models"
)

// StartUpload creates an audit row for an upload attempt and returns it.
func (s *Store) StartUpload(wellID, fileName, mimeType, backend string, size int64) (*models.Upload, error) {
	u := &models.Upload{
		ID:        uuid.NewString(),
		FileName:  fileName,
		MimeType:  mimeType,
		SizeBytes: size,
		Backend:   backend,
		StartedAt: time.Now().UTC(),
	}
	if wellID != "" {
		u.WellID = sql.NullString{String: wellID, Valid: true}
	}

	_, err := s.db.Exec(`
		INSERT INTO uploads (id, well_id, file_name, mime_type, size_bytes, backend, started_at, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, FALSE)
	`, u.ID, u.WellID, u.FileName, u.MimeType, u.SizeBytes, u.Backend, u.StartedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

// CompleteUpload records the outcome of an upload.
func (s *Store) CompleteUpload(u *models.Upload) error {
	if u == nil {
		return nil
	}

	u.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE uploads SET
			format = ?,
			record_count = ?,
			quality_flags = ?,
			payload_hash = ?,
			finished_at = ?,
			success = ?,
			error_message = ?,
			error_detail = ?
		WHERE id = ?
	`, u.Format, u.RecordCount, u.QualityFlags, u.PayloadHash, u.FinishedAt, u.Success, u.ErrorMessage, u.ErrorDetail, u.ID)
	return err
}

// ListUploads returns the most recent uploads, newest first.
func (s *Store) ListUploads(limit int) ([]models.Upload, error) {
	rows, err := s.db.Query(`
		SELECT id, well_id, file_name, mime_type, format, size_bytes, record_count, quality_flags,
		       payload_hash, backend, started_at, finished_at, success, error_message, error_detail
		FROM uploads
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []models.Upload
	for rows.Next() {
		var u models.Upload
		if err := rows.Scan(&u.ID, &u.WellID, &u.FileName, &u.MimeType, &u.Format, &u.SizeBytes,
			&u.RecordCount, &u.QualityFlags, &u.PayloadHash, &u.Backend, &u.StartedAt,
			&u.FinishedAt, &u.Success, &u.ErrorMessage, &u.ErrorDetail); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}

// UploadHealthSummary is a per-day roll-up of upload outcomes.
type UploadHealthSummary struct {
	Date         string
	TotalUploads int
	Succeeded    int
	Failed       int
	TotalRecords int64
}

// GetUploadHealth returns upload summaries for the last N days.
func (s *Store) GetUploadHealth(days int) ([]UploadHealthSummary, error) {
	rows, err := s.db.Query(`
		SELECT
			DATE(SUBSTR(started_at, 1, 19)) as date,
			COUNT(*) as total,
			SUM(CASE WHEN success THEN 1 ELSE 0 END) as succeeded,
			SUM(CASE WHEN NOT success THEN 1 ELSE 0 END) as failed,
			COALESCE(SUM(record_count), 0) as total_records
		FROM uploads
		WHERE SUBSTR(started_at, 1, 19) > datetime('now', '-' || ? || ' days')
		GROUP BY date
		ORDER BY date DESC
	`, days)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []UploadHealthSummary
	for rows.Next() {
		var h UploadHealthSummary
		if err := rows.Scan(&h.Date, &h.TotalUploads, &h.Succeeded, &h.Failed, &h.TotalRecords); err != nil {
			return nil, err
		}
		results = append(results, h)
	}
	return results, rows.Err()
}
