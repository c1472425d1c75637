package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// HashPayload returns the hex SHA-256 used to key raw files.
func HashPayload(payload []byte) string {
	hash := sha256.Sum256(payload)
	return hex.EncodeToString(hash[:])
}

// StoreRawFile keeps a gzip-compressed copy of an uploaded file. Identical
// bytes are stored once; the returned hash identifies the copy either way.
func (s *Store) StoreRawFile(uploadID, fileName string, payload []byte) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return "", fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip: %w", err)
	}

	hash := HashPayload(payload)
	_, err := s.db.Exec(`
		INSERT INTO raw_files (payload_hash, upload_id, file_name, stored_at, size_bytes, payload_compressed)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(payload_hash) DO NOTHING
	`, hash, uploadID, fileName, time.Now().UTC(), len(payload), buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("insert raw file: %w", err)
	}
	return hash, nil
}

// GetRawFile retrieves and decompresses a stored file. It returns nil when
// no file has the hash.
func (s *Store) GetRawFile(hash string) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM raw_files WHERE payload_hash = ?`, hash).
		Scan(&compressed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("create gzip reader: %w", err)
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// CleanupOldRawFiles deletes stored files older than the retention period
// and returns how many were removed.
func (s *Store) CleanupOldRawFiles(retentionDays int) (int64, error) {
	result, err := s.db.Exec(`
		DELETE FROM raw_files
		WHERE stored_at < DATE('now', '-' || ? || ' days')
	`, retentionDays)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
