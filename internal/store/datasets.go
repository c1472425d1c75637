package store

import (
	"context"
	"fmt"
	"time"

	"github.com/lox/drillboard/internal/models"
)

// Put replaces the dataset for a well in a single transaction, so readers
// see either the previous records or the new ones.
func (s *Store) Put(ctx context.Context, wellID string, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin put %s: %w", wellID, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM records WHERE well_id = ?`, wellID); err != nil {
		return fmt.Errorf("clear records %s: %w", wellID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (well_id, id, depth, sh, ss, ls, dol, anh, coal, salt, dt, gr, minfinal, ucs, fa, rat, rop, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, wellID, r.ID, r.Depth, r.SH, r.SS, r.LS, r.DOL, r.ANH, r.Coal, r.Salt,
			r.DT, r.GR, r.MinFinal, r.UCS, r.FA, r.RAT, r.ROP, r.Timestamp.UTC()); err != nil {
			return fmt.Errorf("insert record %d: %w", r.ID, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (well_id, record_count, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(well_id) DO UPDATE SET
			record_count = excluded.record_count,
			updated_at = excluded.updated_at
	`, wellID, len(records), time.Now().UTC()); err != nil {
		return fmt.Errorf("upsert dataset %s: %w", wellID, err)
	}

	return tx.Commit()
}

// Get returns the records for a well in upload order, or an empty slice.
func (s *Store) Get(ctx context.Context, wellID string) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, depth, sh, ss, ls, dol, anh, coal, salt, dt, gr, minfinal, ucs, fa, rat, rop, timestamp
		FROM records
		WHERE well_id = ?
		ORDER BY id ASC
	`, wellID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.Record{}
	for rows.Next() {
		var r models.Record
		if err := rows.Scan(&r.ID, &r.Depth, &r.SH, &r.SS, &r.LS, &r.DOL, &r.ANH, &r.Coal, &r.Salt,
			&r.DT, &r.GR, &r.MinFinal, &r.UCS, &r.FA, &r.RAT, &r.ROP, &r.Timestamp); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// Contains reports whether the well has a non-empty dataset.
func (s *Store) Contains(ctx context.Context, wellID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM datasets WHERE well_id = ? AND record_count > 0`, wellID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
