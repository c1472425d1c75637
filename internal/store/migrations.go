package store

import (
	"database/sql"
	"fmt"
	"log"
	"time"
)

type migration struct {
	Version     int
	Description string
	SQL         string
}

var migrations = []migration{
	{
		Version:     1,
		Description: "Initial schema",
		SQL: `
CREATE TABLE IF NOT EXISTS wells (
    well_id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    depth REAL,
    location TEXT,
    status TEXT
);

CREATE TABLE IF NOT EXISTS datasets (
    well_id TEXT PRIMARY KEY,
    record_count INTEGER NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS records (
    well_id TEXT NOT NULL,
    id INTEGER NOT NULL,
    depth REAL NOT NULL,
    sh REAL NOT NULL,
    ss REAL NOT NULL,
    ls REAL NOT NULL,
    dol REAL NOT NULL,
    anh REAL NOT NULL,
    coal REAL NOT NULL,
    salt REAL NOT NULL,
    dt REAL NOT NULL,
    gr REAL NOT NULL,
    minfinal REAL NOT NULL,
    ucs REAL NOT NULL,
    fa REAL NOT NULL,
    rat REAL NOT NULL,
    rop REAL NOT NULL,
    timestamp DATETIME NOT NULL,
    PRIMARY KEY (well_id, id)
);
`,
	},
	{
		Version:     2,
		Description: "Add uploads audit table",
		SQL: `
CREATE TABLE IF NOT EXISTS uploads (
    id TEXT PRIMARY KEY,
    well_id TEXT,
    file_name TEXT NOT NULL,
    mime_type TEXT,
    format TEXT,
    size_bytes INTEGER NOT NULL,
    record_count INTEGER,
    quality_flags TEXT,
    payload_hash TEXT,
    backend TEXT,
    started_at DATETIME NOT NULL,
    finished_at DATETIME,
    success BOOLEAN NOT NULL DEFAULT FALSE,
    error_message TEXT
);

CREATE INDEX IF NOT EXISTS idx_uploads_started ON uploads(started_at);
CREATE INDEX IF NOT EXISTS idx_uploads_well ON uploads(well_id);
`,
	},
	{
		Version:     3,
		Description: "Add raw_files table for original upload bytes",
		SQL: `
CREATE TABLE IF NOT EXISTS raw_files (
    payload_hash TEXT PRIMARY KEY,
    upload_id TEXT NOT NULL,
    file_name TEXT NOT NULL,
    stored_at DATETIME NOT NULL,
    size_bytes INTEGER NOT NULL,
    payload_compressed BLOB NOT NULL
);
`,
	},
	{
		Version:     4,
		Description: "Add uploads.error_detail for internal failure causes",
		SQL: `
ALTER TABLE uploads ADD COLUMN error_detail TEXT;
`,
	},
}

func (s *Store) Migrate() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("ensure migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("get applied migrations: %w", err)
	}

	for _, m := range migrations {
		if applied[m.Version] {
			continue
		}

		log.Printf("migrations: applying %d - %s", m.Version, m.Description)

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("begin tx for migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, description, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Description, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}

		log.Printf("migrations: completed %d", m.Version)
	}

	return nil
}

func (s *Store) ensureMigrationsTable() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			description TEXT,
			applied_at DATETIME
		)
	`)
	return err
}

func (s *Store) getAppliedMigrations() (map[int]bool, error) {
	rows, err := s.db.Query("SELECT version FROM schema_migrations")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}
	return applied, rows.Err()
}

func (s *Store) MigrationVersion() (int, error) {
	var version sql.NullInt64
	err := s.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
