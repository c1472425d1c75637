package store

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/lox/drillboard/internal/models"
)

type Store struct {
	db *sql.DB
}

// Open opens the SQLite database at path. Pragmas are set in the DSN so
// every pooled connection waits on locks instead of failing with
// SQLITE_BUSY, and transactions take the write lock when they begin.
func Open(path string) (*sql.DB, error) {
	if path == ":memory:" {
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		// Each connection would get its own empty database.
		db.SetMaxOpenConns(1)
		return db, nil
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
	return sql.Open("sqlite", dsn)
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertWell(w models.Well) error {
	_, err := s.db.Exec(`
		INSERT INTO wells (well_id, name, depth, location, status)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(well_id) DO UPDATE SET
			name = excluded.name,
			depth = excluded.depth,
			location = excluded.location,
			status = excluded.status
	`, w.ID, w.Name, w.Depth, w.Location, w.Status)
	return err
}

func (s *Store) ListWells() ([]models.Well, error) {
	rows, err := s.db.Query(`SELECT well_id, name, depth, location, status FROM wells ORDER BY CAST(well_id AS INTEGER), well_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	wells := []models.Well{}
	for rows.Next() {
		var w models.Well
		if err := rows.Scan(&w.ID, &w.Name, &w.Depth, &w.Location, &w.Status); err != nil {
			return nil, err
		}
		wells = append(wells, w)
	}
	return wells, rows.Err()
}

// GetWell returns nil when no well has the given id.
func (s *Store) GetWell(id string) (*models.Well, error) {
	var w models.Well
	err := s.db.QueryRow(`SELECT well_id, name, depth, location, status FROM wells WHERE well_id = ?`, id).
		Scan(&w.ID, &w.Name, &w.Depth, &w.Location, &w.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// DefaultWells is the built-in well directory seeded at startup.
var DefaultWells = []models.Well{
	{ID: "1", Name: "Well A", Depth: 5000, Location: "Gulf of Mexico", Status: "active"},
	{ID: "2", Name: "Well AA", Depth: 4500, Location: "North Sea", Status: "active"},
	{ID: "3", Name: "Well AAA", Depth: 5200, Location: "Permian Basin", Status: "active"},
	{ID: "4", Name: "Well B", Depth: 4800, Location: "Eagle Ford", Status: "active"},
	{ID: "5", Name: "Well C", Depth: 5500, Location: "Bakken Formation", Status: "completed"},
	{ID: "6", Name: "Well D", Depth: 4200, Location: "Marcellus Shale", Status: "planned"},
	{ID: "7", Name: "Well E", Depth: 5800, Location: "Haynesville Shale", Status: "active"},
	{ID: "8", Name: "Well F", Depth: 3900, Location: "Barnett Shale", Status: "completed"},
}

// SeedWells upserts the given wells.
func (s *Store) SeedWells(wells []models.Well) error {
	for _, w := range wells {
		if err := s.UpsertWell(w); err != nil {
			return fmt.Errorf("seed well %s: %w", w.ID, err)
		}
	}
	return nil
}
