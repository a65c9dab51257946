// Package trainlog persists per-step loss components so training runs
// can be compared and charted after the fact. Storage is a single
// sqlite file; the schema ships as embedded migrations.
package trainlog

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/kestrel-vision/detcore/internal/loss"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store records training runs and their per-step loss components.
type Store struct {
	db *sql.DB
}

// Run identifies one recorded training run.
type Run struct {
	ID        string
	Note      string
	StartedAt time.Time
}

// StepRecord is one step's loss breakdown as stored.
type StepRecord struct {
	Step   int
	Epoch  int
	Total  float64
	IoU    float64
	DFL    float64
	Class  float64
	Gating *float64
}

// Open opens (creating if needed) the store at path and applies any
// pending schema migrations.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trainlog: open %s: %w", path, err)
	}
	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("trainlog: load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("trainlog: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("trainlog: migrator: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("trainlog: migrate up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// StartRun registers a new run and returns its id.
func (s *Store) StartRun(note string) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(`INSERT INTO runs (run_id, note) VALUES (?, ?)`, id, note)
	if err != nil {
		return "", fmt.Errorf("trainlog: start run: %w", err)
	}
	return id, nil
}

// RecordStep stores one step's loss breakdown for a run.
func (s *Store) RecordStep(runID string, step, epoch int, total float64, bd loss.Breakdown) error {
	var gating any
	if bd.HasGating {
		gating = bd.Gating
	}
	_, err := s.db.Exec(
		`INSERT INTO steps (run_id, step, epoch, total, iou, dfl, class, gating)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, step, epoch, total, bd.IoU, bd.DFL, bd.Class, gating,
	)
	if err != nil {
		return fmt.Errorf("trainlog: record step %d: %w", step, err)
	}
	return nil
}

// Steps returns a run's records in step order.
func (s *Store) Steps(runID string) ([]StepRecord, error) {
	rows, err := s.db.Query(
		`SELECT step, epoch, total, iou, dfl, class, gating
		 FROM steps WHERE run_id = ? ORDER BY step`, runID)
	if err != nil {
		return nil, fmt.Errorf("trainlog: query steps: %w", err)
	}
	defer rows.Close()

	var out []StepRecord
	for rows.Next() {
		var r StepRecord
		var gating sql.NullFloat64
		if err := rows.Scan(&r.Step, &r.Epoch, &r.Total, &r.IoU, &r.DFL, &r.Class, &gating); err != nil {
			return nil, fmt.Errorf("trainlog: scan step: %w", err)
		}
		if gating.Valid {
			v := gating.Float64
			r.Gating = &v
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Runs lists all recorded runs, most recent first.
func (s *Store) Runs() ([]Run, error) {
	rows, err := s.db.Query(`SELECT run_id, note, started_at FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("trainlog: query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Note, &r.StartedAt); err != nil {
			return nil, fmt.Errorf("trainlog: scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
