// Package store persists run manifests and per-stage results in a SQLite
// database, so interrupted pipelines can resume and operators can inspect
// stage counts after the fact.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"prospect/internal/stage"
)

// Store wraps the SQLite connection.
type Store struct {
	conn *sql.DB
	Path string
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	created_at  INTEGER NOT NULL,
	config_json TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running'
);
CREATE TABLE IF NOT EXISTS stage_results (
	run_id       TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	stage        TEXT NOT NULL,
	artifact     TEXT NOT NULL,
	accepted     INTEGER NOT NULL,
	rejected     INTEGER NOT NULL,
	malformed    INTEGER NOT NULL,
	violations   INTEGER NOT NULL,
	completed_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, stage)
);
`

// Open opens (or creates) the store with WAL mode and foreign keys
// enabled.
func Open(path string) (*Store, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Store{conn: conn, Path: path}, nil
}

// Close closes the underlying connection.
func (s *Store) Close() error { return s.conn.Close() }

// Run is one pipeline invocation.
type Run struct {
	ID         string
	CreatedAt  int64 // Unix millis
	ConfigJSON string
	Status     string // "running", "completed", "failed"
}

// CreateRun records a new pipeline run and returns its ID.
func (s *Store) CreateRun(configJSON string) (string, error) {
	id := uuid.NewString()
	_, err := s.conn.Exec(
		"INSERT INTO runs (id, created_at, config_json, status) VALUES (?, ?, ?, 'running')",
		id, time.Now().UnixMilli(), configJSON)
	if err != nil {
		return "", fmt.Errorf("creating run: %w", err)
	}
	return id, nil
}

// SetRunStatus updates a run's terminal status.
func (s *Store) SetRunStatus(runID, status string) error {
	res, err := s.conn.Exec("UPDATE runs SET status = ? WHERE id = ?", status, runID)
	if err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("run not found: %s", runID)
	}
	return nil
}

// GetRun fetches one run by ID.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.conn.QueryRow(
		"SELECT id, created_at, config_json, status FROM runs WHERE id = ?", runID)
	var r Run
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.ConfigJSON, &r.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("run not found: %s", runID)
		}
		return nil, err
	}
	return &r, nil
}

// LatestRun returns the most recently created run, or nil if none exist.
func (s *Store) LatestRun() (*Run, error) {
	row := s.conn.QueryRow(
		"SELECT id, created_at, config_json, status FROM runs ORDER BY created_at DESC, id DESC LIMIT 1")
	var r Run
	if err := row.Scan(&r.ID, &r.CreatedAt, &r.ConfigJSON, &r.Status); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

// SaveStageResult upserts a stage's result for a run.
func (s *Store) SaveStageResult(runID string, r stage.Result) error {
	_, err := s.conn.Exec(`
		INSERT INTO stage_results (run_id, stage, artifact, accepted, rejected, malformed, violations, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (run_id, stage) DO UPDATE SET
			artifact = excluded.artifact,
			accepted = excluded.accepted,
			rejected = excluded.rejected,
			malformed = excluded.malformed,
			violations = excluded.violations,
			completed_at = excluded.completed_at`,
		runID, r.Stage, r.Artifact, r.Accepted, r.Rejected, r.Malformed, r.Violations, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("saving stage result %s: %w", r.Stage, err)
	}
	return nil
}

// StageResult returns a run's result for one stage, or nil when the stage
// has not completed.
func (s *Store) StageResult(runID, stageName string) (*stage.Result, error) {
	row := s.conn.QueryRow(`
		SELECT stage, artifact, accepted, rejected, malformed, violations
		FROM stage_results WHERE run_id = ? AND stage = ?`, runID, stageName)
	var r stage.Result
	err := row.Scan(&r.Stage, &r.Artifact, &r.Accepted, &r.Rejected, &r.Malformed, &r.Violations)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// StageResults lists a run's completed stages in completion order.
func (s *Store) StageResults(runID string) ([]stage.Result, error) {
	rows, err := s.conn.Query(`
		SELECT stage, artifact, accepted, rejected, malformed, violations
		FROM stage_results WHERE run_id = ? ORDER BY completed_at, stage`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stage.Result
	for rows.Next() {
		var r stage.Result
		if err := rows.Scan(&r.Stage, &r.Artifact, &r.Accepted, &r.Rejected, &r.Malformed, &r.Violations); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
