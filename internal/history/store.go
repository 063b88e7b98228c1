// Package history persists pipeline runs and their ranked candidates to a
// local sqlite database for the history CLI commands.
package history

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"clipmatch/internal/services"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

// Store wraps the sqlite database holding run history.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the history database at path and verifies
// the schema version.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, services.Wrap(services.ErrConfig, "history", "open", "history path is empty", nil)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfig, "history", "open", "history directory could not be created", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, services.Wrap(nil, "history", "open", "history database could not be opened", err)
	}
	store := &Store{db: db, path: path}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) init(ctx context.Context) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := s.db.ExecContext(ctx, pragma); err != nil {
			return services.Wrap(nil, "history", "open", "pragma failed", err)
		}
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return services.Wrap(nil, "history", "open", "schema apply failed", err)
	}

	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return services.Wrap(nil, "history", "open", "schema version insert failed", err)
		}
	case err != nil:
		return services.Wrap(nil, "history", "open", "schema version read failed", err)
	case version != schemaVersion:
		return services.Wrap(services.ErrConfig, "history", "open",
			fmt.Sprintf("history database is schema v%d, this build expects v%d", version, schemaVersion), nil)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun records the start of a pipeline run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, headline string, personMode bool) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, headline, person_mode, started_at) VALUES (?, ?, ?, ?)",
		id, headline, boolToInt(personMode), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", services.Wrap(nil, "history", "begin_run", "run insert failed", err)
	}
	return id, nil
}

// FinishRun records a run's terminal outcome.
func (s *Store) FinishRun(ctx context.Context, runID, outcome, detail string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, outcome = ?, detail = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), outcome, detail, runID)
	if err != nil {
		return services.Wrap(nil, "history", "finish_run", "run update failed", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.Wrap(services.ErrNotFound, "history", "finish_run", "run not found", nil)
	}
	return nil
}

// RecordCandidates stores the ranked candidates for a run in one transaction.
func (s *Store) RecordCandidates(ctx context.Context, runID string, candidates []CandidateRecord) error {
	if len(candidates) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return services.Wrap(nil, "history", "record_candidates", "transaction begin failed", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO run_candidates (run_id, rank, url, title, text_score, visual_score, final_score, skip_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return services.Wrap(nil, "history", "record_candidates", "statement prepare failed", err)
	}
	defer stmt.Close()

	for _, c := range candidates {
		if _, err := stmt.ExecContext(ctx, runID, c.Rank, c.URL, c.Title,
			c.TextScore, c.VisualScore, c.FinalScore, c.SkipReason); err != nil {
			return services.Wrap(nil, "history", "record_candidates", "candidate insert failed", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return services.Wrap(nil, "history", "record_candidates", "transaction commit failed", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, headline, person_mode, started_at, finished_at, outcome, detail
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, services.Wrap(nil, "history", "list_runs", "run query failed", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			personMode int
			started    string
			finished   sql.NullString
		)
		if err := rows.Scan(&run.ID, &run.Headline, &personMode, &started, &finished, &run.Outcome, &run.Detail); err != nil {
			return nil, services.Wrap(nil, "history", "list_runs", "run scan failed", err)
		}
		run.PersonMode = personMode != 0
		run.StartedAt, _ = time.Parse(time.RFC3339, started)
		if finished.Valid {
			run.FinishedAt, _ = time.Parse(time.RFC3339, finished.String)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, services.Wrap(nil, "history", "list_runs", "run iteration failed", err)
	}
	return runs, nil
}

// Candidates returns the recorded candidates for one run in rank order.
func (s *Store) Candidates(ctx context.Context, runID string) ([]CandidateRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT rank, url, title, text_score, visual_score, final_score, skip_reason
		 FROM run_candidates WHERE run_id = ? ORDER BY rank`, runID)
	if err != nil {
		return nil, services.Wrap(nil, "history", "candidates", "candidate query failed", err)
	}
	defer rows.Close()

	var records []CandidateRecord
	for rows.Next() {
		var c CandidateRecord
		if err := rows.Scan(&c.Rank, &c.URL, &c.Title, &c.TextScore, &c.VisualScore, &c.FinalScore, &c.SkipReason); err != nil {
			return nil, services.Wrap(nil, "history", "candidates", "candidate scan failed", err)
		}
		records = append(records, c)
	}
	return records, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
