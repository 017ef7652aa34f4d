package runstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"storyvox/internal/config"
	"storyvox/internal/pipeline"
)

// DefaultListLimit bounds List when the caller passes no limit.
const DefaultListLimit = 50

const runColumns = "id, kind, status, total_items, succeeded, failed, output, error, started_at, finished_at"

// Run is one persisted run.
type Run struct {
	ID         string                 `json:"id"`
	Kind       string                 `json:"kind"`
	Status     string                 `json:"status"`
	TotalItems int                    `json:"totalItems"`
	Succeeded  int                    `json:"succeeded"`
	Failed     int                    `json:"failed"`
	Output     string                 `json:"output,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"startedAt"`
	FinishedAt time.Time              `json:"finishedAt,omitzero"`
	Failures   []pipeline.ItemFailure `json:"failures,omitempty"`
}

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open creates or opens the run database under the configured state directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.RunStorePath())
}

// OpenPath opens the run database at dbPath.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// RunStarted inserts a running row for rec.
func (s *Store) RunStarted(ctx context.Context, rec pipeline.RunRecord) error {
	if rec.ID == "" {
		return errors.New("run id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, total_items, started_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET status = excluded.status, total_items = excluded.total_items`,
		rec.ID,
		rec.Kind,
		rec.State.String(),
		rec.Total,
		formatTime(rec.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// RunFinished stores the outcome of rec together with its item failures.
func (s *Store) RunFinished(ctx context.Context, rec pipeline.RunRecord) error {
	if rec.ID == "" {
		return errors.New("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin run tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, total_items, succeeded, failed, output, error, started_at, finished_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             total_items = excluded.total_items,
             succeeded = excluded.succeeded,
             failed = excluded.failed,
             output = excluded.output,
             error = excluded.error,
             finished_at = excluded.finished_at`,
		rec.ID,
		rec.Kind,
		rec.State.String(),
		rec.Total,
		rec.Succeeded,
		len(rec.Failures),
		nullableString(rec.Output),
		nullableString(rec.Error),
		formatTime(rec.StartedAt),
		nullableTime(rec.FinishedAt),
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM run_failures WHERE run_id = ?", rec.ID); err != nil {
		return fmt.Errorf("clear run failures: %w", err)
	}
	for _, f := range rec.Failures {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_failures (run_id, item_index, reason) VALUES (?, ?, ?)",
			rec.ID, f.ItemIndex, f.Reason,
		); err != nil {
			return fmt.Errorf("insert run failure: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// Get returns the run with id, or nil when it does not exist.
func (s *Store) Get(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	failures, err := s.failures(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Failures = failures
	return run, nil
}

// List returns the most recent runs, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	for i := range runs {
		if runs[i].Failed == 0 {
			continue
		}
		failures, err := s.failures(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Failures = failures
	}
	return runs, nil
}

// Prune deletes finished runs that started before cutoff and reports how
// many were removed.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE finished_at IS NOT NULL AND started_at < ?", formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) failures(ctx context.Context, runID string) ([]pipeline.ItemFailure, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT item_index, reason FROM run_failures WHERE run_id = ? ORDER BY item_index", runID)
	if err != nil {
		return nil, fmt.Errorf("list run failures: %w", err)
	}
	defer rows.Close()

	var out []pipeline.ItemFailure
	for rows.Next() {
		var f pipeline.ItemFailure
		if err := rows.Scan(&f.ItemIndex, &f.Reason); err != nil {
			return nil, fmt.Errorf("scan run failure: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
