package runstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion tracks schema.sql. History written under another version is
// discarded on open rather than migrated.
const schemaVersion = 1

// historyTables lists the tables to drop on reset, children first.
var historyTables = []string{"run_failures", "runs", "schema_version"}

func (s *Store) initSchema(ctx context.Context) error {
	version, err := s.storedVersion(ctx)
	if err != nil {
		return err
	}
	switch version {
	case schemaVersion:
		return nil
	case 0:
		return s.applySchema(ctx, false)
	default:
		return s.applySchema(ctx, true)
	}
}

// storedVersion reports the recorded schema version: 0 for a fresh database,
// -1 when the version table exists but is empty.
func (s *Store) storedVersion(ctx context.Context) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	switch {
	case err == nil:
		return version, nil
	case errors.Is(err, sql.ErrNoRows):
		return -1, nil
	}

	var tables int
	if qerr := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tables); qerr != nil {
		return 0, fmt.Errorf("inspect run history schema: %w", qerr)
	}
	if tables == 0 {
		return 0, nil
	}
	return 0, fmt.Errorf("read schema version of %s: %w", s.path, err)
}

func (s *Store) applySchema(ctx context.Context, reset bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if reset {
		for _, table := range historyTables {
			if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+table); err != nil {
				return fmt.Errorf("drop %s: %w", table, err)
			}
		}
	}
	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create run history schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	return tx.Commit()
}
