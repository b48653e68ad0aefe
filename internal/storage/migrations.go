/*
Package storage provides SQLite database migrations.

This file contains the relational rendition of the event graph: one table
per node label and one per relationship that is not a plain foreign key.
*/
package storage

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
)

// migration represents a single database migration.
type migration struct {
	version int
	name    string
	up      func(ctx context.Context, tx *sql.Tx) error
}

var migrations = []migration{
	{version: 1, name: "event_graph", up: migration001EventGraph},
	{version: 2, name: "graph_indexes", up: migration002GraphIndexes},
}

// runMigrations executes pending schema migrations in order, each in its own
// transaction.
func (s *SQLiteStore) runMigrations(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	var current int
	if err := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	for _, m := range migrations {
		if current >= m.version {
			continue
		}

		s.logger.Info("running migration", zap.Int("version", m.version), zap.String("name", m.name))

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := m.up(ctx, tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES (?, ?)", m.version, m.name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d: %w", m.version, err)
		}
	}

	return nil
}

// schemaVersion returns the highest applied migration version.
func (s *SQLiteStore) schemaVersion(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	db, err := s.handle(ctx, "schema_version")
	if err != nil {
		return 0, err
	}

	var version int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func migration001EventGraph(ctx context.Context, tx *sql.Tx) error {
	statements := []struct {
		table string
		ddl   string
	}{
		{"platforms", `
			CREATE TABLE IF NOT EXISTS platforms (
				name TEXT PRIMARY KEY
			)`},
		{"tools", `
			CREATE TABLE IF NOT EXISTS tools (
				id TEXT PRIMARY KEY,
				platform TEXT REFERENCES platforms(name)
			)`},
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY
			)`},
		{"sessions", `
			CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL REFERENCES users(id)
			)`},
		{"jobs", `
			CREATE TABLE IF NOT EXISTS jobs (
				id TEXT PRIMARY KEY,
				session_id TEXT NOT NULL REFERENCES sessions(id),
				tool_id TEXT NOT NULL REFERENCES tools(id),
				timestamp TEXT NOT NULL
			)`},
		{"job_precedes", `
			CREATE TABLE IF NOT EXISTS job_precedes (
				prev_job_id TEXT NOT NULL REFERENCES jobs(id),
				next_job_id TEXT NOT NULL REFERENCES jobs(id),
				PRIMARY KEY (prev_job_id, next_job_id)
			)`},
	}

	for _, st := range statements {
		if _, err := tx.ExecContext(ctx, st.ddl); err != nil {
			return fmt.Errorf("failed to create %s table: %w", st.table, err)
		}
	}
	return nil
}

func migration002GraphIndexes(ctx context.Context, tx *sql.Tx) error {
	indexes := []string{
		`CREATE INDEX IF NOT EXISTS idx_jobs_tool_session ON jobs(tool_id, session_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_session_tool ON jobs(session_id, tool_id)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_user ON sessions(user_id)`,
	}
	for _, ddl := range indexes {
		if _, err := tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
