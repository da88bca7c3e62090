package database

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one named, ordered, additive schema step. Run must be
// idempotent: it probes for the shape it is about to add and skips work
// that is already there, so a re-invocation after a partial failure is
// always safe.
type migration struct {
	ID  string
	Run func(ctx context.Context, db *sql.DB) error
}

// versionStore records which migration ids have been applied.
type versionStore interface {
	HasApplied(ctx context.Context, id string) (bool, error)
	RecordApplied(ctx context.Context, id string) error
}

type sqlVersionStore struct {
	db *sql.DB
}

func (s *sqlVersionStore) ensure(ctx context.Context) error {
	const query = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    id VARCHAR(128) NOT NULL PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
)`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	return nil
}

func (s *sqlVersionStore) HasApplied(ctx context.Context, id string) (bool, error) {
	const query = `SELECT COUNT(*) FROM schema_migrations WHERE id = ?`
	var count int
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&count); err != nil {
		return false, fmt.Errorf("query schema_migrations: %w", err)
	}
	return count > 0, nil
}

func (s *sqlVersionStore) RecordApplied(ctx context.Context, id string) error {
	const query = `INSERT IGNORE INTO schema_migrations (id) VALUES (?)`
	if _, err := s.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("insert schema_migrations: %w", err)
	}
	return nil
}

// Migrate brings the store to the shape the engine expects, applying
// pending steps in declaration order. It stops at the first failing step
// and reports which one failed; additive steps are safe to retry after the
// underlying cause is fixed.
func Migrate(ctx context.Context, db *sql.DB) error {
	store := &sqlVersionStore{db: db}
	if err := store.ensure(ctx); err != nil {
		return fmt.Errorf("init schema version store: %w", err)
	}
	return runMigrations(ctx, store, migrations(), db)
}

func runMigrations(ctx context.Context, store versionStore, steps []migration, db *sql.DB) error {
	for _, m := range steps {
		applied, err := store.HasApplied(ctx, m.ID)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", m.ID, err)
		}
		if applied {
			continue
		}
		if err := m.Run(ctx, db); err != nil {
			return fmt.Errorf("migration %s: %w", m.ID, err)
		}
		if err := store.RecordApplied(ctx, m.ID); err != nil {
			return fmt.Errorf("record migration %s: %w", m.ID, err)
		}
	}
	return nil
}
