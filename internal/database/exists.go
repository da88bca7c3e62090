package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Existence probes against information_schema. Migration steps test shape
// explicitly instead of catching DDL errors, so a step that partially ran
// before a crash can be retried from scratch.

func tableExists(ctx context.Context, db *sql.DB, table string) (bool, error) {
	const query = `
SELECT COUNT(*) FROM information_schema.tables
WHERE table_schema = DATABASE() AND table_name = ?`
	var count int
	if err := db.QueryRowContext(ctx, query, table).Scan(&count); err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	return count > 0, nil
}

func columnExists(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	const query = `
SELECT COUNT(*) FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	var count int
	if err := db.QueryRowContext(ctx, query, table, column).Scan(&count); err != nil {
		return false, fmt.Errorf("check column %s.%s: %w", table, column, err)
	}
	return count > 0, nil
}

func columnNullable(ctx context.Context, db *sql.DB, table, column string) (bool, error) {
	const query = `
SELECT IS_NULLABLE FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	var nullable string
	if err := db.QueryRowContext(ctx, query, table, column).Scan(&nullable); err != nil {
		return false, fmt.Errorf("check nullability %s.%s: %w", table, column, err)
	}
	return nullable == "YES", nil
}

func indexExists(ctx context.Context, db *sql.DB, table, index string) (bool, error) {
	const query = `
SELECT COUNT(*) FROM information_schema.statistics
WHERE table_schema = DATABASE() AND table_name = ? AND index_name = ?`
	var count int
	if err := db.QueryRowContext(ctx, query, table, index).Scan(&count); err != nil {
		return false, fmt.Errorf("check index %s.%s: %w", table, index, err)
	}
	return count > 0, nil
}

func constraintExists(ctx context.Context, db *sql.DB, table, constraint string) (bool, error) {
	const query = `
SELECT COUNT(*) FROM information_schema.table_constraints
WHERE constraint_schema = DATABASE() AND table_name = ? AND constraint_name = ?`
	var count int
	if err := db.QueryRowContext(ctx, query, table, constraint).Scan(&count); err != nil {
		return false, fmt.Errorf("check constraint %s.%s: %w", table, constraint, err)
	}
	return count > 0, nil
}
