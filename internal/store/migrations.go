package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// schemaVersion is stored in PRAGMA user_version. Version 0 means the
// database file is new.
const schemaVersion = 1

const schemaV1 = `
CREATE TABLE IF NOT EXISTS catalog_records (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    name       TEXT NOT NULL,
    cover      TEXT NOT NULL DEFAULT '',
    content    TEXT NOT NULL CHECK (length(content) > 0),
    created_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_catalog_records_name ON catalog_records(name);
`

// migrate creates the schema on first open and leaves it untouched after.
// It returns the version found on disk before migrating.
func migrate(ctx context.Context, db *sqlx.DB) (int, error) {
	var current int
	if err := db.GetContext(ctx, &current, "PRAGMA user_version"); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	switch {
	case current == schemaVersion:
		return current, nil
	case current > schemaVersion:
		return current, fmt.Errorf("schema version %d is newer than supported version %d", current, schemaVersion)
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return current, fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return current, fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return current, fmt.Errorf("set schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return current, fmt.Errorf("commit migration: %w", err)
	}
	return current, nil
}
