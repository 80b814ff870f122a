package results

import (
	"context"
	"database/sql"
	"fmt"
)

// SchemaVersion is the current schema version.
const SchemaVersion = 1

// schemaV1 is the initial schema for the result store.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    started_at TEXT NOT NULL,
    corpus_path TEXT,
    params TEXT NOT NULL,  -- JSON experiment parameters
    num_trials INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trials (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,

    -- Trial parameters
    language INTEGER NOT NULL,
    noise REAL NOT NULL,
    rate REAL NOT NULL,
    conservative_rate REAL NOT NULL,
    num_sentences INTEGER NOT NULL,

    -- Outcome
    target_language INTEGER NOT NULL,
    timestamp TEXT NOT NULL,
    duration_ns INTEGER NOT NULL,
    in_language_draws INTEGER NOT NULL,
    noise_draws INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trials_run ON trials(run_id);
CREATE INDEX IF NOT EXISTS idx_trials_language_noise ON trials(language, noise);

-- Final grammar weights, one row per parameter
CREATE TABLE IF NOT EXISTS trial_grammar (
    trial_id INTEGER NOT NULL REFERENCES trials(id) ON DELETE CASCADE,
    parameter TEXT NOT NULL,
    weight REAL NOT NULL,
    PRIMARY KEY (trial_id, parameter)
);

CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TEXT NOT NULL
);
`

// InitSchema initializes the database schema.
// It creates all tables on a fresh database and applies migrations as needed.
func InitSchema(ctx context.Context, db *sql.DB) error {
	currentVersion, err := getSchemaVersion(ctx, db)
	if err != nil {
		// Schema version table doesn't exist yet, create fresh schema
		if err := createSchema(ctx, db); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		return nil
	}

	if currentVersion > SchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", currentVersion, SchemaVersion)
	}

	if currentVersion < SchemaVersion {
		if err := migrateSchema(ctx, db, currentVersion); err != nil {
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	return nil
}

// getSchemaVersion returns the current schema version from the database.
// Returns 0 and an error if the schema_version table doesn't exist.
func getSchemaVersion(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_version`).Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaV1); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_version (version, applied_at) VALUES (?, datetime('now'))`,
		SchemaVersion); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}

	return tx.Commit()
}

// migrateSchema applies migrations from currentVersion to SchemaVersion.
// Version 0 is a database whose schema creation never recorded a version.
func migrateSchema(ctx context.Context, db *sql.DB, currentVersion int) error {
	switch currentVersion {
	case 0:
		return createSchema(ctx, db)
	default:
		return fmt.Errorf("no migration path from schema version %d", currentVersion)
	}
}
