package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] upgrades a database from schema version i to i+1.
var migrations = [][]string{
	{
		`CREATE TABLE runs (
			id TEXT PRIMARY KEY,
			codebase TEXT NOT NULL,
			tool_version TEXT NOT NULL,
			kinds TEXT NOT NULL,
			started_at TEXT NOT NULL,
			duration_ms INTEGER NOT NULL,
			files INTEGER NOT NULL,
			files_skipped INTEGER NOT NULL,
			declarations INTEGER NOT NULL,
			excluded INTEGER NOT NULL,
			classified INTEGER NOT NULL,
			unresolved INTEGER NOT NULL,
			findings INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_runs_codebase ON runs(codebase, started_at)`,
		`CREATE TABLE findings (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			path TEXT NOT NULL,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			line INTEGER NOT NULL,
			col INTEGER NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
		`CREATE INDEX idx_findings_path ON findings(path)`,
		`CREATE INDEX idx_findings_name ON findings(name)`,
		`CREATE TABLE diagnostics (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			severity TEXT NOT NULL CHECK(severity IN ('warning', 'error')),
			code TEXT NOT NULL,
			path TEXT,
			name TEXT,
			line INTEGER,
			col INTEGER,
			message TEXT NOT NULL,
			PRIMARY KEY (run_id, seq)
		)`,
	},
	{
		`ALTER TABLE runs ADD COLUMN invocation TEXT NOT NULL DEFAULT ''`,
		`CREATE INDEX idx_runs_invocation ON runs(invocation)`,
		`CREATE TABLE load_diagnostics (
			invocation TEXT NOT NULL,
			seq INTEGER NOT NULL,
			severity TEXT NOT NULL CHECK(severity IN ('warning', 'error')),
			code TEXT NOT NULL,
			path TEXT,
			name TEXT,
			line INTEGER,
			col INTEGER,
			message TEXT NOT NULL,
			PRIMARY KEY (invocation, seq)
		)`,
	},
}

var currentSchemaVersion = len(migrations)

// migrate applies the migrations a database lacks, each in its own
// transaction. Databases written by a newer unref are refused.
func (db *DB) migrate(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}
	version, err := db.schemaVersion(ctx)
	if err != nil {
		return err
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	for v := version; v < currentSchemaVersion; v++ {
		db.logger.Debug("Migrating database", "path", db.dbPath, "from", v, "to", v+1)
		err := db.WithTx(ctx, func(tx *sql.Tx) error {
			for _, stmt := range migrations[v] {
				if _, err := tx.ExecContext(ctx, stmt); err != nil {
					return err
				}
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version"); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", v+1)
			return err
		})
		if err != nil {
			return fmt.Errorf("migration to version %d: %w", v+1, err)
		}
	}
	return nil
}

// schemaVersion returns 0 for a database without recorded version.
func (db *DB) schemaVersion(ctx context.Context) (int, error) {
	var version int
	err := db.conn.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return version, err
}
