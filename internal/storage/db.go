// Package storage exports analysis runs to a SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"unref/internal/errors"
)

// DB is an open export database.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
	dbPath string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA foreign_keys=ON",
	"PRAGMA busy_timeout=5000",
}

// Open opens or creates the database at dbPath and brings its schema up to
// date. A nil logger discards.
func Open(dbPath string, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, exportError(dbPath, "failed to create directory", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, exportError(dbPath, "failed to open database", err)
	}
	db := &DB{conn: conn, logger: logger, dbPath: dbPath}

	if err := db.prepare(context.Background()); err != nil {
		_ = conn.Close()
		return nil, exportError(dbPath, "failed to prepare database", err)
	}
	return db, nil
}

func (db *DB) prepare(ctx context.Context) error {
	for _, p := range pragmas {
		if _, err := db.conn.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return db.migrate(ctx)
}

func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// WithTx runs fn in a transaction, committing when fn returns nil and rolling
// back otherwise or on panic.
func (db *DB) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if rbErr := tx.Rollback(); rbErr != nil && err != nil {
			db.logger.Error("Rollback failed", "error", err, "rollback_error", rbErr)
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func exportError(path, what string, cause error) error {
	return errors.NewUnrefError(
		errors.ExportFailed,
		fmt.Sprintf("SQLite export to %s: %s", path, what),
		cause,
		nil,
	)
}
