package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"unref/internal/deadcode"
)

// RunRecord is one analyzed codebase to be exported.
type RunRecord struct {
	// ID identifies the run. A new UUID is assigned when empty.
	ID string
	// Invocation groups the runs of one analyze command. It is the run ID
	// the command logs with.
	Invocation  string
	ToolVersion string
	Kinds       []deadcode.Kind
	StartedAt   time.Time
	Duration    time.Duration
	Result      *deadcode.Result
}

// Run is a stored run without its findings.
type Run struct {
	ID          string
	Invocation  string
	Codebase    string
	ToolVersion string
	Kinds       []deadcode.Kind
	StartedAt   time.Time
	Duration    time.Duration
	Stats       deadcode.Stats
}

// SaveRun stores a run with its findings and diagnostics in a single
// transaction and returns the run ID.
func (db *DB) SaveRun(ctx context.Context, rec RunRecord) (string, error) {
	if rec.Result == nil {
		return "", exportError(db.dbPath, "run has no result", nil)
	}
	id := rec.ID
	if id == "" {
		id = uuid.NewString()
	}

	kinds := make([]string, len(rec.Kinds))
	for i, k := range rec.Kinds {
		kinds[i] = string(k)
	}
	stats := rec.Result.Stats

	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, invocation, codebase, tool_version, kinds, started_at, duration_ms,
				files, files_skipped, declarations, excluded, classified, unresolved, findings)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, rec.Invocation, rec.Result.Codebase, rec.ToolVersion, strings.Join(kinds, ","),
			rec.StartedAt.UTC().Format(time.RFC3339Nano), rec.Duration.Milliseconds(),
			stats.Files, stats.FilesSkipped, stats.Declarations, stats.Excluded,
			stats.Classified, stats.Unresolved, stats.Findings)
		if err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}

		findingStmt, err := tx.PrepareContext(ctx, `
			INSERT INTO findings (run_id, seq, path, kind, name, line, col)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare finding insert: %w", err)
		}
		defer findingStmt.Close()

		seq := 0
		for _, g := range rec.Result.Report.Groups {
			for _, f := range g.Findings {
				if _, err := findingStmt.ExecContext(ctx, id, seq, g.Path, string(f.Kind), f.Name, f.Position.Line, f.Position.Column); err != nil {
					return fmt.Errorf("failed to insert finding: %w", err)
				}
				seq++
			}
		}

		return insertDiagnostics(ctx, tx, `
			INSERT INTO diagnostics (run_id, seq, severity, code, path, name, line, col, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, id, rec.Result.Diagnostics)
	})
	if err != nil {
		return "", exportError(db.dbPath, "failed to save run", err)
	}

	db.logger.Debug("Saved run",
		"run", id,
		"codebase", rec.Result.Codebase,
		"findings", rec.Result.Report.Len(),
		"diagnostics", len(rec.Result.Diagnostics))
	return id, nil
}

// Runs lists the stored runs of a codebase, newest first. An empty codebase
// lists every run.
func (db *DB) Runs(ctx context.Context, codebase string) ([]Run, error) {
	query := `
		SELECT id, invocation, codebase, tool_version, kinds, started_at, duration_ms,
			files, files_skipped, declarations, excluded, classified, unresolved, findings
		FROM runs`
	var args []any
	if codebase != "" {
		query += " WHERE codebase = ?"
		args = append(args, codebase)
	}
	query += " ORDER BY started_at DESC, id"

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r          Run
			kinds      string
			startedAt  string
			durationMs int64
		)
		if err := rows.Scan(&r.ID, &r.Invocation, &r.Codebase, &r.ToolVersion, &kinds, &startedAt, &durationMs,
			&r.Stats.Files, &r.Stats.FilesSkipped, &r.Stats.Declarations, &r.Stats.Excluded,
			&r.Stats.Classified, &r.Stats.Unresolved, &r.Stats.Findings); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if kinds != "" {
			for _, k := range strings.Split(kinds, ",") {
				r.Kinds = append(r.Kinds, deadcode.Kind(k))
			}
		}
		r.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse start time of run %s: %w", r.ID, err)
		}
		r.Duration = time.Duration(durationMs) * time.Millisecond
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Findings returns the findings of a run in report order.
func (db *DB) Findings(ctx context.Context, runID string) ([]deadcode.Finding, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT path, kind, name, line, col
		FROM findings
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []deadcode.Finding
	for rows.Next() {
		var f deadcode.Finding
		var kind string
		if err := rows.Scan(&f.Path, &kind, &f.Name, &f.Position.Line, &f.Position.Column); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		f.Kind = deadcode.Kind(kind)
		findings = append(findings, f)
	}
	return findings, rows.Err()
}

// Diagnostics returns the diagnostics of a run in report order.
func (db *DB) Diagnostics(ctx context.Context, runID string) ([]deadcode.Diagnostic, error) {
	return db.queryDiagnostics(ctx, `
		SELECT severity, code, path, name, line, col, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY seq
	`, runID)
}

// SaveLoadDiagnostics stores the diagnostics of inputs an invocation could
// not load. They belong to no run, so they are keyed by invocation.
func (db *DB) SaveLoadDiagnostics(ctx context.Context, invocation string, diags []deadcode.Diagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		return insertDiagnostics(ctx, tx, `
			INSERT INTO load_diagnostics (invocation, seq, severity, code, path, name, line, col, message)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, invocation, diags)
	})
	if err != nil {
		return exportError(db.dbPath, "failed to save load diagnostics", err)
	}
	db.logger.Debug("Saved load diagnostics", "run", invocation, "diagnostics", len(diags))
	return nil
}

// LoadDiagnostics returns the load diagnostics of an invocation in input order.
func (db *DB) LoadDiagnostics(ctx context.Context, invocation string) ([]deadcode.Diagnostic, error) {
	return db.queryDiagnostics(ctx, `
		SELECT severity, code, path, name, line, col, message
		FROM load_diagnostics
		WHERE invocation = ?
		ORDER BY seq
	`, invocation)
}

// insertDiagnostics inserts diags under key, numbering them in order.
func insertDiagnostics(ctx context.Context, tx *sql.Tx, query, key string, diags []deadcode.Diagnostic) error {
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to prepare diagnostic insert: %w", err)
	}
	defer stmt.Close()

	for i, d := range diags {
		var line, col sql.NullInt64
		if d.Position != nil {
			line = sql.NullInt64{Int64: int64(d.Position.Line), Valid: true}
			col = sql.NullInt64{Int64: int64(d.Position.Column), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, key, i, string(d.Severity), string(d.Code),
			nullString(d.Path), nullString(d.Name), line, col, d.Message); err != nil {
			return fmt.Errorf("failed to insert diagnostic: %w", err)
		}
	}
	return nil
}

func (db *DB) queryDiagnostics(ctx context.Context, query, key string) ([]deadcode.Diagnostic, error) {
	rows, err := db.conn.QueryContext(ctx, query, key)
	if err != nil {
		return nil, fmt.Errorf("failed to query diagnostics: %w", err)
	}
	defer rows.Close()

	var diags []deadcode.Diagnostic
	for rows.Next() {
		var (
			d              deadcode.Diagnostic
			severity, code string
			path, name     sql.NullString
			line, col      sql.NullInt64
		)
		if err := rows.Scan(&severity, &code, &path, &name, &line, &col, &d.Message); err != nil {
			return nil, fmt.Errorf("failed to scan diagnostic: %w", err)
		}
		d.Severity = deadcode.Severity(severity)
		d.Code = deadcode.DiagnosticCode(code)
		d.Path = path.String
		d.Name = name.String
		if line.Valid {
			d.Position = &deadcode.Position{Line: int(line.Int64), Column: int(col.Int64)}
		}
		diags = append(diags, d)
	}
	return diags, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
