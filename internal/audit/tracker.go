// Package audit keeps a history of document migrations in a SQL database
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Run statuses
const (
	StatusMigrated = "migrated"
	StatusFailed   = "failed"
)

// Run records the migration of one document
type Run struct {
	BatchID       string
	Filename      string
	Kind          string
	SourceVersion string
	TargetVersion string
	Status        string
	Code          string
	Message       string
	RecordedAt    time.Time
}

// Tracker stores migration runs
type Tracker struct {
	db       *sql.DB
	postgres bool
}

// SupportedDrivers lists the database/sql drivers the tracker can use
var SupportedDrivers = []string{"sqlite3", "pgx", "postgres"}

// Open connects to the audit database
func Open(driver, dsn string) (*Tracker, error) {
	if !isSupported(driver) {
		return nil, fmt.Errorf("unsupported audit driver %q (supported: %s)", driver, strings.Join(SupportedDrivers, ", "))
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach audit database: %w", err)
	}
	return NewTracker(db, driver), nil
}

// NewTracker creates a tracker on an open database. driver selects the SQL dialect.
func NewTracker(db *sql.DB, driver string) *Tracker {
	return &Tracker{db: db, postgres: driver == "pgx" || driver == "postgres"}
}

// Initialize ensures the migration_runs table exists
func (t *Tracker) Initialize(ctx context.Context) error {
	id := "INTEGER PRIMARY KEY AUTOINCREMENT"
	recorded := "TIMESTAMP NOT NULL"
	if t.postgres {
		id = "BIGSERIAL PRIMARY KEY"
		recorded = "TIMESTAMPTZ NOT NULL"
	}

	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS migration_runs (
	id %s,
	batch_id VARCHAR(64) NOT NULL,
	filename VARCHAR(255) NOT NULL,
	kind VARCHAR(64) NOT NULL,
	source_version VARCHAR(32) NOT NULL,
	target_version VARCHAR(32) NOT NULL,
	status VARCHAR(16) NOT NULL,
	code VARCHAR(64) NOT NULL,
	message TEXT NOT NULL,
	recorded_at %s
)`, id, recorded)
	if _, err := t.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to initialize migration_runs table: %w", err)
	}

	index := `CREATE INDEX IF NOT EXISTS idx_migration_runs_batch ON migration_runs(batch_id)`
	if _, err := t.db.ExecContext(ctx, index); err != nil {
		return fmt.Errorf("failed to initialize migration_runs index: %w", err)
	}
	return nil
}

const insertRun = `
INSERT INTO migration_runs (batch_id, filename, kind, source_version, target_version, status, code, message, recorded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// Record stores the runs of one batch in a single transaction
func (t *Tracker) Record(ctx context.Context, runs []Run) (err error) {
	if len(runs) == 0 {
		return nil
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin audit transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	query := t.rebind(insertRun)
	for _, r := range runs {
		recorded := r.RecordedAt
		if recorded.IsZero() {
			recorded = time.Now().UTC()
		}
		if _, err = tx.ExecContext(ctx, query, r.BatchID, r.Filename, r.Kind, r.SourceVersion,
			r.TargetVersion, r.Status, r.Code, r.Message, recorded); err != nil {
			return fmt.Errorf("failed to record run for %s: %w", r.Filename, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit audit transaction: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first
func (t *Tracker) Recent(ctx context.Context, limit int) ([]Run, error) {
	query := t.rebind(`
SELECT batch_id, filename, kind, source_version, target_version, status, code, message, recorded_at
FROM migration_runs
ORDER BY id DESC
LIMIT ?
`)
	rows, err := t.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query migration runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.BatchID, &r.Filename, &r.Kind, &r.SourceVersion, &r.TargetVersion,
			&r.Status, &r.Code, &r.Message, &r.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration runs: %w", err)
	}
	return runs, nil
}

// Close closes the database
func (t *Tracker) Close() error {
	return t.db.Close()
}

// rebind rewrites ? placeholders to $n for postgres drivers
func (t *Tracker) rebind(query string) string {
	if !t.postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isSupported(driver string) bool {
	for _, d := range SupportedDrivers {
		if d == driver {
			return true
		}
	}
	return false
}
