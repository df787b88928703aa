// Package sqlite provides a SQLite implementation of the ports.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ersonp/spellstock-core/internal/infrastructure/config"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// Repository implements ports.Store using SQLite.
type Repository struct {
	db   *sql.DB
	path string
}

// NewRepository creates a new SQLite repository.
func NewRepository(cfg config.SQLiteConfig) (*Repository, error) {
	if cfg.Path == "" {
		return nil, errors.New("sqlite path is required")
	}

	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// SQLite has a single writer; one connection also keeps :memory:
	// databases shared across calls.
	db.SetMaxOpenConns(1)

	// Set busy timeout to avoid "database is locked" errors
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable foreign keys for referential integrity
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	// Enable WAL mode for better concurrent read/write performance
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	return &Repository{
		db:   db,
		path: cfg.Path,
	}, nil
}

// Close closes the database connection.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Path returns the database file path.
func (r *Repository) Path() string {
	return r.path
}

// EnsureSchema creates the database schema if it doesn't exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	schema := `
	-- Admitted alerts; only superseded_by changes after insert
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		restaurant_id INTEGER NOT NULL,
		ingredient_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		message TEXT NOT NULL,
		risk_event TEXT NOT NULL,
		historical_context TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		superseded_by TEXT REFERENCES alerts(id)
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_key ON alerts(restaurant_id, ingredient_id, event_type, created_at);

	-- Actions; status only changes through compare-and-swap updates
	CREATE TABLE IF NOT EXISTS actions (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		action_type TEXT NOT NULL,
		status TEXT NOT NULL,
		risk_level TEXT NOT NULL,
		owner_role TEXT NOT NULL,
		payload TEXT NOT NULL,
		reason TEXT NOT NULL,
		expected_impact TEXT,
		requires_approval INTEGER NOT NULL DEFAULT 0,
		alert_id TEXT,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		execution_result TEXT,
		execution_error TEXT,
		marked_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_actions_status ON actions(status);

	-- Append-only transition log, hash chained in id order
	CREATE TABLE IF NOT EXISTS audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		action_id TEXT NOT NULL REFERENCES actions(id),
		event TEXT NOT NULL,
		prior_status TEXT,
		new_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		notes TEXT,
		snapshot TEXT NOT NULL,
		ts INTEGER NOT NULL,
		prev_hash TEXT NOT NULL,
		entry_hash TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action_id);
	CREATE INDEX IF NOT EXISTS idx_audit_log_status ON audit_log(new_status);

	CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
	BEGIN SELECT RAISE(ABORT, 'audit log is append-only'); END;
	CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
	BEGIN SELECT RAISE(ABORT, 'audit log is append-only'); END;
	`

	_, err := r.db.ExecContext(ctx, schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return r.ensureColumn(ctx, "actions", "marked_at", "INTEGER")
}

// ensureColumn adds a column missing from a table created by an older schema.
func (r *Repository) ensureColumn(ctx context.Context, table, column, decl string) error {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("reading %s columns: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("reading %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("reading %s columns: %w", table, err)
	}
	rows.Close()

	if _, err := r.db.ExecContext(ctx, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, table, column, decl)); err != nil {
		return fmt.Errorf("adding %s.%s: %w", table, column, err)
	}
	return nil
}

// dbtx is the subset of *sql.DB, *sql.Conn and *sql.Tx the queries need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// withTx runs fn inside a write transaction, committing on success. The
// transaction starts with BEGIN IMMEDIATE so the write lock is taken before
// the first read; other processes sharing the file wait on busy_timeout
// instead of interleaving a read-then-write.
func (r *Repository) withTx(ctx context.Context, fn func(tx dbtx) error) error {
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	// The rollback must run even if ctx was cancelled mid-transaction.
	rollback := func() { _, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK") }

	if err := fn(conn); err != nil {
		rollback()
		return err
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		rollback()
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Times are stored as UTC unix nanoseconds so ordering and audit hashes
// survive the round trip.
func toUnix(t time.Time) int64 {
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toUnix(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
