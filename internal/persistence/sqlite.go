package persistence

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite wraps a sqlx handle on a local database file.
type SQLite struct {
	DB *sqlx.DB
}

// NewSQLite opens (or creates) the database at path, enables WAL and foreign keys,
// and applies any pending schema migrations.
func NewSQLite(path string, logger *zap.Logger) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One writer at a time keeps conditional flag updates serialised.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &SQLite{DB: db}
	applied, err := s.migrate()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run sqlite migrations: %w", err)
	}
	logger.Info("opened sqlite store", zap.String("path", path), zap.Int("migrations_applied", applied))
	return s, nil
}

// Ping verifies the database file is usable.
func (s *SQLite) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close closes the database.
func (s *SQLite) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

func (s *SQLite) migrate() (int, error) {
	if _, err := s.DB.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return 0, fmt.Errorf("create schema_version: %w", err)
	}

	current := 0
	if err := s.DB.Get(&current, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}

	applied := 0
	for _, m := range sqliteMigrations {
		if m.version <= current {
			continue
		}
		tx, err := s.DB.Beginx()
		if err != nil {
			return applied, err
		}
		if _, err := tx.Exec(m.sql); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("apply migration v%d: %w", m.version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", m.version); err != nil {
			_ = tx.Rollback()
			return applied, fmt.Errorf("record migration v%d: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return applied, err
		}
		applied++
	}
	return applied, nil
}

type sqliteMigration struct {
	version int
	sql     string
}

// Timestamps are stored as Unix nanoseconds.
var sqliteMigrations = []sqliteMigration{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS staff_members (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	email      TEXT NOT NULL DEFAULT '',
	active     INTEGER NOT NULL DEFAULT 1,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS tickets (
	id                TEXT PRIMARY KEY,
	external_key      TEXT NOT NULL UNIQUE,
	requester_email   TEXT NOT NULL DEFAULT '',
	assignee_staff_id TEXT REFERENCES staff_members(id) ON DELETE SET NULL,
	title             TEXT NOT NULL,
	description       TEXT NOT NULL DEFAULT '',
	status            TEXT NOT NULL,
	priority          TEXT NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sla_timers (
	id                       TEXT PRIMARY KEY,
	ticket_id                TEXT NOT NULL REFERENCES tickets(id) ON DELETE CASCADE,
	due_at                   INTEGER NOT NULL,
	status                   TEXT NOT NULL,
	warning_sent             INTEGER NOT NULL DEFAULT 0,
	breach_notification_sent INTEGER NOT NULL DEFAULT 0,
	created_at               INTEGER NOT NULL,
	updated_at               INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sla_timers_status ON sla_timers(status);
CREATE UNIQUE INDEX IF NOT EXISTS uq_sla_timers_open_ticket
	ON sla_timers(ticket_id) WHERE status IN ('ACTIVE', 'PAUSED');
`,
	},
}
