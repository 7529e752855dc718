package journal

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/openmined/corectl/internal/lock"
)

// sqlitePragmas mirrors the teacher's internal/db.NewSqliteDb default
// pragma block, tuned for a low-write-volume audit log rather than the
// teacher's blob index workload.
const sqlitePragmas = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
`

const createAuditTable = `
CREATE TABLE IF NOT EXISTS lock_audit (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	token TEXT NOT NULL,
	owner TEXT NOT NULL,
	deep INTEGER NOT NULL,
	session_scoped INTEGER NOT NULL,
	action TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);
`

// AuditMirror records every lock/unlock as an immutable row for
// after-the-fact inspection, supplementing the flat journal (which only
// ever reflects current state) with history the flat file format cannot
// represent. Grounded on the teacher's internal/db.NewSqliteDb
// functional-options + pragma pattern, generalized from blob indexing to
// lock auditing.
type AuditMirror struct {
	db *sqlx.DB
}

// Action distinguishes the audited operation.
type Action string

const (
	ActionLock   Action = "lock"
	ActionUnlock Action = "unlock"
)

// OpenAuditMirror opens (creating if needed) a sqlite-backed audit log at
// path. Use ":memory:" for ephemeral/test use.
func OpenAuditMirror(path string) (*AuditMirror, error) {
	dsn := path
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", path)
	}
	db, err := sqlx.Connect("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: connect: %w", err)
	}
	if _, err := db.Exec(sqlitePragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: pragmas: %w", err)
	}
	if _, err := db.Exec(createAuditTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: create table: %w", err)
	}
	return &AuditMirror{db: db}, nil
}

// Record appends one audit row for rec undergoing action.
func (m *AuditMirror) Record(rec *lock.Record, action Action) error {
	_, err := m.db.Exec(
		`INSERT INTO lock_audit (token, owner, deep, session_scoped, action, recorded_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Token(), rec.Owner, rec.Deep, rec.SessionScoped, string(action), time.Now(),
	)
	if err != nil {
		return fmt.Errorf("audit: insert: %w", err)
	}
	return nil
}

// RecordLock implements lock.AuditSink, logging rather than returning a
// write failure since the registry treats audit mirroring as best-effort
// alongside its authoritative journal write.
func (m *AuditMirror) RecordLock(rec *lock.Record) {
	if err := m.Record(rec, ActionLock); err != nil {
		slog.Error("audit mirror record lock failed", "error", err, "token", rec.Token())
	}
}

// RecordUnlock implements lock.AuditSink.
func (m *AuditMirror) RecordUnlock(rec *lock.Record) {
	if err := m.Record(rec, ActionUnlock); err != nil {
		slog.Error("audit mirror record unlock failed", "error", err, "token", rec.Token())
	}
}

// AuditRow is one historical entry returned by RecentForToken.
type AuditRow struct {
	Token         string    `db:"token"`
	Owner         string    `db:"owner"`
	Deep          bool      `db:"deep"`
	SessionScoped bool      `db:"session_scoped"`
	Action        string    `db:"action"`
	RecordedAt    time.Time `db:"recorded_at"`
}

// RecentForToken returns the most recent audit rows for token, newest
// first, for CLI inspection commands.
func (m *AuditMirror) RecentForToken(token string, limit int) ([]AuditRow, error) {
	var rows []AuditRow
	err := m.db.Select(&rows,
		`SELECT token, owner, deep, session_scoped, action, recorded_at FROM lock_audit WHERE token = ? ORDER BY recorded_at DESC LIMIT ?`,
		token, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	return rows, nil
}

// Close releases the underlying database handle.
func (m *AuditMirror) Close() error {
	return m.db.Close()
}
