package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// HistoryEntry is one delivered alert, kept for auditing.
type HistoryEntry struct {
	ID            string          `json:"id"`
	RunID         string          `json:"run_id"`
	Fingerprint   string          `json:"fingerprint"`
	Origin        string          `json:"origin"`
	Destination   string          `json:"destination"`
	DepartureDate string          `json:"departure_date"`
	ReturnDate    string          `json:"return_date,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	AlertedAt     time.Time       `json:"alerted_at"`
}

// HistoryRecorder is implemented by stores that keep an alert audit trail.
type HistoryRecorder interface {
	RecordHistory(ctx context.Context, entries []HistoryEntry) error
	History(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// SQLiteStore keeps the ledger and alert history in an SQLite database.
type SQLiteStore struct {
	db          *sql.DB
	quarantined string
}

// NewSQLiteStore opens or creates an SQLite database at the given path.
// A file that is not a readable database is moved aside and replaced with an
// empty one; Quarantined reports where it went.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := openSQLite(dbPath)
	if err == nil {
		return &SQLiteStore{db: db}, nil
	}
	if !unreadableDB(err) {
		return nil, err
	}

	moved := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	if rerr := os.Rename(dbPath, moved); rerr != nil {
		return nil, fmt.Errorf("%w (move aside: %v)", err, rerr)
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		if _, serr := os.Stat(dbPath + suffix); serr == nil {
			_ = os.Rename(dbPath+suffix, moved+suffix)
		}
	}

	db, err = openSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return &SQLiteStore{db: db, quarantined: moved}, nil
}

func openSQLite(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return db, nil
}

func unreadableDB(err error) bool {
	var serr *sqlite.Error
	if !errors.As(err, &serr) {
		return false
	}
	switch serr.Code() & 0xff {
	case sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return true
	}
	return false
}

// Quarantined returns the path an unreadable database was moved to when the
// store was opened, or "".
func (s *SQLiteStore) Quarantined() string { return s.quarantined }

func (s *SQLiteStore) Load(ctx context.Context) (Ledger, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT fingerprint, alerted_at FROM deal_alerts")
	if err != nil {
		return New(), fmt.Errorf("query ledger: %w", err)
	}
	defer rows.Close()

	l := New()
	for rows.Next() {
		var fp string
		var ts int64
		if err := rows.Scan(&fp, &ts); err != nil {
			return New(), fmt.Errorf("scan ledger row: %w", err)
		}
		l[fp] = ts
	}
	if err := rows.Err(); err != nil {
		return New(), fmt.Errorf("iterate ledger: %w", err)
	}
	return l, nil
}

func (s *SQLiteStore) Save(ctx context.Context, l Ledger) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM deal_alerts"); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("clear ledger: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, "INSERT INTO deal_alerts (fingerprint, alerted_at) VALUES (?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for fp, ts := range l {
		if _, err := stmt.ExecContext(ctx, fp, ts); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s: %w", fp, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	return nil
}

func (s *SQLiteStore) RecordHistory(ctx context.Context, entries []HistoryEntry) error {
	for i := range entries {
		e := &entries[i]
		if e.ID == "" {
			e.ID = uuid.New().String()
		}
		if e.AlertedAt.IsZero() {
			e.AlertedAt = time.Now().UTC()
		}

		_, err := s.db.ExecContext(ctx,
			`INSERT INTO alert_history (id, run_id, fingerprint, origin, destination, departure_date, return_date, price, currency, alerted_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.RunID, e.Fingerprint, e.Origin, e.Destination,
			e.DepartureDate, e.ReturnDate, e.Price.String(), e.Currency, e.AlertedAt,
		)
		if err != nil {
			return fmt.Errorf("insert alert history: %w", err)
		}
	}
	return nil
}

// History returns the most recent alerts first. A non-positive limit returns all.
func (s *SQLiteStore) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	query := `SELECT id, run_id, fingerprint, origin, destination, departure_date, return_date, price, currency, alerted_at
		FROM alert_history ORDER BY alerted_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var price string
		if err := rows.Scan(&e.ID, &e.RunID, &e.Fingerprint, &e.Origin, &e.Destination,
			&e.DepartureDate, &e.ReturnDate, &price, &e.Currency, &e.AlertedAt); err != nil {
			return nil, fmt.Errorf("scan alert history row: %w", err)
		}
		e.Price, err = decimal.NewFromString(price)
		if err != nil {
			return nil, fmt.Errorf("parse stored price %q: %w", price, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
