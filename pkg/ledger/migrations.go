package ledger

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS deal_alerts (
		fingerprint TEXT PRIMARY KEY,
		alerted_at  INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deal_alerts_alerted_at ON deal_alerts(alerted_at);

	CREATE TABLE IF NOT EXISTS alert_history (
		id             TEXT PRIMARY KEY,
		run_id         TEXT NOT NULL,
		fingerprint    TEXT NOT NULL,
		origin         TEXT NOT NULL,
		destination    TEXT NOT NULL,
		departure_date TEXT NOT NULL,
		return_date    TEXT NOT NULL DEFAULT '',
		price          TEXT NOT NULL,
		currency       TEXT NOT NULL,
		alerted_at     DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_alert_history_run ON alert_history(run_id);
	CREATE INDEX IF NOT EXISTS idx_alert_history_fingerprint ON alert_history(fingerprint);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
