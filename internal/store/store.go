package store

import (
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema (logs table, received_at index, retention trigger)
const currentSchemaVersion = 1

// DefaultRetentionRows bounds the logs table when the caller passes no
// explicit retention.
const DefaultRetentionRows = 100000

// Store provides durable storage for log records. The retention bound
// is fixed at open time and enforced by a trigger inside every insert
// transaction.
type Store struct {
	db        *sql.DB
	retention int
}

// Open creates or opens the SQLite database at path with the given
// retention bound in rows. Applies required pragmas and the schema
// automatically.
//
// This function is idempotent - safe to call against a database from a
// prior run. Re-opening with a different retention bound replaces the
// trigger without touching existing rows; the new bound takes effect on
// the next insert.
func Open(path string, retention int) (*Store, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("retention bound must be positive, got %d", retention)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY between the daemon's own statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, retention); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db, retention: retention}, nil
}

// Close closes the database connection. The file is left consistent and
// immediately reopenable.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Retention returns the row bound the store was opened with.
func (s *Store) Retention() int {
	return s.retention
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA wal_autocheckpoint = 128",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the logs table if needed and (re)installs the
// retention trigger for the given bound. Idempotent.
func applySchema(db *sql.DB, retention int) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	// The bound is baked into the trigger body, so installation is
	// drop-and-create. AUTOINCREMENT ids are monotonic and rows are only
	// ever deleted from the old end, so "id <= NEW.id - bound" retains
	// exactly the bound most recent rows.
	if _, err := db.Exec("DROP TRIGGER IF EXISTS logs_retention"); err != nil {
		return fmt.Errorf("failed to drop retention trigger: %w", err)
	}
	trigger := fmt.Sprintf(`
		CREATE TRIGGER logs_retention AFTER INSERT ON logs
		BEGIN
			DELETE FROM logs WHERE id <= NEW.id - %d;
		END
	`, retention)
	if _, err := db.Exec(trigger); err != nil {
		return fmt.Errorf("failed to create retention trigger: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}
