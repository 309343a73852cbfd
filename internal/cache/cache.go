// Package cache is the durable conversion ledger: which model was
// converted to which artifact, when, and under which parameters.
//
// The ledger is advisory. A lookup hit lets a run skip recompiling an
// artifact that already exists; any ledger failure degrades the run to
// uncached operation rather than failing the conversion.
package cache

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - Initial schema
const currentSchemaVersion = 1

// Clock supplies timestamps for ledger rows. Tests substitute a fixed
// clock so created_at values are deterministic.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Cache wraps the SQLite ledger database.
type Cache struct {
	db    *sql.DB
	clock Clock
}

// Open creates or opens the ledger at path, applying pragmas and schema
// migrations. Safe to call repeatedly on the same file.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
func Open(path string) (*Cache, error) {
	return OpenWithClock(path, systemClock{})
}

// OpenWithClock is Open with an injected timestamp source.
func OpenWithClock(path string, clock Clock) (*Cache, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, &StoreError{Op: "open", Err: err}
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}

	// SQLite allows one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent command invocations.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}
	if err := applySchema(db); err != nil {
		db.Close()
		return nil, &StoreError{Op: "open", Err: err}
	}

	return &Cache{db: db, clock: clock}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if absent and runs migrations. Idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("execute schema: %w", err)
	}

	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version < currentSchemaVersion {
		// Future migrations slot in here, keyed on version.
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}
	return nil
}
