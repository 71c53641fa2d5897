// ABOUTME: SQLite handle for the durable conversation history log
// ABOUTME: Opens the file with WAL and busy timeout, then applies the versioned schema
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultPathAlias selects DefaultDBPath when used as a history database path
const DefaultPathAlias = "default"

// The CLI, the HTTP server and a watcher may share one history file
const connPragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"

// DB is an open history database
type DB struct {
	conn *sql.DB
	path string
}

// DefaultDataDir returns $XDG_DATA_HOME/askdocs, falling back to ~/.local/share/askdocs
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return filepath.Join(".local", "share", "askdocs")
		}
		dataHome = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataHome, "askdocs")
}

// DefaultDBPath returns the default conversation history database path
func DefaultDBPath() string {
	return filepath.Join(DefaultDataDir(), "history.db")
}

// ResolvePath expands DefaultPathAlias; any other path is returned unchanged
func ResolvePath(path string) string {
	if path == DefaultPathAlias {
		return DefaultDBPath()
	}
	return path
}

// Open opens or creates the history database at path
func Open(path string) (*DB, error) {
	path = ResolvePath(path)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := sql.Open("sqlite", path+"?"+connPragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", path, err)
	}

	return newDB(conn, path)
}

// OpenInMemory creates a private in-memory database (for testing)
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// Every pooled connection would otherwise get its own empty database
	conn.SetMaxOpenConns(1)

	return newDB(conn, ":memory:")
}

func newDB(conn *sql.DB, path string) (*DB, error) {
	db := &DB{conn: conn, path: path}
	if err := db.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return db, nil
}

// migrate applies Schema and records SchemaVersion in user_version.
// A file written by a newer schema is refused rather than modified.
func (db *DB) migrate() error {
	version, err := db.Version()
	if err != nil {
		return err
	}
	if version > SchemaVersion {
		return fmt.Errorf("history database %s has schema version %d, newer than supported %d",
			db.path, version, SchemaVersion)
	}

	if _, err := db.conn.Exec(Schema); err != nil {
		return err
	}
	if version < SchemaVersion {
		// PRAGMA does not accept bound parameters
		if _, err := db.conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
			return fmt.Errorf("failed to record schema version: %w", err)
		}
	}
	return nil
}

// Version returns the schema version recorded in the database file
func (db *DB) Version() (int, error) {
	var v int
	if err := db.conn.QueryRow("PRAGMA user_version").Scan(&v); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return v, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

func (db *DB) begin() (*sql.Tx, error) {
	return db.conn.Begin()
}

func (db *DB) exec(query string, args ...any) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

func (db *DB) query(query string, args ...any) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

func (db *DB) queryRow(query string, args ...any) *sql.Row {
	return db.conn.QueryRow(query, args...)
}
