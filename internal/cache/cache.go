// Package cache remembers files that were already clean under a given
// rule version and option set, so repeated runs can skip them. It also keeps
// a short history of runs. The cache is an optimization only: a missing or
// stale cache never changes what check or format report.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// FileName is the database file created inside the cache directory.
const FileName = "cache.db"

// Cache is a handle on the on-disk cache database. It is safe for
// concurrent use.
type Cache struct {
	db   *sql.DB
	path string
}

// Open initializes the SQLite cache at baseDir/cache.db.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.cjkfmt.
func Open(baseDir string) (*Cache, error) {
	// Create base directory with restricted permissions
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	// Explicit chmod (best-effort, may not work on all platforms)
	_ = os.Chmod(baseDir, 0700)

	// Open database with pragmas in connection string (applies to all connections)
	dbPath := filepath.Join(baseDir, FileName)
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache: %w", err)
	}
	// Workers write concurrently; one connection serializes them.
	db.SetMaxOpenConns(1)

	if err := verifyWALMode(db); err != nil {
		db.Close()
		return nil, err
	}

	// Run migrations (this creates the file if it doesn't exist)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	// Set file permissions after file exists (best-effort)
	_ = os.Chmod(dbPath, 0600)

	return &Cache{db: db, path: dbPath}, nil
}

// Close closes the underlying database.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Path returns the database file path.
func (c *Cache) Path() string {
	return c.path
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS files (
		  path          TEXT PRIMARY KEY,
		  size          INTEGER NOT NULL,
		  mtime_ns      INTEGER NOT NULL,
		  content_hash  TEXT NOT NULL,
		  options_hash  TEXT NOT NULL,
		  rules_version TEXT NOT NULL,
		  checked_at    INTEGER NOT NULL,
		  run_id        TEXT
		);

		CREATE TABLE IF NOT EXISTS runs (
		  id          TEXT PRIMARY KEY,
		  mode        TEXT NOT NULL,
		  started_at  INTEGER NOT NULL,
		  finished_at INTEGER,
		  files       INTEGER NOT NULL DEFAULT 0,
		  changed     INTEGER NOT NULL DEFAULT 0,
		  violations  INTEGER NOT NULL DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_files_run_id
		ON files(run_id)
		WHERE run_id IS NOT NULL;
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyWALMode checks that WAL mode is active (set via connection string).
func verifyWALMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "wal" {
		return fmt.Errorf("expected WAL mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}

// OptionsHash fingerprints everything besides file content that affects
// the result for one file.
func OptionsHash(opts spacing.Options, markdown bool) string {
	data, _ := json.Marshal(struct {
		Fences       []spacing.Fence `json:"fences"`
		Inline       string          `json:"inline"`
		DoubleSpace  bool            `json:"double_space"`
		ProtectLinks bool            `json:"protect_links"`
		Markdown     bool            `json:"markdown"`
	}{opts.FenceMarkers, opts.InlineMarker, opts.PreserveDoubleSpace, opts.ProtectLinks, markdown})
	return hashBytes(data)
}

// ContentHash returns the hex SHA-256 of data.
func ContentHash(data []byte) string {
	return hashBytes(data)
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
