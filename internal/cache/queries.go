package cache

import (
	"crypto/rand"
	"database/sql"
	stderrors "errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/cjkfmt/internal/errors"
	"github.com/hpungsan/cjkfmt/internal/spacing"
)

// Key identifies one file state. Two keys are equal only if the file has
// the same size and modification time and is processed with the same options.
type Key struct {
	Path        string
	Size        int64
	ModTimeNS   int64
	OptionsHash string
}

// KeyFor builds the cache key for path from its stat info. The path is made
// absolute so the same relative name in two directories never shares a row.
func KeyFor(path string, info os.FileInfo, optionsHash string) Key {
	return Key{
		Path:        absPath(path),
		Size:        info.Size(),
		ModTimeNS:   info.ModTime().UnixNano(),
		OptionsHash: optionsHash,
	}
}

// IsClean reports whether k was recorded clean under the current rules version.
func (c *Cache) IsClean(k Key) (bool, error) {
	var n int
	err := c.db.QueryRow(`
		SELECT COUNT(*) FROM files
		WHERE path = ? AND size = ? AND mtime_ns = ? AND options_hash = ? AND rules_version = ?
	`, k.Path, k.Size, k.ModTimeNS, k.OptionsHash, spacing.RulesVersion).Scan(&n)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// CleanContent reports whether the file at k.Path was recorded clean with
// the given content hash, whatever its size and modification time were.
func (c *Cache) CleanContent(k Key, contentHash string) (bool, error) {
	var n int
	err := c.db.QueryRow(`
		SELECT COUNT(*) FROM files
		WHERE path = ? AND content_hash = ? AND options_hash = ? AND rules_version = ?
	`, k.Path, contentHash, k.OptionsHash, spacing.RulesVersion).Scan(&n)
	if err != nil {
		return false, errors.NewInternal(err)
	}
	return n > 0, nil
}

// MarkClean records k as clean. runID may be empty.
func (c *Cache) MarkClean(k Key, contentHash, runID string) error {
	_, err := c.db.Exec(`
		INSERT INTO files (path, size, mtime_ns, content_hash, options_hash, rules_version, checked_at, run_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			size = excluded.size,
			mtime_ns = excluded.mtime_ns,
			content_hash = excluded.content_hash,
			options_hash = excluded.options_hash,
			rules_version = excluded.rules_version,
			checked_at = excluded.checked_at,
			run_id = excluded.run_id
	`, k.Path, k.Size, k.ModTimeNS, contentHash, k.OptionsHash, spacing.RulesVersion,
		time.Now().Unix(), toNullString(runID))
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// Forget drops any record for path.
func (c *Cache) Forget(path string) error {
	if _, err := c.db.Exec(`DELETE FROM files WHERE path = ?`, absPath(path)); err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}

// Run is one recorded invocation.
type Run struct {
	ID         string `json:"id"`
	Mode       string `json:"mode"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt *int64 `json:"finished_at,omitempty"`
	Files      int    `json:"files"`
	Changed    int    `json:"changed"`
	Violations int    `json:"violations"`
}

// Run IDs sort by start time, including runs started in the same millisecond.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// BeginRun records the start of a run and returns its ULID.
func (c *Cache) BeginRun(mode string) (string, error) {
	now := time.Now()
	entropyMu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), entropy)
	entropyMu.Unlock()
	if err != nil {
		return "", errors.NewInternal(err)
	}

	_, err = c.db.Exec(`INSERT INTO runs (id, mode, started_at) VALUES (?, ?, ?)`,
		id.String(), mode, now.Unix())
	if err != nil {
		return "", errors.NewInternal(err)
	}
	return id.String(), nil
}

// FinishRun stores the totals of a run started with BeginRun.
func (c *Cache) FinishRun(id string, files, changed, violations int) error {
	res, err := c.db.Exec(`
		UPDATE runs SET finished_at = ?, files = ?, changed = ?, violations = ?
		WHERE id = ?
	`, time.Now().Unix(), files, changed, violations, id)
	if err != nil {
		return errors.NewInternal(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errors.NewInvalidRequest("unknown run id: " + id)
	}
	return nil
}

// Stats summarizes the cache contents.
type Stats struct {
	Path    string `json:"path"`
	Files   int    `json:"files"`
	Stale   int    `json:"stale"`
	Runs    int    `json:"runs"`
	LastRun *Run   `json:"last_run,omitempty"`
}

// Stats returns entry counts and the most recent run.
func (c *Cache) Stats() (*Stats, error) {
	st := &Stats{Path: c.path}
	err := c.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN rules_version != ? THEN 1 ELSE 0 END), 0)
		FROM files
	`, spacing.RulesVersion).Scan(&st.Files, &st.Stale)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM runs`).Scan(&st.Runs); err != nil {
		return nil, errors.NewInternal(err)
	}

	var (
		run      Run
		finished sql.NullInt64
	)
	err = c.db.QueryRow(`
		SELECT id, mode, started_at, finished_at, files, changed, violations
		FROM runs ORDER BY id DESC LIMIT 1
	`).Scan(&run.ID, &run.Mode, &run.StartedAt, &finished, &run.Files, &run.Changed, &run.Violations)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, errors.NewInternal(err)
	default:
		if finished.Valid {
			run.FinishedAt = &finished.Int64
		}
		st.LastRun = &run
	}
	return st, nil
}

// Clear removes every file record and run. It returns the number of file
// records removed.
func (c *Cache) Clear() (int64, error) {
	tx, err := c.db.Begin()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM files`)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, _ := res.RowsAffected()
	if _, err := tx.Exec(`DELETE FROM runs`); err != nil {
		return 0, errors.NewInternal(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.NewInternal(err)
	}
	return n, nil
}

func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
