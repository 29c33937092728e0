package ops

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cjkfmt/internal/cache"
	"github.com/hpungsan/cjkfmt/internal/config"
	"github.com/hpungsan/cjkfmt/internal/errors"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupRunner(t *testing.T, withCache bool) *Runner {
	t.Helper()
	r := &Runner{Config: config.DefaultConfig(), Logger: testLogger(), Workers: 2}
	if withCache {
		c, err := cache.Open(t.TempDir())
		require.NoError(t, err)
		t.Cleanup(func() { c.Close() })
		r.Cache = c
	}
	return r
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunner_Check(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md":  "中文abc和123\n",
		"b.md":  "中文 abc\n",
		"c.txt": "\xff\xfe",
		"d.md":  "```\n中文abc\n```\n",
	})
	r := setupRunner(t, false)

	out, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.Len(t, out.Files, 4)

	a, b, c, d := out.Files[0], out.Files[1], out.Files[2], out.Files[3]
	require.Equal(t, filepath.Join(root, "a.md"), a.Path)
	require.True(t, a.Changed)
	require.False(t, a.Written)
	require.Len(t, a.Violations, 3)
	require.Equal(t, "R3", a.Violations[0].Rule)

	require.False(t, b.Changed)
	require.Empty(t, b.Violations)

	require.Error(t, c.Err)
	require.True(t, errors.Is(c.Err, errors.ErrInvalidEncoding))
	require.Contains(t, c.Error, "INVALID_ENCODING")
	require.Equal(t, filepath.Join(root, "c.txt"), c.Err.(*errors.FmtError).Details["path"])

	require.False(t, d.Changed)

	require.Equal(t, 1, out.Changed)
	require.Equal(t, 3, out.Violations)
	require.Equal(t, 1, out.Errors)

	// Check never writes.
	require.Equal(t, "中文abc和123\n", readFile(t, filepath.Join(root, "a.md")))
}

func TestRunner_Format(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md": "中文abc。\n",
		"b.md": "已经 formatted\n",
	})
	r := setupRunner(t, false)

	out, err := r.Format(context.Background(), []string{root})
	require.NoError(t, err)
	require.Equal(t, 1, out.Changed)
	require.True(t, out.Files[0].Written)
	require.Empty(t, out.Files[0].Violations)
	require.False(t, out.Files[1].Written)

	require.Equal(t, "中文 abc。\n", readFile(t, filepath.Join(root, "a.md")))
	require.Equal(t, "已经 formatted\n", readFile(t, filepath.Join(root, "b.md")))

	// A second pass finds nothing to do.
	out, err = r.Format(context.Background(), []string{root})
	require.NoError(t, err)
	require.Equal(t, 0, out.Changed)
}

func TestRunner_Diff(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "中文abc\n"})
	r := setupRunner(t, false)
	r.Diff = true

	out, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.Contains(t, out.Files[0].Diff, "-中文abc\n+中文 abc\n")
}

func TestRunner_CacheSkipsCleanFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md": "中文abc\n",
		"b.md": "中文 abc\n",
	})
	r := setupRunner(t, true)

	out, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.NotEmpty(t, out.RunID)
	require.False(t, out.Files[0].Cached)
	require.False(t, out.Files[1].Cached)

	// Only the clean file is remembered by check.
	out, err = r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.False(t, out.Files[0].Cached)
	require.True(t, out.Files[1].Cached)
	require.Equal(t, 1, out.Violations)

	// Format writes and remembers the result.
	_, err = r.Format(context.Background(), []string{root})
	require.NoError(t, err)
	out, err = r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.True(t, out.Files[0].Cached)
	require.Equal(t, 0, out.Violations)

	st, err := r.Cache.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, st.Files)
	require.Equal(t, 4, st.Runs)
	require.NotNil(t, st.LastRun)
	require.Equal(t, "check", st.LastRun.Mode)
}

func TestRunner_CacheKeysAreAbsolute(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	writeTree(t, dirA, map[string]string{"README.txt": "中文 ab\n"})
	writeTree(t, dirB, map[string]string{"README.txt": "中文abc\n"})

	// Same relative name, size and mtime in both directories.
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)
	for _, dir := range []string{dirA, dirB} {
		require.NoError(t, os.Chtimes(filepath.Join(dir, "README.txt"), mtime, mtime))
	}
	r := setupRunner(t, true)

	t.Chdir(dirA)
	out, err := r.Check(context.Background(), []string{"README.txt"})
	require.NoError(t, err)
	require.False(t, out.Files[0].Changed)

	t.Chdir(dirB)
	out, err = r.Check(context.Background(), []string{"README.txt"})
	require.NoError(t, err)
	require.False(t, out.Files[0].Cached)
	require.True(t, out.Files[0].Changed)
	require.Equal(t, 1, out.Violations)
}

func TestRunner_CacheMatchesTouchedContent(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "中文 abc\n"})
	path := filepath.Join(root, "a.md")
	r := setupRunner(t, true)

	_, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)

	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, later, later))

	out, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.True(t, out.Files[0].Cached)

	// The new mtime is recorded, so the stat check hits next time.
	info, err := os.Stat(path)
	require.NoError(t, err)
	key := cache.KeyFor(path, info, cache.OptionsHash(r.Config.SpacingOptions(), true))
	clean, err := r.Cache.IsClean(key)
	require.NoError(t, err)
	require.True(t, clean)
}

func TestRunner_CacheForgetsFailedAndDirtyFiles(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"a.md": "中文 abc\n",
		"b.md": "中文 abc\n",
	})
	r := setupRunner(t, true)

	_, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	st, err := r.Cache.Stats()
	require.NoError(t, err)
	require.Equal(t, 2, st.Files)

	writeTree(t, root, map[string]string{
		"a.md": "中文\xffab\n",
		"b.md": "中文abc\n",
	})
	out, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.True(t, errors.Is(out.Files[0].Err, errors.ErrInvalidEncoding))
	require.True(t, out.Files[1].Changed)

	st, err = r.Cache.Stats()
	require.NoError(t, err)
	require.Equal(t, 0, st.Files)
}

func TestRunner_CacheBypassedForDiff(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "中文 abc\n"})
	r := setupRunner(t, true)

	_, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)

	r.Diff = true
	out, err := r.Check(context.Background(), []string{root})
	require.NoError(t, err)
	require.False(t, out.Files[0].Cached)
}

func TestRunner_Cancelled(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{"a.md": "中文abc\n"})
	r := setupRunner(t, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Format(ctx, []string{root})
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrCancelled))
	require.Equal(t, "中文abc\n", readFile(t, filepath.Join(root, "a.md")))
}

func TestRunner_MissingPath(t *testing.T) {
	r := setupRunner(t, false)
	_, err := r.Check(context.Background(), []string{filepath.Join(t.TempDir(), "nope.md")})
	require.True(t, errors.Is(err, errors.ErrFileNotFound))
}
