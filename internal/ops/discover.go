package ops

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"

	"github.com/hpungsan/cjkfmt/internal/config"
	"github.com/hpungsan/cjkfmt/internal/errors"
)

// excluder matches slash-separated paths against the configured globs.
type excluder []glob.Glob

func newExcluder(patterns []string) (excluder, error) {
	ex := make(excluder, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, '/')
		if err != nil {
			return nil, errors.NewInvalidRequest("invalid exclude pattern " + p + ": " + err.Error())
		}
		ex = append(ex, g)
	}
	return ex, nil
}

// match reports whether path is excluded. Directories are also tried with a
// trailing slash, and relative paths with a leading slash, so that
// "**/name/**" matches a top-level directory.
func (ex excluder) match(path string, dir bool) bool {
	p := filepath.ToSlash(path)
	candidates := []string{p}
	if !strings.HasPrefix(p, "/") {
		candidates = append(candidates, "/"+strings.TrimPrefix(p, "./"))
	}
	if dir {
		for _, c := range candidates {
			candidates = append(candidates, c+"/")
		}
	}
	for _, g := range ex {
		for _, c := range candidates {
			if g.Match(c) {
				return true
			}
		}
	}
	return false
}

// Discover expands paths into the list of files to process, in order and
// without duplicates. Files named explicitly are always kept. Directories are
// walked; hidden directories, excluded paths and files whose extension is not
// configured are skipped. A missing path is a FILE_NOT_FOUND error.
func Discover(paths []string, cfg *config.Config) ([]string, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ex, err := newExcluder(cfg.Exclude)
	if err != nil {
		return nil, err
	}
	exts := make(map[string]bool, len(cfg.Extensions))
	for _, e := range cfg.Extensions {
		exts[strings.ToLower(e)] = true
	}

	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, errors.NewFileNotFound(root)
			}
			return nil, errors.NewInternal(err)
		}
		if !info.IsDir() {
			add(root)
			continue
		}

		err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if p != root && (strings.HasPrefix(d.Name(), ".") || ex.match(p, true)) {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if !exts[strings.ToLower(filepath.Ext(p))] || ex.match(p, false) {
				return nil
			}
			add(p)
			return nil
		})
		if err != nil {
			return nil, errors.NewInternal(err)
		}
	}
	return files, nil
}
