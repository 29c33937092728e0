package ops

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hpungsan/cjkfmt/internal/errors"
)

// WriteFileAtomic replaces the contents of path with data. The data is
// written to a temp file in the same directory, synced and renamed over the
// original, so a failure leaves the original untouched. A symlink at path is
// resolved and its target is replaced. perm is applied to the new file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			target = path
		} else {
			return errors.NewInternal(fmt.Errorf("failed to resolve %s: %w", path, err))
		}
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := target + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, perm)
	if err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create temp file: %w", err))
	}

	// Clean up temp file on failure (original file is preserved)
	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// The umask may have narrowed perm at creation.
	if err := file.Chmod(perm); err != nil {
		return errors.NewInternal(err)
	}

	// Close before atomic replace (required on Windows; fine elsewhere).
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close temp file: %w", err))
	}
	file = nil

	if err := os.Rename(tempPath, target); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to replace %s: %w", path, err))
	}

	success = true
	return nil
}
