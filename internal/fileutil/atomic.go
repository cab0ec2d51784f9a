// Package fileutil holds small filesystem helpers.
package fileutil

import (
	"fmt"
	"os"
	"path/filepath"

	payerr "github.com/mrz1836/paysend/pkg/errors"
)

// WriteAtomic replaces path with data. The data lands in a sibling temp
// file first, so readers see either the old or the new contents. Missing
// parent directories are created with mode 0750.
func WriteAtomic(path string, data []byte, perm os.FileMode) error {
	if path == "" {
		return payerr.WithDetails(payerr.ErrInvalidInput, map[string]string{"path": "empty"})
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeSynced(tmp, data, perm); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil { //nolint:gosec // G703: callers pass config-derived paths
		return fmt.Errorf("replacing %s: %w", path, err)
	}
	renamed = true

	if d, err := os.Open(dir); err == nil { //nolint:gosec // G304: dir is derived from path
		_ = d.Sync()
		_ = d.Close()
	}
	return nil
}

// writeSynced writes data to f, applies perm, flushes and closes f.
func writeSynced(f *os.File, data []byte, perm os.FileMode) error {
	_, werr := f.Write(data)
	if werr == nil {
		werr = f.Chmod(perm)
	}
	if werr == nil {
		werr = f.Sync()
	}
	cerr := f.Close()

	if werr != nil {
		return fmt.Errorf("writing temp file: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("closing temp file: %w", cerr)
	}
	return nil
}
