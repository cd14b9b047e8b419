package util

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// AtomicWriteFile calls write with a temporary file in the same directory as
// path, then renames it into place on success. This guarantees that readers
// of path never observe a partially-written file: either the old contents
// or the new ones, never a mix. No partial file is left behind if write or
// the rename fails.
func AtomicWriteFile(path string, write func(f *os.File) error) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*"+filepath.Ext(path))
	if err != nil {
		return errors.Wrapf(err, "failed to create temp file in %s", dir)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if werr := write(tmp); werr != nil {
		tmp.Close()
		return errors.Wrapf(werr, "failed to write %s", path)
	}
	if cerr := tmp.Close(); cerr != nil {
		return errors.Wrapf(cerr, "failed to close temp file for %s", path)
	}
	if rerr := os.Rename(tmpPath, path); rerr != nil {
		return errors.Wrapf(rerr, "failed to finalize %s", path)
	}
	return nil
}
