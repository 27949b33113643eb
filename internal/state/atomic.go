package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// WriteFileAtomic writes data to a sibling temp file named
// "<path>.tmp.<pid>" and renames it over path, so readers never see a
// partially written file. On failure the temp file is removed and the
// original error returned.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	tmp := TempPath(path)
	defer func() {
		if err != nil {
			_ = os.Remove(tmp) // best-effort cleanup
		}
	}()

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err = os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// TempPath returns the temp file WriteFileAtomic uses for path in this
// process.
func TempPath(path string) string {
	return filepath.Clean(path) + ".tmp." + strconv.Itoa(os.Getpid())
}
