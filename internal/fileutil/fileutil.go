package fileutil

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so readers never observe a partially written file. An existing file
// is replaced.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := WriteReaderAtomic(path, bytes.NewReader(data), int64(len(data)), mode)
	return err
}

// WriteReaderAtomic streams r into path through a temp file in the same
// directory. When size is non-negative the number of bytes written must
// match it; otherwise the temp file is removed and nothing is renamed.
func WriteReaderAtomic(path string, r io.Reader, size int64, mode os.FileMode) (int64, error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	written, err := io.Copy(tmp, r)
	if err != nil {
		cleanup()
		return written, err
	}
	if size >= 0 && written != size {
		cleanup()
		return written, fmt.Errorf("copy size mismatch: expected %d bytes, copied %d bytes", size, written)
	}
	if err := tmp.Chmod(mode); err != nil {
		cleanup()
		return written, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return written, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return written, err
	}
	return written, nil
}

// Exists reports whether path exists. Errors other than "not exist" count as
// existing so callers do not overwrite files they cannot inspect.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !os.IsNotExist(err)
}
