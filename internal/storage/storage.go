// Package storage holds the filesystem operations behind image saves:
// existence and readability checks, atomic writes, byte copies, settle
// verification and temp-file hygiene.
package storage

import (
	"fmt"
	"os"
)

// Exists reports whether path names an existing file or directory.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// IsReadable reports whether the file at path can actually be opened for
// reading, not just that it exists.
func IsReadable(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	f.Close()
	return true
}

// Delete removes the file at path. Deleting a file that is already gone
// is not an error.
func Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}

// Copy duplicates the file at src to dst byte for byte, atomically. The
// encoded contents are not inspected.
func Copy(src, dst string) error {
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source %s: %w", src, err)
	}
	defer f.Close()

	if err := AtomicWrite(dst, f); err != nil {
		return fmt.Errorf("copy to %s: %w", dst, err)
	}
	return nil
}

// FileSize returns the size in bytes of the file at path.
func FileSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
