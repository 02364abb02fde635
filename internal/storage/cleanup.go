package storage

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Cleanup tracks temporary paths and removes them in one sweep. Failed
// saves register their partial outputs here so nothing is left behind.
type Cleanup struct {
	paths []string
}

// Add registers a path for later cleanup.
func (c *Cleanup) Add(path string) {
	c.paths = append(c.paths, path)
}

// Execute removes all registered paths. It is safe to call multiple times.
// Returns the first non-ignorable error encountered, or nil.
func (c *Cleanup) Execute() error {
	var firstErr error
	for _, p := range c.paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	c.paths = nil
	return firstErr
}

// CleanOrphanedTempFiles removes atomic-write temp files older than maxAge
// from dir and its subdirectories. Such files only survive a crash between
// creating the temp file and renaming it into place.
func CleanOrphanedTempFiles(dir string, maxAge time.Duration) error {
	cutoff := time.Now().UTC().Add(-maxAge)
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if info.IsDir() || !strings.HasPrefix(info.Name(), TempFilePrefix) {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(path)
		}
		return nil
	})
}
