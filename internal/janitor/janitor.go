// Package janitor prunes the rendition cache directory: stale renditions
// nobody has touched in a while, orphaned atomic-write temp files, and
// the empty directories both leave behind.
package janitor

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"imagefit/internal/storage"
)

// tempFileMaxAge is how long an atomic-write temp file may linger before
// it is considered orphaned.
const tempFileMaxAge = 15 * time.Minute

// Janitor handles periodic cleanup of the rendition directory.
type Janitor struct {
	renditionDir string
	interval     time.Duration
	maxAge       time.Duration
	logger       hclog.Logger
	stopChan     chan struct{}
	doneChan     chan struct{}
}

// Config holds janitor configuration.
type Config struct {
	RenditionDir string
	Interval     time.Duration
	MaxAge       time.Duration
	Logger       hclog.Logger
}

// New creates a Janitor. Interval defaults to 6 hours, MaxAge to 30 days.
func New(cfg Config) *Janitor {
	if cfg.Interval == 0 {
		cfg.Interval = 6 * time.Hour
	}
	if cfg.MaxAge == 0 {
		cfg.MaxAge = 30 * 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Janitor{
		renditionDir: cfg.RenditionDir,
		interval:     cfg.Interval,
		maxAge:       cfg.MaxAge,
		logger:       cfg.Logger,
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start begins the cleanup scheduler in a goroutine.
func (j *Janitor) Start(ctx context.Context) {
	go j.run(ctx)
}

// Stop gracefully stops the janitor.
func (j *Janitor) Stop() {
	close(j.stopChan)
	<-j.doneChan // wait for cleanup to finish
}

func (j *Janitor) run(ctx context.Context) {
	defer close(j.doneChan)

	// Run cleanup immediately on startup
	j.RunCleanup()

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunCleanup()
		case <-j.stopChan:
			j.logger.Info("janitor received stop signal, shutting down")
			return
		case <-ctx.Done():
			j.logger.Info("janitor context cancelled, shutting down")
			return
		}
	}
}

// RunCleanup executes one cleanup cycle.
func (j *Janitor) RunCleanup() {
	start := time.Now().UTC()

	pruned := j.pruneStaleRenditions()
	if err := storage.CleanOrphanedTempFiles(j.renditionDir, tempFileMaxAge); err != nil {
		j.logger.Error("failed to clean temp files", "error", err)
	}
	j.cleanupEmptyDirs()

	j.logger.Info("cleanup cycle completed", "pruned", pruned, "took", time.Since(start))
}

// pruneStaleRenditions removes renditions not modified within maxAge.
// They regenerate on the next request, so deleting is always safe.
func (j *Janitor) pruneStaleRenditions() int {
	cutoff := time.Now().UTC().Add(-j.maxAge)
	pruned := 0

	err := filepath.Walk(j.renditionDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip on error
		}
		if info.IsDir() || strings.HasPrefix(info.Name(), storage.TempFilePrefix) {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				j.logger.Error("failed to prune rendition", "path", path, "error", err)
				return nil
			}
			pruned++
		}
		return nil
	})
	if err != nil {
		j.logger.Error("prune walk failed", "error", err)
	}
	return pruned
}

// cleanupEmptyDirs removes empty directories under the rendition root.
func (j *Janitor) cleanupEmptyDirs() {
	filepath.Walk(j.renditionDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip on error
		}
		if !info.IsDir() || path == j.renditionDir {
			return nil
		}
		// Remove fails on non-empty directories, which is what we want.
		if err := os.Remove(path); err == nil {
			j.logger.Debug("removed empty directory", "path", path)
		}
		return nil
	})
}
