// Package worker pre-warms preset renditions in the background, so the
// first request for a popular size does not pay the decode cost.
package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"

	"imagefit"
	"imagefit/internal/codec"
	"imagefit/internal/config"
	"imagefit/internal/storage"
)

// Worker walks the source tree and generates every missing preset
// rendition. Saves run one at a time; the worker parallelizes nothing
// within an operation.
type Worker struct {
	sourceDir    string
	renditionDir string
	presets      map[string]config.Preset
	interval     time.Duration
	logger       hclog.Logger
	trigger      chan struct{} // channel to wake up the worker immediately
	stop         chan struct{}
	wg           sync.WaitGroup
}

// Config wires a Worker. Interval defaults to one minute.
type Config struct {
	SourceDir    string
	RenditionDir string
	Presets      map[string]config.Preset
	Interval     time.Duration
	Logger       hclog.Logger
}

// New creates a pre-warm worker.
func New(cfg Config) *Worker {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = hclog.NewNullLogger()
	}
	return &Worker{
		sourceDir:    cfg.SourceDir,
		renditionDir: cfg.RenditionDir,
		presets:      cfg.Presets,
		interval:     cfg.Interval,
		logger:       cfg.Logger,
		trigger:      make(chan struct{}, 1),
		stop:         make(chan struct{}),
	}
}

// Start runs the pre-warm loop in a goroutine. New source files picked
// up on the next tick or trigger.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("prewarm worker started", "interval", w.interval)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()

		// warm once on startup, then on every tick
		w.processBatch(ctx)

		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.logger.Info("prewarm worker stopping")
				return
			case <-w.stop:
				w.logger.Info("prewarm worker stopping")
				return
			case <-ticker.C:
				w.processBatch(ctx)
			case <-w.trigger:
				w.processBatch(ctx)
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the current batch to
// finish. It does not depend on the Start context being cancelled.
func (w *Worker) Stop() {
	close(w.stop)
	w.wg.Wait()
	w.logger.Info("prewarm worker stopped")
}

// TriggerSignal wakes up the worker to scan immediately.
func (w *Worker) TriggerSignal() {
	select {
	case w.trigger <- struct{}{}:
	default:
		// already triggered
	}
}

// processBatch generates every missing rendition it can find. Errors on
// individual files are logged and skipped; one broken source must not
// starve the rest of the tree.
func (w *Worker) processBatch(ctx context.Context) {
	warmed := 0
	err := filepath.Walk(w.sourceDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if info.IsDir() || codec.FromPath(path) == codec.Unknown {
			return nil
		}

		key, err := filepath.Rel(w.sourceDir, path)
		if err != nil {
			return nil
		}
		key = filepath.ToSlash(key)

		for name, preset := range w.presets {
			dest := storage.RenditionPath(w.renditionDir, name, key)
			if storage.Exists(dest) {
				continue
			}
			if w.warm(path, preset, dest) {
				warmed++
			}
		}
		return nil
	})
	if err != nil && err != context.Canceled {
		w.logger.Error("prewarm walk failed", "error", err)
	}
	if warmed > 0 {
		w.logger.Info("prewarm batch done", "renditions", warmed)
	}
}

func (w *Worker) warm(src string, preset config.Preset, dest string) bool {
	sess := imagefit.New().
		WithSource(src).
		WithBox(preset.MaxWidth, preset.MaxHeight, preset.Force).
		Save(dest, preset.Quality)
	if err := sess.Err(); err != nil {
		w.logger.Warn("prewarm skipped source", "source", src, "error", err)
		return false
	}
	return true
}
