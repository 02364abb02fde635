package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"imagefit/internal/config"
	"imagefit/internal/janitor"
	"imagefit/internal/metrics"
	"imagefit/internal/server"
	"imagefit/internal/storage"
	"imagefit/internal/worker"
)

func newServeCmd(configPath *string) *cobra.Command {
	var (
		addr    string
		prewarm bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve originals and preset renditions over HTTP",
		Long: `Starts the rendition server. Originals are served under /source,
renditions under /renditions/{preset}; missing renditions are generated
on demand through the resize library and cached on disk.`,
		Example: `  # serve with presets from imagefit.toml
  imagefit serve --config imagefit.toml

  # pre-generate every preset rendition in the background
  imagefit serve --config imagefit.toml --prewarm`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger("imagefit")

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.ServerAddr = addr
			}
			for _, dir := range []string{cfg.SourceDir, cfg.RenditionDir} {
				if err := storage.EnsureDir(dir); err != nil {
					return err
				}
			}

			var rec *metrics.Recorder
			if cfg.DatabasePath != "" {
				rec, err = metrics.Open(cfg.DatabasePath)
				if err != nil {
					return err
				}
				defer rec.Close()
			}

			srv, err := server.New(server.Config{
				SourceDir:          cfg.SourceDir,
				RenditionDir:       cfg.RenditionDir,
				Presets:            cfg.Presets,
				RateLimitPerMinute: cfg.RateLimitPerMinute,
				Logger:             logger.Named("http"),
				Recorder:           rec,
			})
			if err != nil {
				return err
			}
			defer srv.Close()

			jan := janitor.New(janitor.Config{
				RenditionDir: cfg.RenditionDir,
				Interval:     cfg.JanitorInterval,
				MaxAge:       cfg.JanitorMaxAge,
				Logger:       logger.Named("janitor"),
			})
			jan.Start(cmd.Context())
			defer jan.Stop()

			if prewarm {
				w := worker.New(worker.Config{
					SourceDir:    cfg.SourceDir,
					RenditionDir: cfg.RenditionDir,
					Presets:      cfg.Presets,
					Interval:     cfg.PrewarmInterval,
					Logger:       logger.Named("prewarm"),
				})
				w.Start(cmd.Context())
				defer w.Stop()
			}

			httpServer := &http.Server{
				Addr:    cfg.ServerAddr,
				Handler: srv,
			}

			serverErr := make(chan error, 1)
			go func() {
				logger.Info("serving", "addr", cfg.ServerAddr, "presets", len(cfg.Presets))
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()

			select {
			case <-cmd.Context().Done():
				logger.Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := httpServer.Shutdown(shutdownCtx); err != nil {
					logger.Error("server shutdown failed", "error", err)
					return err
				}
				logger.Info("server stopped")
				return nil
			case err := <-serverErr:
				return err
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().BoolVar(&prewarm, "prewarm", false, "pre-generate preset renditions in the background")

	return cmd
}
