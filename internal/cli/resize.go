package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"imagefit"
	"imagefit/internal/config"
	"imagefit/internal/metrics"
)

func newResizeCmd(configPath *string) *cobra.Command {
	var (
		width       int
		height      int
		force       bool
		quality     int
		preset      string
		clearSource bool
	)

	cmd := &cobra.Command{
		Use:   "resize SRC DEST",
		Short: "Resize one image into a bounding box",
		Example: `  # fit inside 400x300, never enlarging
  imagefit resize photo.jpg small.jpg --width 400 --height 300

  # exactly fill a 200x200 square, cropping the overshoot
  imagefit resize photo.jpg avatar.jpg --width 200 --height 200 --force

  # use a preset from the config file
  imagefit resize photo.jpg thumb.jpg --preset thumb`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, dest := args[0], args[1]

			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			box := config.Preset{MaxWidth: width, MaxHeight: height, Force: force, Quality: quality}
			name := ""
			if preset != "" {
				p, ok := cfg.Presets[preset]
				if !ok {
					return fmt.Errorf("unknown preset %q", preset)
				}
				box, name = p, preset
			}

			start := time.Now()
			sess := imagefit.New().
				WithSource(src).
				WithBox(box.MaxWidth, box.MaxHeight, box.Force).
				Save(dest, box.Quality)
			opErr := sess.Err()

			recordEvent(cmd.Context(), cfg, sess, name, box, src, dest, time.Since(start), opErr)

			if clearSource && opErr == nil {
				sess.ClearSource()
				opErr = sess.Err()
			}

			if opErr != nil {
				for _, msg := range sess.Errors() {
					fmt.Fprintln(cmd.ErrOrStderr(), msg)
				}
				return fmt.Errorf("resize failed: %w", opErr)
			}

			fmt.Fprintln(cmd.OutOrStdout(), sess.LastDest())
			return nil
		},
	}

	cmd.Flags().IntVar(&width, "width", 0, "max width (default 1200)")
	cmd.Flags().IntVar(&height, "height", 0, "max height (default 800)")
	cmd.Flags().BoolVar(&force, "force", false, "exactly fill the box, cropping the overshoot")
	cmd.Flags().IntVar(&quality, "quality", 0, "encode quality 1-100 (default 75)")
	cmd.Flags().StringVar(&preset, "preset", "", "named preset from the config file")
	cmd.Flags().BoolVar(&clearSource, "clear-source", false, "delete the source after a successful save")

	return cmd
}

// recordEvent appends to the ledger when a database is configured.
// Ledger failures are reported but never fail the resize itself.
func recordEvent(ctx context.Context, cfg *config.Config, sess *imagefit.Session, preset string, box config.Preset, src, dest string, took time.Duration, opErr error) {
	if cfg.DatabasePath == "" {
		return
	}
	rec, err := metrics.Open(cfg.DatabasePath)
	if err != nil {
		newLogger("resize").Warn("ledger unavailable", "error", err)
		return
	}
	defer rec.Close()

	_, w, h := sess.Source()
	e := metrics.Event{
		Source:    src,
		Dest:      dest,
		SrcWidth:  w,
		SrcHeight: h,
		MaxWidth:  box.MaxWidth,
		MaxHeight: box.MaxHeight,
		Forced:    box.Force,
		Preset:    preset,
		Outcome:   metrics.OutcomeOK,
		Duration:  took,
	}
	if opErr != nil {
		e.Outcome = metrics.OutcomeError
		e.Detail = opErr.Error()
	}
	if err := rec.Record(ctx, e); err != nil {
		newLogger("resize").Warn("failed to record resize event", "error", err)
	}
}
