// Package cli holds the imagefit commands.
package cli

import (
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// NewRootCmd builds the imagefit command tree.
func NewRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "imagefit",
		Short: "Bounded-box image resizing for JPEG, PNG and GIF",
		Long: `Imagefit resizes raster images into a bounding box, either fitting
inside it (aspect preserved, never enlarged) or exactly filling it via a
proportional scale and centered crop.

It works as a one-shot resize command, a rendition HTTP server, and a
history viewer over the operation ledger.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "path to TOML config file")

	cmd.AddCommand(newResizeCmd(&configPath))
	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newHistoryCmd(&configPath))

	return cmd
}

func newLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Output: os.Stderr,
		Level:  hclog.LevelFromString(levelFromEnv()),
	})
}

func levelFromEnv() string {
	if lvl := os.Getenv("IMAGEFIT_LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return "INFO"
}
