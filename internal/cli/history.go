package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"imagefit/internal/config"
	"imagefit/internal/metrics"
)

func newHistoryCmd(configPath *string) *cobra.Command {
	var n int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent resize operations from the ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			rec, err := metrics.Open(cfg.DatabasePath)
			if err != nil {
				return err
			}
			defer rec.Close()

			events, err := rec.Recent(cmd.Context(), n)
			if err != nil {
				return err
			}
			if len(events) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no recorded operations")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tOUTCOME\tSOURCE\tDEST\tBOX\tTOOK")
			for _, e := range events {
				box := fmt.Sprintf("%dx%d", e.MaxWidth, e.MaxHeight)
				if e.Forced {
					box += "!"
				}
				if e.Preset != "" {
					box = e.Preset + " (" + box + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04:05"),
					e.Outcome, e.Source, e.Dest, box, e.Duration)
			}
			if err := w.Flush(); err != nil {
				return err
			}

			stats, err := rec.GetStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\nlast 7 days: %d ok, %d errors; last 30 days: %d ok, %d errors\n",
				stats.OK7Days, stats.Errors7Days, stats.OK30Days, stats.Errors30Days)
			return nil
		},
	}

	cmd.Flags().IntVarP(&n, "limit", "n", 20, "number of operations to show")

	return cmd
}
