package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/feature/prices/domain"
)

func newRunsCmd(a *app) *cobra.Command {
	var where string
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the last ingestion run and the days that are still failing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			run, err := c.Ledger.LastRun(ctx, where)
			switch {
			case errors.Is(err, domain.ErrRunNotFound):
				fmt.Fprintf(out, "no runs recorded for %s\n", where)
			case err != nil:
				return err
			default:
				finished := "in progress"
				if run.FinishedAt != nil {
					finished = run.FinishedAt.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "last run %s: %s..%s tickers=%d written=%d empty=%d skipped=%d failed=%d finished=%s\n",
					run.ID, run.Start, run.End, run.Tickers, run.Written, run.Empty, run.Skipped, run.Failed, finished)
			}

			failed, err := c.Ledger.FailedDays(ctx, where)
			if err != nil {
				return err
			}
			if len(failed) == 0 {
				fmt.Fprintln(out, "no failing days")
				return nil
			}
			fmt.Fprintf(out, "%d failing days:\n", len(failed))
			for _, f := range failed {
				fmt.Fprintf(out, "  %s run=%s error=%s\n", f.Day, f.RunID, f.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "hk", "Market to report on")
	return cmd
}
