package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/app/config"
	"stock_pipeline/internal/feature/prices/domain/entity"
	universeentity "stock_pipeline/internal/feature/universe/domain/entity"
	"stock_pipeline/internal/feature/window/adapters"
	windowentity "stock_pipeline/internal/feature/window/domain/entity"
)

func newFeaturesCmd(a *app) *cobra.Command {
	var (
		where, rangeName, startDate, endDate, out string
		labels                                    bool
	)
	cmd := &cobra.Command{
		Use:   "features",
		Short: "Build the window feature table of a market",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			writer, err := adapters.ForPath(out)
			if err != nil {
				return err
			}
			start, end, err := featureRange(a.cfg, rangeName, startDate, endDate)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			m, err := c.Market(where)
			if err != nil {
				return err
			}
			tickers, err := c.Universe.Resolve(ctx, universeentity.Market(where))
			if err != nil {
				return err
			}

			rows, summary, err := m.Builder.BuildTable(ctx, tickers, start, end, labels)
			if err != nil {
				return err
			}
			if err := writeTable(out, writer, m.Builder.Layout().Columns(labels), rows); err != nil {
				return err
			}
			slog.Info("feature table written",
				"market", where, "path", out, "start", start, "end", end,
				"rows", summary.Rows, "skipped", summary.Skipped)
			for reason, n := range summary.SkippedByReason {
				slog.Debug("skipped windows", "reason", reason, "count", n)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "hk", "Market to build features for")
	cmd.Flags().StringVar(&rangeName, "range", "train", "Configured anchor range: train or simulate")
	cmd.Flags().StringVar(&startDate, "start_date", "", "First anchor day (overrides --range)")
	cmd.Flags().StringVar(&endDate, "end_date", "", "Last anchor day (overrides --range)")
	cmd.Flags().BoolVar(&labels, "labels", false, "Append the future label columns")
	cmd.Flags().StringVar(&out, "out", "", "Output file (.csv or .xlsx)")
	_ = cmd.MarkFlagRequired("out")
	return cmd
}

// featureRange returns the explicit anchor range when given, else the named configured one.
func featureRange(cfg *config.Config, rangeName, startDate, endDate string) (start, end entity.TradingDay, err error) {
	if startDate != "" || endDate != "" {
		if startDate == "" || endDate == "" {
			return start, end, errors.New("--start_date and --end_date must be given together")
		}
		return config.DateRange{Start: startDate, End: endDate}.Days()
	}
	r, err := cfg.Range(rangeName)
	if err != nil {
		return start, end, err
	}
	return r.Days()
}

func writeTable(path string, w adapters.TableWriter, columns []string, rows []windowentity.FeatureVector) (err error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if err := w.WriteTable(f, columns, rows); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
