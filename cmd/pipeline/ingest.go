package main

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/app/di"
	"stock_pipeline/internal/feature/prices/domain/entity"
	universeentity "stock_pipeline/internal/feature/universe/domain/entity"
	"stock_pipeline/internal/platform/externalapi/gdrive"
)

func newIngestCmd(a *app) *cobra.Command {
	var (
		where, date, startDate, endDate string
		upload                          bool
	)
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch and store the daily partitions of a market",
		Long: `Resolves the market's ticker universe and writes one partition per calendar
day in the range. Days that already have a partition are skipped; failed days
are reported and retried by the next run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := dayRange(date, startDate, endDate, a.today())
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()

			var up *gdrive.Uploader
			if upload {
				if up, err = di.NewUploader(ctx, a.cfg.Drive); err != nil {
					return err
				}
			}

			summary, err := ingest(ctx, c, where, start, end)
			if err != nil {
				return err
			}
			if up != nil {
				m, _ := c.Market(where)
				uploadDays(ctx, up, m, append(summary.Written, summary.Empty...))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "hk", "Market to ingest (hk, us, ...)")
	cmd.Flags().StringVar(&date, "date", "", "Single day to ingest (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&startDate, "start_date", "", "First day of the range (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endDate, "end_date", "", "Last day of the range (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&upload, "upload", false, "Mirror new partitions to Google Drive")
	return cmd
}

// ingest resolves the market's universe and runs the ingestion driver over [start, end].
// Days that fail do not make it return an error.
func ingest(ctx context.Context, c *di.Container, where string, start, end entity.TradingDay) (entity.Summary, error) {
	m, err := c.Market(where)
	if err != nil {
		return entity.Summary{}, err
	}
	tickers, err := c.Universe.Resolve(ctx, universeentity.Market(where))
	if err != nil {
		return entity.Summary{}, err
	}
	slog.Info("resolved universe", "market", where, "tickers", len(tickers))

	summary, err := m.Ingest.IngestRange(ctx, where, tickers, start, end)
	logSummary(summary)
	return summary, err
}

func logSummary(s entity.Summary) {
	slog.Info("ingest finished",
		"run_id", s.RunID,
		"market", s.Market,
		"start", s.Start,
		"end", s.End,
		"written", len(s.Written),
		"empty", len(s.Empty),
		"skipped", len(s.Skipped),
		"failed", len(s.Failed),
		"canceled", s.Canceled,
	)
	for day, err := range s.Failed {
		slog.Error("day not ingested", "market", s.Market, "day", day, "error", err)
	}
}

// uploadDays mirrors each day's partition directory to the market's Drive folder.
func uploadDays(ctx context.Context, up *gdrive.Uploader, m *di.Market, days []entity.TradingDay) {
	for _, day := range days {
		dir := m.Store.PartitionDir(day)
		if _, err := up.UploadDir(ctx, dir, m.Config.DriveParent); err != nil {
			slog.Error("failed to upload partition", "market", m.Name, "day", day, "error", err)
		}
	}
}
