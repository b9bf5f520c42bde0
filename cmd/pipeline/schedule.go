package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/app/scheduler"
	"stock_pipeline/internal/feature/prices/domain/entity"
)

func newScheduleCmd(a *app) *cobra.Command {
	var (
		where  string
		runNow bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run ingestion on the configured cron schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			c, err := a.container(ctx)
			if err != nil {
				return err
			}
			defer c.Close()
			if _, err := c.Market(where); err != nil {
				return err
			}

			sched := scheduler.New(ctx, func(ctx context.Context, start, end entity.TradingDay) error {
				_, err := ingest(ctx, c, where, start, end)
				return err
			}, a.cfg.Schedule.LookbackDays)
			if err := sched.Register(a.cfg.Schedule.Cron); err != nil {
				return err
			}

			if addr := a.cfg.Schedule.MetricsAddr; addr != "" {
				srv := &http.Server{Addr: addr, Handler: c.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						slog.Error("metrics server failed", "addr", addr, "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			if runNow {
				sched.RunNow()
			}
			sched.Start()
			slog.Info("waiting for schedule", "market", where, "cron", a.cfg.Schedule.Cron, "lookback_days", a.cfg.Schedule.LookbackDays)

			<-ctx.Done()
			slog.Info("shutdown signal received, stopping...")
			sched.Stop()
			return nil
		},
	}
	cmd.Flags().StringVar(&where, "where", "hk", "Market to ingest")
	cmd.Flags().BoolVar(&runNow, "run-now", false, "Run once immediately before waiting for the schedule")
	return cmd
}
