package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/app/config"
	"stock_pipeline/internal/app/di"
	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/platform/logging"
)

// app carries state shared by every subcommand.
type app struct {
	configPath string
	cfg        *config.Config
	now        func() time.Time
}

func newRootCmd() *cobra.Command {
	a := &app{now: time.Now}

	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Incremental OHLCV ingestion and window feature builder",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.load()
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "configs/config.yaml", "Path to the YAML configuration file")

	root.AddCommand(
		newIngestCmd(a),
		newFeaturesCmd(a),
		newUploadCmd(a),
		newScheduleCmd(a),
		newRunsCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if _, err := logging.New(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

func (a *app) container(ctx context.Context) (*di.Container, error) {
	return di.NewContainer(ctx, a.cfg)
}

func (a *app) today() entity.TradingDay {
	return entity.NewTradingDay(a.now())
}
