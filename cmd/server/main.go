// Command server serves stored partitions, window features and ticker
// universes over HTTP.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"stock_pipeline/internal/app/config"
	"stock_pipeline/internal/app/di"
	"stock_pipeline/internal/app/router"
	pricehandler "stock_pipeline/internal/feature/prices/transport/handler"
	universehandler "stock_pipeline/internal/feature/universe/transport/handler"
	windowhandler "stock_pipeline/internal/feature/window/transport/handler"
	"stock_pipeline/internal/platform/logging"
)

func main() {
	var configPath string
	cmd := &cobra.Command{
		Use:           "server",
		Short:         "Serve the read API",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "configs/config.yaml", "Path to the YAML configuration file")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if _, err := logging.New(cfg.Log.Level, cfg.Log.Format); err != nil {
		return err
	}

	c, err := di.NewContainer(ctx, cfg)
	if err != nil {
		return err
	}
	defer c.Close()

	// Handler
	readers := make(map[string]pricehandler.PartitionReader)
	builders := make(map[string]windowhandler.WindowBuilder)
	for _, m := range c.Markets() {
		readers[m.Name] = m.Partitions
		builders[m.Name] = m.Builder
	}

	// ルータ生成
	r := router.NewRouter(router.Handlers{
		Partitions: pricehandler.NewPartitionHandler(readers),
		Features:   windowhandler.NewFeatureHandler(builders),
		Universe:   universehandler.NewUniverseHandler(c.Universe),
		Checks:     c.HealthChecks(),
		Metrics:    c.Metrics,
	}, cfg.Server.JWTSecret)

	srv := &http.Server{Addr: cfg.Server.Addr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
