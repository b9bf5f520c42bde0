package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"stock_pipeline/internal/app/config"
	"stock_pipeline/internal/feature/prices/adapters"
	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
	universeentity "stock_pipeline/internal/feature/universe/domain/entity"
	universeusecase "stock_pipeline/internal/feature/universe/usecase"
	infradb "stock_pipeline/internal/platform/db"
	infrahttp "stock_pipeline/internal/platform/http"
	"stock_pipeline/internal/platform/http/handler"
	"stock_pipeline/internal/platform/metrics"
	infraredis "stock_pipeline/internal/platform/redis"
)

// RunLedger records ingestion runs and answers queries about them.
type RunLedger interface {
	usecase.RunRecorder
	LastRun(ctx context.Context, market string) (entity.RunRecord, error)
	FailedDays(ctx context.Context, market string) ([]entity.FailedDay, error)
}

// Container holds the process-wide components built from one Config.
type Container struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client // nil when the read cache is disabled
	Metrics  *metrics.Registry
	Ledger   RunLedger
	Universe *universeusecase.UniverseUsecase

	markets map[string]*Market
}

// Models returns every gorm model the pipeline migrates.
func Models() []any {
	return append(adapters.LedgerModels(), &universeentity.Member{})
}

// NewContainer opens the database (required) and Redis (optional) and wires every market.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}

	db, err := infradb.Open(infradb.Config{Driver: cfg.Database.Driver, DSN: cfg.Database.DSN, Migrate: true}, Models()...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	rdb, err := infraredis.NewRedisClient(ctx, infraredis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Warn("redis unavailable, running without cache", "addr", cfg.Redis.Addr, "error", err)
		rdb = nil
	}

	c := &Container{
		Config:  cfg,
		DB:      db,
		Redis:   rdb,
		Metrics: metrics.NewRegistry(),
		Ledger:  adapters.NewLedger(db),
		markets: make(map[string]*Market, len(cfg.Markets)),
	}

	client := infrahttp.NewHTTPClient(cfg.Provider.Timeout, infrahttp.DefaultUserAgent)
	if c.Universe, err = NewUniverse(cfg, db, client); err != nil {
		c.Close()
		return nil, err
	}

	provider, err := NewProvider(cfg.Provider)
	if err != nil {
		c.Close()
		return nil, err
	}
	fetcher := NewFetcher(cfg.Provider, provider)
	recorder := usecase.MultiRecorder{c.Ledger, metrics.NewRecorder(c.Metrics)}

	for _, name := range cfg.MarketNames() {
		c.markets[name] = NewMarket(name, cfg.Markets[name], rdb, cfg.Redis.TTL, fetcher, recorder, layout, cfg.Features.Concurrency)
	}
	return c, nil
}

// Market returns the components of a configured market.
func (c *Container) Market(name string) (*Market, error) {
	m, ok := c.markets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMarket, name)
	}
	return m, nil
}

// ErrUnknownMarket is returned by Market for names missing from the configuration.
var ErrUnknownMarket = errors.New("market is not configured")

// Markets returns every configured market, sorted by name.
func (c *Container) Markets() []*Market {
	out := make([]*Market, 0, len(c.markets))
	for _, m := range c.markets {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// HealthChecks returns the dependency probes served on /healthz.
func (c *Container) HealthChecks() map[string]handler.Check {
	checks := map[string]handler.Check{
		"database": func(ctx context.Context) error {
			sqlDB, err := c.DB.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
	if c.Redis != nil {
		checks["redis"] = func(ctx context.Context) error {
			return c.Redis.Ping(ctx).Err()
		}
	}
	for _, m := range c.Markets() {
		store := m.Store
		checks["store:"+m.Name] = func(ctx context.Context) error {
			_, err := store.Days(ctx)
			return err
		}
	}
	return checks
}

// Close releases the database and Redis connections.
func (c *Container) Close() {
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			slog.Error("failed to close redis client", "error", err)
		}
	}
	if c.DB != nil {
		if sqlDB, err := c.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				slog.Error("failed to close database", "error", err)
			}
		}
	}
}
