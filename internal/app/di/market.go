// Package di provides dependency injection factories for creating application components.
package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gorm.io/gorm"

	"stock_pipeline/internal/app/config"
	"stock_pipeline/internal/feature/prices/adapters"
	"stock_pipeline/internal/feature/prices/usecase"
	universeadapters "stock_pipeline/internal/feature/universe/adapters"
	universeentity "stock_pipeline/internal/feature/universe/domain/entity"
	universeusecase "stock_pipeline/internal/feature/universe/usecase"
	windowentity "stock_pipeline/internal/feature/window/domain/entity"
	windowusecase "stock_pipeline/internal/feature/window/usecase"
	"stock_pipeline/internal/platform/breaker"
	"stock_pipeline/internal/platform/cache"
	"stock_pipeline/internal/platform/externalapi/gdrive"
	"stock_pipeline/internal/platform/externalapi/twelvedata"
	"stock_pipeline/internal/platform/externalapi/yahoo"
	infrahttp "stock_pipeline/internal/platform/http"
	"stock_pipeline/internal/shared/ratelimiter"

	"github.com/redis/go-redis/v9"
)

// Market bundles the components serving one configured market.
type Market struct {
	Name   string
	Config config.MarketConfig

	// Store is the on-disk partition store; Partitions is the same store
	// behind the Redis read cache (a pass-through when Redis is disabled).
	Store      *adapters.ParquetStore
	Partitions *cache.CachingPartitionStore
	Ingest     *usecase.IngestUsecase
	Builder    *windowusecase.Builder
}

// NewProvider creates the configured market data provider wrapped in a circuit breaker.
func NewProvider(cfg config.ProviderConfig) (usecase.Provider, error) {
	client := infrahttp.NewHTTPClient(cfg.Timeout, infrahttp.DefaultUserAgent)

	var inner usecase.Provider
	switch cfg.Name {
	case "yahoo", "":
		inner = yahoo.NewProvider(yahoo.Config{
			BaseURL:     cfg.BaseURL,
			Timeout:     cfg.Timeout,
			Concurrency: cfg.Concurrency,
			UserAgent:   infrahttp.DefaultUserAgent,
		}, client)
	case "twelvedata":
		inner = twelvedata.NewTwelveDataProvider(twelvedata.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Timeout: cfg.Timeout,
		}, client)
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Name)
	}

	return breaker.NewProvider(inner, breaker.Config{
		Name:                cfg.Name,
		ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
		Timeout:             cfg.Breaker.Timeout,
	}), nil
}

// NewFetcher creates the day fetcher with the configured request budget.
func NewFetcher(cfg config.ProviderConfig, provider usecase.Provider) *usecase.Fetcher {
	window := cfg.RateWindow
	if window <= 0 {
		window = time.Minute
	}
	return usecase.NewFetcher(provider, ratelimiter.NewRateLimiter(cfg.Rate, window, cfg.Burst))
}

// NewReferenceSource creates the reference source for a market's universe kind.
// db is only needed for the database kind.
func NewReferenceSource(name string, mc config.MarketConfig, db *gorm.DB, client *http.Client) (universeusecase.ReferenceSource, error) {
	kind, err := universeentity.ParseKind(mc.Universe)
	if err != nil {
		return nil, fmt.Errorf("market %s: %w", name, err)
	}
	switch kind {
	case universeentity.KindRegionalIndex:
		return universeadapters.NewMembershipCSV(mc.ReferenceFile), nil
	case universeentity.KindBroadIndex:
		return universeadapters.NewWikipediaSource(mc.ReferenceURL, mc.CacheFile, client), nil
	default:
		if db == nil {
			return nil, fmt.Errorf("market %s: database universe needs a database", name)
		}
		return universeadapters.NewMemberSource(db, universeentity.Market(name)), nil
	}
}

// NewUniverse builds the resolver over every configured market.
func NewUniverse(cfg *config.Config, db *gorm.DB, client *http.Client) (*universeusecase.UniverseUsecase, error) {
	sources := make(map[universeentity.Market]universeusecase.ReferenceSource, len(cfg.Markets))
	for _, name := range cfg.MarketNames() {
		src, err := NewReferenceSource(name, cfg.Markets[name], db, client)
		if err != nil {
			return nil, err
		}
		sources[universeentity.Market(name)] = src
	}
	return universeusecase.NewUniverseUsecase(sources), nil
}

// NewMarket wires the store, cache, ingestion driver and window builder of one market.
// rdb may be nil.
func NewMarket(name string, mc config.MarketConfig, rdb *redis.Client, ttl time.Duration,
	fetcher usecase.DayFetcher, recorder usecase.RunRecorder, layout windowentity.Layout, concurrency int) *Market {
	store := adapters.NewParquetStore(mc.DataPath)
	cached := cache.NewCachingPartitionStore(rdb, ttl, store, cache.Namespace("partitions", name))
	return &Market{
		Name:       name,
		Config:     mc,
		Store:      store,
		Partitions: cached,
		Ingest:     usecase.NewIngestUsecase(cached, fetcher, recorder),
		Builder:    windowusecase.NewBuilder(cached, layout, concurrency),
	}
}

// NewUploader creates the Drive uploader from the configured service account file.
func NewUploader(ctx context.Context, cfg config.DriveConfig) (*gdrive.Uploader, error) {
	if cfg.CredentialsFile == "" {
		return nil, errors.New("drive.credentials_file is not configured")
	}
	return gdrive.NewUploader(ctx, cfg.CredentialsFile)
}
