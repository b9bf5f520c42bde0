package di

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock_pipeline/internal/app/config"
	"stock_pipeline/internal/feature/prices/domain"
	universeadapters "stock_pipeline/internal/feature/universe/adapters"
	universeentity "stock_pipeline/internal/feature/universe/domain/entity"
	"stock_pipeline/internal/platform/breaker"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Database.DSN = filepath.Join(dir, "db", "ledger.db")
	cfg.Markets = map[string]config.MarketConfig{
		"hk": {
			Universe:      "regional-index",
			DataPath:      filepath.Join(dir, "hk"),
			ReferenceFile: filepath.Join(dir, "hsi.csv"),
		},
		"us": {
			Universe:  "broad-index",
			DataPath:  filepath.Join(dir, "us"),
			CacheFile: filepath.Join(dir, "sp500.csv"),
		},
	}
	require.NoError(t, cfg.Validate())
	return &cfg
}

func TestNewContainer(t *testing.T) {
	cfg := testConfig(t)

	c, err := NewContainer(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	assert.Nil(t, c.Redis)
	assert.Equal(t, []universeentity.Market{"hk", "us"}, c.Universe.Markets())

	markets := c.Markets()
	require.Len(t, markets, 2)
	assert.Equal(t, "hk", markets[0].Name)
	assert.Equal(t, cfg.Markets["hk"].DataPath, markets[0].Store.Root())
	assert.Equal(t, 10, markets[0].Builder.Layout().PreDays())

	_, err = c.Market("jp")
	assert.ErrorIs(t, err, ErrUnknownMarket)

	// the ledger tables were migrated
	_, err = c.Ledger.LastRun(context.Background(), "hk")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)

	checks := c.HealthChecks()
	assert.Len(t, checks, 3)
	for name, check := range checks {
		assert.NoError(t, check(context.Background()), name)
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"yahoo", "twelvedata"} {
		cfg := config.Default().Provider
		cfg.Name = name
		p, err := NewProvider(cfg)
		require.NoError(t, err)
		assert.IsType(t, &breaker.Provider{}, p)
	}

	cfg := config.Default().Provider
	cfg.Name = "bloomberg"
	_, err := NewProvider(cfg)
	assert.Error(t, err)
}

func TestNewReferenceSource(t *testing.T) {
	t.Parallel()

	src, err := NewReferenceSource("hk", config.MarketConfig{Universe: "regional-index", ReferenceFile: "x.csv"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &universeadapters.MembershipCSV{}, src)

	src, err = NewReferenceSource("us", config.MarketConfig{Universe: "broad-index", CacheFile: "c.csv"}, nil, nil)
	require.NoError(t, err)
	assert.IsType(t, &universeadapters.WikipediaSource{}, src)

	_, err = NewReferenceSource("jp", config.MarketConfig{Universe: "database"}, nil, nil)
	assert.Error(t, err)

	_, err = NewReferenceSource("jp", config.MarketConfig{Universe: "nikkei"}, nil, nil)
	assert.Error(t, err)
}
