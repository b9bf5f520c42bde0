// Package config loads the pipeline configuration: a YAML file overlaid by
// STOCKPIPE_* environment variables, validated once at start-up.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	universeentity "stock_pipeline/internal/feature/universe/domain/entity"
	"stock_pipeline/internal/feature/window/domain/entity"
)

// EnvPrefix prefixes every environment override, e.g. STOCKPIPE_DATABASE_DSN.
const EnvPrefix = "STOCKPIPE"

// Config holds all pipeline configuration. Treat it as read-only after Load.
type Config struct {
	Markets  map[string]MarketConfig `yaml:"markets" ignored:"true" validate:"required,min=1,dive"`
	Features FeaturesConfig          `yaml:"features" envconfig:"FEATURES"`
	Provider ProviderConfig          `yaml:"provider" envconfig:"PROVIDER"`
	Database DatabaseConfig          `yaml:"database" envconfig:"DATABASE"`
	Redis    RedisConfig             `yaml:"redis" envconfig:"REDIS"`
	Server   ServerConfig            `yaml:"server" envconfig:"SERVER"`
	Schedule ScheduleConfig          `yaml:"schedule" envconfig:"SCHEDULE"`
	Drive    DriveConfig             `yaml:"drive" envconfig:"DRIVE"`
	Log      LogConfig               `yaml:"log" envconfig:"LOG"`
}

// MarketConfig describes one ticker universe and where its partitions live.
type MarketConfig struct {
	Universe      string `yaml:"universe" validate:"required,oneof=regional-index broad-index database"`
	DataPath      string `yaml:"data_path" validate:"required"`
	ReferenceFile string `yaml:"reference_file" validate:"required_if=Universe regional-index"`
	ReferenceURL  string `yaml:"reference_url" validate:"omitempty,url"`
	CacheFile     string `yaml:"cache_file" validate:"required_if=Universe broad-index"`
	DriveParent   string `yaml:"drive_parent"`
}

// DateRange is an inclusive YYYY-MM-DD range.
type DateRange struct {
	Start string `yaml:"start" envconfig:"START" validate:"required,datetime=2006-01-02"`
	End   string `yaml:"end" envconfig:"END" validate:"required,datetime=2006-01-02"`
}

// Days parses the range.
func (r DateRange) Days() (start, end priceentity.TradingDay, err error) {
	if start, err = priceentity.ParseTradingDay(r.Start); err != nil {
		return
	}
	if end, err = priceentity.ParseTradingDay(r.End); err != nil {
		return
	}
	if start.After(end) {
		err = fmt.Errorf("range start %s is after end %s", r.Start, r.End)
	}
	return
}

type FeaturesConfig struct {
	PreDays     int       `yaml:"pre_days" envconfig:"PRE_DAYS" validate:"gte=1"`
	PostDays    int       `yaml:"post_days" envconfig:"POST_DAYS" validate:"gte=1"`
	Concurrency int       `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1"`
	Train       DateRange `yaml:"train" envconfig:"TRAIN"`
	Simulate    DateRange `yaml:"simulate" envconfig:"SIMULATE"`
}

type ProviderConfig struct {
	Name        string        `yaml:"name" envconfig:"NAME" validate:"oneof=yahoo twelvedata"`
	BaseURL     string        `yaml:"base_url" envconfig:"BASE_URL" validate:"omitempty,url"`
	APIKey      string        `yaml:"api_key" envconfig:"API_KEY" validate:"required_if=Name twelvedata"`
	Timeout     time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	Rate        int           `yaml:"rate" envconfig:"RATE" validate:"gte=0"`
	RateWindow  time.Duration `yaml:"rate_window" envconfig:"RATE_WINDOW" validate:"gte=0"`
	Burst       int           `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
	Concurrency int           `yaml:"concurrency" envconfig:"CONCURRENCY" validate:"gte=1"`
	Breaker     BreakerConfig `yaml:"breaker" envconfig:"BREAKER"`
}

type BreakerConfig struct {
	ConsecutiveFailures uint32        `yaml:"consecutive_failures" envconfig:"CONSECUTIVE_FAILURES"`
	Timeout             time.Duration `yaml:"timeout" envconfig:"TIMEOUT"`
}

type DatabaseConfig struct {
	Driver string `yaml:"driver" envconfig:"DRIVER" validate:"oneof=sqlite postgres"`
	DSN    string `yaml:"dsn" envconfig:"DSN" validate:"required"`
}

// RedisConfig is optional; an empty Addr disables the read cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr" envconfig:"ADDR"`
	Password string        `yaml:"password" envconfig:"PASSWORD"`
	DB       int           `yaml:"db" envconfig:"DB"`
	TTL      time.Duration `yaml:"ttl" envconfig:"TTL"`
}

type ServerConfig struct {
	Addr      string `yaml:"addr" envconfig:"ADDR" validate:"required"`
	JWTSecret string `yaml:"jwt_secret" envconfig:"JWT_SECRET"`
}

type ScheduleConfig struct {
	Cron         string `yaml:"cron" envconfig:"CRON" validate:"required"`
	LookbackDays int    `yaml:"lookback_days" envconfig:"LOOKBACK_DAYS" validate:"gte=0"`
	MetricsAddr  string `yaml:"metrics_addr" envconfig:"METRICS_ADDR"`
}

type DriveConfig struct {
	CredentialsFile string `yaml:"credentials_file" envconfig:"CREDENTIALS_FILE"`
}

type LogConfig struct {
	Level  string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" envconfig:"FORMAT" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Markets: defaultMarkets(),
		Features: FeaturesConfig{
			PreDays:     10,
			PostDays:    4,
			Concurrency: 4,
			Train:       DateRange{Start: "2023-01-01", End: "2025-01-31"},
			Simulate:    DateRange{Start: "2024-09-28", End: "2024-12-27"},
		},
		Provider: ProviderConfig{
			Name:        "yahoo",
			Timeout:     30 * time.Second,
			Rate:        8,
			RateWindow:  time.Minute,
			Burst:       1,
			Concurrency: 1,
			Breaker:     BreakerConfig{ConsecutiveFailures: 5, Timeout: 30 * time.Second},
		},
		Database: DatabaseConfig{Driver: "sqlite", DSN: "data/ledger.db"},
		Redis:    RedisConfig{TTL: 5 * time.Minute},
		Server:   ServerConfig{Addr: ":8080"},
		Schedule: ScheduleConfig{Cron: "0 30 18 * * 1-5", LookbackDays: 7},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

func defaultMarkets() map[string]MarketConfig {
	return map[string]MarketConfig{
		string(universeentity.MarketHK): {
			Universe:      string(universeentity.KindRegionalIndex),
			DataPath:      "dataset/hsi_stock_data",
			ReferenceFile: "configs/hsi_constituents.csv",
			DriveParent:   "stock_dataset/hsi_stock_data",
		},
		string(universeentity.MarketUS): {
			Universe:     string(universeentity.KindBroadIndex),
			DataPath:     "dataset/stock.parquet.gz",
			ReferenceURL: "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies",
			CacheFile:    "dataset/sp500_companies.csv",
			DriveParent:  "stock_dataset/stock.parquet.gz",
		},
	}
}

// Load reads path (a missing file keeps the defaults), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			// markets listed in the file replace the built-in set
			cfg.Markets = nil
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
			if len(cfg.Markets) == 0 {
				cfg.Markets = defaultMarkets()
			}
		}
	}
	cfg.fillMarketDefaults()

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// fillMarketDefaults completes partially configured built-in markets.
func (c *Config) fillMarketDefaults() {
	for name, def := range defaultMarkets() {
		m, ok := c.Markets[name]
		if !ok {
			continue
		}
		if m.Universe == "" {
			m.Universe = def.Universe
		}
		if m.DataPath == "" {
			m.DataPath = def.DataPath
		}
		if m.Universe == def.Universe {
			if m.ReferenceFile == "" {
				m.ReferenceFile = def.ReferenceFile
			}
			if m.ReferenceURL == "" {
				m.ReferenceURL = def.ReferenceURL
			}
			if m.CacheFile == "" {
				m.CacheFile = def.CacheFile
			}
		}
		if m.DriveParent == "" {
			m.DriveParent = def.DriveParent
		}
		c.Markets[name] = m
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := c.Layout(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	for name, r := range map[string]DateRange{"train": c.Features.Train, "simulate": c.Features.Simulate} {
		if _, _, err := r.Days(); err != nil {
			return fmt.Errorf("config validation failed: features.%s: %w", name, err)
		}
	}
	return nil
}

// Layout returns the immutable feature layout.
func (c *Config) Layout() (entity.Layout, error) {
	return entity.NewLayout(c.Features.PreDays, c.Features.PostDays)
}

// Market returns the configuration of a named market.
func (c *Config) Market(name string) (MarketConfig, error) {
	m, ok := c.Markets[name]
	if !ok {
		return MarketConfig{}, fmt.Errorf("market %q is not configured", name)
	}
	return m, nil
}

// MarketNames returns the configured market names, sorted.
func (c *Config) MarketNames() []string {
	names := make([]string, 0, len(c.Markets))
	for name := range c.Markets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Range returns the named feature range ("train" or "simulate").
func (c *Config) Range(name string) (DateRange, error) {
	switch name {
	case "train":
		return c.Features.Train, nil
	case "simulate":
		return c.Features.Simulate, nil
	default:
		return DateRange{}, fmt.Errorf("unknown range %q (want train or simulate)", name)
	}
}
