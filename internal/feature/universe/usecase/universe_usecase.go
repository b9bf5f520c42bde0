// Package usecase resolves the ticker universe for a market.
package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"stock_pipeline/internal/feature/universe/domain"
	"stock_pipeline/internal/feature/universe/domain/entity"
)

// ReferenceSource loads the raw ticker codes of one market.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type ReferenceSource interface {
	Codes(ctx context.Context) ([]string, error)
}

// UniverseUsecase maps markets to their reference sources.
type UniverseUsecase struct {
	sources map[entity.Market]ReferenceSource
}

// NewUniverseUsecase creates a UniverseUsecase. sources is copied.
func NewUniverseUsecase(sources map[entity.Market]ReferenceSource) *UniverseUsecase {
	m := make(map[entity.Market]ReferenceSource, len(sources))
	for k, v := range sources {
		m[k] = v
	}
	return &UniverseUsecase{sources: m}
}

// Markets returns the configured markets, sorted.
func (u *UniverseUsecase) Markets() []entity.Market {
	out := make([]entity.Market, 0, len(u.sources))
	for m := range u.sources {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Resolve returns the market's tickers: trimmed, blanks and duplicates dropped,
// first occurrence order kept. Every failure matches domain.ErrResolution.
func (u *UniverseUsecase) Resolve(ctx context.Context, market entity.Market) ([]string, error) {
	src, ok := u.sources[market]
	if !ok {
		return nil, fmt.Errorf("%q: %w", market, domain.ErrUnknownMarket)
	}

	raw, err := src.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrResolution, market, err)
	}

	seen := make(map[string]struct{}, len(raw))
	tickers := make([]string, 0, len(raw))
	for _, c := range raw {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		tickers = append(tickers, c)
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: %s: reference list is empty", domain.ErrResolution, market)
	}

	slog.Info("resolved universe", "market", market, "tickers", len(tickers))
	return tickers, nil
}
