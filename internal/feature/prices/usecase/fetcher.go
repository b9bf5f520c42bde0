package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"stock_pipeline/internal/feature/prices/domain"
	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/shared/ratelimiter"
)

// DailyInterval is the bar interval requested from providers.
const DailyInterval = "1d"

// Fetcher retrieves one trading day of daily bars for a ticker set.
type Fetcher struct {
	provider    Provider
	rateLimiter ratelimiter.RateLimiterInterface
}

var _ DayFetcher = (*Fetcher)(nil)

// NewFetcher は新しい Fetcher を作成します。rateLimiter は nil でも構いません。
func NewFetcher(provider Provider, rateLimiter ratelimiter.RateLimiterInterface) *Fetcher {
	return &Fetcher{provider: provider, rateLimiter: rateLimiter}
}

// Fetch downloads the window [day, day+1) in one provider call and returns the
// normalized rows sorted by ticker. Tickers the provider has nothing for are
// omitted. When no ticker has data the result is domain.ErrNoDataAvailable.
func (f *Fetcher) Fetch(ctx context.Context, tickers []string, day entity.TradingDay) ([]entity.OHLCVRow, error) {
	if len(tickers) == 0 {
		return nil, domain.ErrNoTickers
	}
	if f.rateLimiter != nil {
		if err := f.rateLimiter.WaitIfNeeded(ctx); err != nil {
			return nil, err
		}
	}

	table, err := f.provider.Download(ctx, tickers, day, day.Next(), DailyInterval)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, ctxErr
		}
		return nil, &domain.FetchError{Day: day, Err: err}
	}

	rows := Normalize(table, day)
	rows = slices.DeleteFunc(rows, func(r entity.OHLCVRow) bool {
		return !slices.Contains(tickers, r.Ticker)
	})
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", day, domain.ErrNoDataAvailable)
	}
	return rows, nil
}

// Normalize reshapes a provider table into one row per ticker that traded on day.
// A ticker is kept only when Open, High, Low and Close are all present and
// non-negative; a missing Volume becomes 0. Output is sorted by ticker.
func Normalize(table *entity.QuoteTable, day entity.TradingDay) []entity.OHLCVRow {
	if table.Empty() {
		return nil
	}
	var rows []entity.OHLCVRow
	for _, ticker := range table.Tickers() {
		o := table.Value(ticker, day, entity.FieldOpen)
		h := table.Value(ticker, day, entity.FieldHigh)
		l := table.Value(ticker, day, entity.FieldLow)
		c := table.Value(ticker, day, entity.FieldClose)
		if !usable(o) || !usable(h) || !usable(l) || !usable(c) {
			continue
		}

		var vol int64
		if v := table.Value(ticker, day, entity.FieldVolume); !math.IsNaN(v) && !math.IsInf(v, 0) {
			if v < 0 {
				continue
			}
			vol = int64(math.Round(v))
		}

		rows = append(rows, entity.OHLCVRow{
			Ticker: ticker,
			Day:    day,
			Open:   o,
			High:   h,
			Low:    l,
			Close:  c,
			Volume: vol,
		})
	}
	return rows
}

func usable(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
