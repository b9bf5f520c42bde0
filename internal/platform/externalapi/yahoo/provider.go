package yahoo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/prices/usecase"
	"stock_pipeline/internal/platform/externalapi/yahoo/dto"
)

// errNoData marks a symbol Yahoo has no series for (unknown, delisted, no trading).
var errNoData = errors.New("yahoo: no data")

// Provider implements usecase.Provider by issuing one chart request per ticker
// and merging the results into a single wide table.
type Provider struct {
	cfg    Config
	client *http.Client
}

// ProviderがProviderを実装していることをコンパイル時に検証します。
var _ usecase.Provider = (*Provider)(nil)

// NewProvider は指定された設定とHTTPクライアントでProviderを生成します。
func NewProvider(cfg Config, client *http.Client) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	return &Provider{cfg: cfg, client: client}
}

// Download fetches [start, end) for every ticker. Tickers Yahoo has no series
// for are simply absent from the table. Any other per-ticker failure fails the
// whole call so the day is fetched again on the next run.
func (p *Provider) Download(ctx context.Context, tickers []string, start, end entity.TradingDay, interval string) (*entity.QuoteTable, error) {
	table := entity.NewQuoteTable()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Concurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			part, err := p.fetchChart(gctx, ticker, start, end, interval)
			if errors.Is(err, errNoData) {
				return nil
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				if gctx.Err() == nil {
					slog.Warn("yahoo download failed", "ticker", ticker, "error", err)
				}
				return fmt.Errorf("%s: %w", ticker, err)
			}
			mu.Lock()
			table.Merge(part)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return table, nil
}

func (p *Provider) fetchChart(ctx context.Context, ticker string, start, end entity.TradingDay, interval string) (*entity.QuoteTable, error) {
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Time().Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Time().Unix(), 10))
	q.Set("interval", interval)
	q.Set("events", "history")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", p.cfg.BaseURL, url.PathEscape(ticker), q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", p.cfg.UserAgent)

	res, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			slog.Warn("failed to close response body", "error", err)
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}

	var chart dto.ChartResponse
	decodeErr := json.Unmarshal(body, &chart)

	if res.StatusCode == http.StatusNotFound {
		return nil, errNoData
	}
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo http %d", res.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("yahoo decode: %w", decodeErr)
	}
	if e := chart.Chart.Error; e != nil {
		if e.Code == "Not Found" {
			return nil, errNoData
		}
		return nil, fmt.Errorf("yahoo api error: %s: %s", e.Code, e.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Timestamp) == 0 {
		return nil, errNoData
	}
	return toTable(ticker, chart.Chart.Result[0]), nil
}

// toTable converts a chart result to the wide table. Timestamps are mapped to
// calendar days in the exchange's own UTC offset.
func toTable(ticker string, r dto.ChartResult) *entity.QuoteTable {
	table := entity.NewQuoteTable()
	if len(r.Indicators.Quote) == 0 {
		return table
	}
	quote := r.Indicators.Quote[0]
	loc := time.FixedZone("exchange", r.Meta.GMTOffset)

	for i, ts := range r.Timestamp {
		day := entity.NewTradingDay(time.Unix(ts, 0).In(loc))
		table.Put(ticker, day, entity.FieldOpen, at(quote.Open, i))
		table.Put(ticker, day, entity.FieldHigh, at(quote.High, i))
		table.Put(ticker, day, entity.FieldLow, at(quote.Low, i))
		table.Put(ticker, day, entity.FieldClose, at(quote.Close, i))
		table.Put(ticker, day, entity.FieldVolume, at(quote.Volume, i))
	}
	return table
}

// at returns the i-th observation or NaN when it is null or missing.
func at(vs []*float64, i int) float64 {
	if i >= len(vs) || vs[i] == nil {
		return math.NaN()
	}
	return *vs[i]
}
