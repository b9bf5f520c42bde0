package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"golang.org/x/sync/errgroup"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/window/domain"
	"stock_pipeline/internal/feature/window/domain/entity"
)

// PartitionReader は保存済みパーティションの読み取りを抽象化します。
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type PartitionReader interface {
	Days(ctx context.Context) ([]priceentity.TradingDay, error)
	ReadRange(ctx context.Context, start, end priceentity.TradingDay) ([]priceentity.Partition, error)
}

// TableSummary counts built rows and skipped (ticker, anchor) pairs.
type TableSummary struct {
	Rows            int
	Skipped         int
	SkippedByReason map[domain.Reason]int
}

// Builder builds feature vectors. It only reads the store.
type Builder struct {
	reader      PartitionReader
	layout      entity.Layout
	concurrency int
}

// NewBuilder は新しい Builder を作成します。concurrency <= 0 の場合は 1 になります。
func NewBuilder(reader PartitionReader, layout entity.Layout, concurrency int) *Builder {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Builder{reader: reader, layout: layout, concurrency: concurrency}
}

// Layout returns the layout the builder emits.
func (b *Builder) Layout() entity.Layout { return b.layout }

// BuildWindow builds the vector for one (ticker, anchor). It reads only the
// partitions around anchor, widening the read while history or future is short
// and more stored days exist.
func (b *Builder) BuildWindow(ctx context.Context, ticker string, anchor priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
	days, err := b.reader.Days(ctx)
	if err != nil {
		return entity.FeatureVector{}, fmt.Errorf("list partitions: %w", err)
	}
	k := sort.Search(len(days), func(i int) bool { return !days[i].Before(anchor) })
	if k == len(days) || days[k] != anchor {
		return entity.FeatureVector{}, &domain.InsufficientWindowError{Ticker: ticker, Anchor: anchor, Reason: domain.ReasonAnchorNotTradingDay}
	}

	back := b.layout.PreDays()
	ahead := 0
	if withLabels {
		ahead = b.layout.PostDays()
	}
	for {
		lo := max(0, k-back)
		hi := min(len(days)-1, k+ahead)
		parts, err := b.reader.ReadRange(ctx, days[lo], days[hi])
		if err != nil {
			return entity.FeatureVector{}, fmt.Errorf("read partitions: %w", err)
		}

		vec, err := newSnapshot(parts).window(b.layout, ticker, anchor, withLabels)
		var iw *domain.InsufficientWindowError
		if errors.As(err, &iw) {
			// 空パーティション（休場日）を挟むと必要な日数が足りないので範囲を広げる
			if iw.Reason == domain.ReasonShortHistory && lo > 0 {
				back *= 2
				continue
			}
			if iw.Reason == domain.ReasonShortFuture && hi < len(days)-1 {
				ahead *= 2
				continue
			}
		}
		return vec, err
	}
}

// BuildTable builds every (ticker, anchor) vector for trading-day anchors in
// [start, end] from one read of the store. When tickers is empty every ticker
// seen in the range is used. Rows are ordered by anchor, then ticker; pairs
// without a full window are counted in the summary and left out.
func (b *Builder) BuildTable(ctx context.Context, tickers []string, start, end priceentity.TradingDay, withLabels bool) ([]entity.FeatureVector, TableSummary, error) {
	summary := TableSummary{SkippedByReason: make(map[domain.Reason]int)}
	if start.After(end) {
		return nil, summary, fmt.Errorf("%s > %s: invalid range", start, end)
	}

	days, err := b.reader.Days(ctx)
	if err != nil {
		return nil, summary, fmt.Errorf("list partitions: %w", err)
	}
	if len(days) == 0 {
		return nil, summary, nil
	}
	parts, err := b.reader.ReadRange(ctx, days[0], days[len(days)-1])
	if err != nil {
		return nil, summary, fmt.Errorf("read partitions: %w", err)
	}
	snap := newSnapshot(parts)

	if len(tickers) == 0 {
		tickers = snap.tickers(start, end)
	}
	anchors := snap.anchors(start, end)

	type result struct {
		rows    []entity.FeatureVector
		skipped map[domain.Reason]int
	}
	results := make([]result, len(tickers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, ticker := range tickers {
		g.Go(func() error {
			res := result{skipped: make(map[domain.Reason]int)}
			for _, anchor := range anchors {
				if err := gctx.Err(); err != nil {
					return err
				}
				vec, err := snap.window(b.layout, ticker, anchor, withLabels)
				var iw *domain.InsufficientWindowError
				if errors.As(err, &iw) {
					res.skipped[iw.Reason]++
					continue
				}
				if err != nil {
					return fmt.Errorf("%s at %s: %w", ticker, anchor, err)
				}
				res.rows = append(res.rows, vec)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, summary, err
	}

	var rows []entity.FeatureVector
	for _, r := range results {
		rows = append(rows, r.rows...)
		for reason, n := range r.skipped {
			summary.SkippedByReason[reason] += n
			summary.Skipped += n
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Anchor != rows[j].Anchor {
			return rows[i].Anchor.Before(rows[j].Anchor)
		}
		return rows[i].Ticker < rows[j].Ticker
	})
	summary.Rows = len(rows)

	slog.Info("built feature table", "start", start, "end", end, "tickers", len(tickers), "rows", summary.Rows, "skipped", summary.Skipped)
	return rows, summary, nil
}
