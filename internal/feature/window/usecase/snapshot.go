package usecase

import (
	"sort"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/window/domain"
	"stock_pipeline/internal/feature/window/domain/entity"
)

// snapshot is an immutable in-memory view of a contiguous run of stored partitions.
// It is shared read-only by every window computation.
type snapshot struct {
	present    map[priceentity.TradingDay]struct{}
	rows       map[priceentity.TradingDay]map[string]priceentity.OHLCVRow
	trading    []priceentity.TradingDay // non-empty partitions, ascending
	tradingIdx map[priceentity.TradingDay]int
}

func newSnapshot(parts []priceentity.Partition) *snapshot {
	s := &snapshot{
		present:    make(map[priceentity.TradingDay]struct{}, len(parts)),
		rows:       make(map[priceentity.TradingDay]map[string]priceentity.OHLCVRow, len(parts)),
		tradingIdx: make(map[priceentity.TradingDay]int),
	}
	sorted := make([]priceentity.Partition, len(parts))
	copy(sorted, parts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Day.Before(sorted[j].Day) })

	for _, p := range sorted {
		s.present[p.Day] = struct{}{}
		if p.Empty() {
			continue
		}
		byTicker := make(map[string]priceentity.OHLCVRow, len(p.Rows))
		for _, r := range p.Rows {
			byTicker[r.Ticker] = r
		}
		s.rows[p.Day] = byTicker
		s.tradingIdx[p.Day] = len(s.trading)
		s.trading = append(s.trading, p.Day)
	}
	return s
}

// tickers returns every ticker that appears on a trading day in [start, end], sorted.
func (s *snapshot) tickers(start, end priceentity.TradingDay) []string {
	seen := make(map[string]struct{})
	for _, d := range s.trading {
		if d.Before(start) || d.After(end) {
			continue
		}
		for t := range s.rows[d] {
			seen[t] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// anchors returns the trading days in [start, end].
func (s *snapshot) anchors(start, end priceentity.TradingDay) []priceentity.TradingDay {
	var out []priceentity.TradingDay
	for _, d := range s.trading {
		if !d.Before(start) && !d.After(end) {
			out = append(out, d)
		}
	}
	return out
}

// window computes the vector for (ticker, anchor) or returns *domain.InsufficientWindowError.
func (s *snapshot) window(layout entity.Layout, ticker string, anchor priceentity.TradingDay, withLabels bool) (entity.FeatureVector, error) {
	insufficient := func(reason domain.Reason, day priceentity.TradingDay) error {
		return &domain.InsufficientWindowError{Ticker: ticker, Anchor: anchor, Reason: reason, Day: day}
	}

	ai, ok := s.tradingIdx[anchor]
	if !ok {
		return entity.FeatureVector{}, insufficient(domain.ReasonAnchorNotTradingDay, priceentity.TradingDay{})
	}
	pre := layout.PreDays()
	if ai < pre {
		return entity.FeatureVector{}, insufficient(domain.ReasonShortHistory, priceentity.TradingDay{})
	}

	bars, err := s.bars(ticker, s.trading[ai-pre:ai+1], insufficient)
	if err != nil {
		return entity.FeatureVector{}, err
	}
	features, err := ComputeFeatures(layout, bars)
	if err != nil {
		return entity.FeatureVector{}, err
	}
	vec := entity.FeatureVector{Ticker: ticker, Anchor: anchor, Features: features}

	if !withLabels || layout.PostDays() == 0 {
		return vec, nil
	}
	post := layout.PostDays()
	if ai+post >= len(s.trading) {
		return entity.FeatureVector{}, insufficient(domain.ReasonShortFuture, priceentity.TradingDay{})
	}
	future, err := s.bars(ticker, s.trading[ai:ai+post+1], insufficient)
	if err != nil {
		return entity.FeatureVector{}, err
	}
	labels, err := ComputeLabels(layout, future[0].Close, future[1:])
	if err != nil {
		return entity.FeatureVector{}, err
	}
	vec.Labels = labels
	return vec, nil
}

// bars collects ticker's rows for consecutive trading days. Every calendar day
// between the first and last day must be present in the store (possibly empty),
// otherwise a missing trading day could hide inside the window.
func (s *snapshot) bars(ticker string, days []priceentity.TradingDay, insufficient func(domain.Reason, priceentity.TradingDay) error) ([]priceentity.OHLCVRow, error) {
	for d := days[0]; d.Before(days[len(days)-1]); d = d.Next() {
		if _, ok := s.present[d]; !ok {
			return nil, insufficient(domain.ReasonPartitionMissing, d)
		}
	}
	out := make([]priceentity.OHLCVRow, 0, len(days))
	for _, d := range days {
		r, ok := s.rows[d][ticker]
		if !ok {
			return nil, insufficient(domain.ReasonTickerMissing, d)
		}
		out = append(out, r)
	}
	return out, nil
}
