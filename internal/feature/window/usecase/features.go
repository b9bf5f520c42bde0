// Package usecase builds sliding-window feature vectors from stored partitions.
package usecase

import (
	"fmt"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/window/domain"
	"stock_pipeline/internal/feature/window/domain/entity"
)

// Sentinel is emitted where a ratio has no defined value: the oldest offset of a
// window has no predecessor, and a zero previous close has no ratio.
const Sentinel = 0.0

// degenerateMinMax is the normalized value when every price in the window is equal.
const degenerateMinMax = 0.5

// ComputeFeatures computes the feature row for one window. bars must hold
// exactly pre_days+1 consecutive trading days, oldest first; the last bar is
// the anchor. Values follow layout.FeatureColumns.
func ComputeFeatures(layout entity.Layout, bars []priceentity.OHLCVRow) ([]float64, error) {
	n := layout.WindowSize()
	if len(bars) != n {
		return nil, fmt.Errorf("features: got %d bars, want %d: %w", len(bars), n, domain.ErrBarCount)
	}

	minO, maxO := bars[0].Open, bars[0].Open
	minC, maxC := bars[0].Close, bars[0].Close
	for _, b := range bars[1:] {
		minO, maxO = min(minO, b.Open), max(maxO, b.Open)
		minC, maxC = min(minC, b.Close), max(maxC, b.Close)
	}

	ratios := make([]float64, n)
	ratios[0] = Sentinel
	for i := 1; i < n; i++ {
		ratios[i] = ratio(bars[i-1].Close, bars[i].Close)
	}

	out := make([]float64, 0, layout.NumFeatures())
	runningMax := Sentinel
	for i, b := range bars {
		maxRatio := Sentinel
		if i >= 1 {
			// running maximum over offsets 1..i; the oldest offset has no ratio
			if i == 1 || ratios[i] > runningMax {
				runningMax = ratios[i]
			}
			maxRatio = runningMax
		}
		out = append(out,
			float64(b.Volume),
			minMax(b.Open, minO, maxO),
			minMax(b.Close, minC, maxC),
			maxRatio,
			ratios[i],
		)
	}
	for i := n - 1; i >= 1; i-- {
		out = append(out, ratios[i])
	}
	return out, nil
}

// ComputeLabels computes forward-looking labels relative to the anchor close.
// future must hold exactly post_days trading days following the anchor.
func ComputeLabels(layout entity.Layout, anchorClose float64, future []priceentity.OHLCVRow) ([]float64, error) {
	if len(future) != layout.PostDays() {
		return nil, fmt.Errorf("labels: got %d bars, want %d: %w", len(future), layout.PostDays(), domain.ErrBarCount)
	}
	if layout.PostDays() == 0 {
		return nil, nil
	}

	out := make([]float64, 0, layout.NumLabels())
	best := ratio(anchorClose, future[0].Close)
	for _, b := range future {
		r := ratio(anchorClose, b.Close)
		best = max(best, r)
		out = append(out, r)
	}
	return append(out, best), nil
}

func ratio(prev, cur float64) float64 {
	if prev == 0 {
		return Sentinel
	}
	return (cur - prev) / prev
}

func minMax(v, lo, hi float64) float64 {
	if hi == lo {
		return degenerateMinMax
	}
	return (v - lo) / (hi - lo)
}
