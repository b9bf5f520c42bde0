// Package entity defines the domain models for the window feature.
package entity

import (
	"fmt"
	"slices"

	"stock_pipeline/internal/feature/window/domain"
)

// Layout is the immutable column layout derived from pre_days and post_days.
// Build it once with NewLayout and share it; accessors return copies.
type Layout struct {
	preDays  int
	postDays int
	features []string
	labels   []string
	index    map[string]int
}

// NewLayout derives feature and label columns. preDays must be at least 1 and postDays non-negative.
func NewLayout(preDays, postDays int) (Layout, error) {
	if preDays < 1 || postDays < 0 {
		return Layout{}, fmt.Errorf("pre_days=%d post_days=%d: %w", preDays, postDays, domain.ErrInvalidLayout)
	}

	features := make([]string, 0, 5*(preDays+1)+preDays)
	for i := 0; i <= preDays; i++ {
		features = append(features,
			fmt.Sprintf("Volume_p%d", i),
			fmt.Sprintf("OpenMinMax_p%d", i),
			fmt.Sprintf("CloseMinMax_p%d", i),
			fmt.Sprintf("maxIncreaseRatio_p%d", i),
			fmt.Sprintf("increaseRatio_p%d", i),
		)
	}
	for i := preDays; i >= 1; i-- {
		features = append(features, fmt.Sprintf("increase_p%dp%d", i, i-1))
	}

	var labels []string
	if postDays > 0 {
		for j := 1; j <= postDays; j++ {
			labels = append(labels, fmt.Sprintf("futureIncrease_n%d", j))
		}
		labels = append(labels, "maxFutureIncreaseRatio")
	}

	index := make(map[string]int, len(features)+len(labels))
	for i, c := range features {
		index[c] = i
	}
	for i, c := range labels {
		index[c] = len(features) + i
	}

	return Layout{preDays: preDays, postDays: postDays, features: features, labels: labels, index: index}, nil
}

// MustLayout is NewLayout for constants known to be valid.
func MustLayout(preDays, postDays int) Layout {
	l, err := NewLayout(preDays, postDays)
	if err != nil {
		panic(err)
	}
	return l
}

func (l Layout) PreDays() int  { return l.preDays }
func (l Layout) PostDays() int { return l.postDays }

// WindowSize is the number of trading days a feature window spans (pre_days + 1).
func (l Layout) WindowSize() int { return l.preDays + 1 }

// FeatureColumns returns the feature column names in output order.
func (l Layout) FeatureColumns() []string { return slices.Clone(l.features) }

// LabelColumns returns the label column names in output order.
func (l Layout) LabelColumns() []string { return slices.Clone(l.labels) }

// Columns returns feature columns followed by label columns when withLabels is set.
func (l Layout) Columns(withLabels bool) []string {
	if !withLabels {
		return l.FeatureColumns()
	}
	return slices.Concat(l.features, l.labels)
}

// NumFeatures is len(FeatureColumns()) without the copy.
func (l Layout) NumFeatures() int { return len(l.features) }

// NumLabels is len(LabelColumns()) without the copy.
func (l Layout) NumLabels() int { return len(l.labels) }

// ColumnIndex returns the position of name within Columns(true).
func (l Layout) ColumnIndex(name string) (int, bool) {
	i, ok := l.index[name]
	return i, ok
}
