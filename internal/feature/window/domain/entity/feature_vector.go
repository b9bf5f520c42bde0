package entity

import priceentity "stock_pipeline/internal/feature/prices/domain/entity"

// FeatureVector is one fixed-width row for a (ticker, anchor) pair.
// Features follow Layout.FeatureColumns; Labels follow Layout.LabelColumns and
// are nil when labels were not requested.
type FeatureVector struct {
	Ticker   string
	Anchor   priceentity.TradingDay
	Features []float64
	Labels   []float64
}

// Values returns features followed by labels.
func (v FeatureVector) Values() []float64 {
	out := make([]float64, 0, len(v.Features)+len(v.Labels))
	out = append(out, v.Features...)
	return append(out, v.Labels...)
}
