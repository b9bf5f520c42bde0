package entity

import (
	"math"
	"sort"
)

// Field identifies one column family of a provider response.
type Field string

const (
	FieldOpen   Field = "Open"
	FieldHigh   Field = "High"
	FieldLow    Field = "Low"
	FieldClose  Field = "Close"
	FieldVolume Field = "Volume"
)

// Fields lists every field in canonical order.
var Fields = []Field{FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume}

// ColumnKey addresses one (ticker, field) column of a QuoteTable.
type ColumnKey struct {
	Ticker string
	Field  Field
}

// QuoteTable is the provider-neutral wide table returned by a market data provider.
// Every column is aligned with Index; a missing observation is NaN.
type QuoteTable struct {
	Index   []TradingDay
	Columns map[ColumnKey][]float64
}

// NewQuoteTable returns an empty table.
func NewQuoteTable() *QuoteTable {
	return &QuoteTable{Columns: make(map[ColumnKey][]float64)}
}

// Put stores v for (ticker, field) on day, growing the shared index as needed.
func (q *QuoteTable) Put(ticker string, day TradingDay, field Field, v float64) {
	if q.Columns == nil {
		q.Columns = make(map[ColumnKey][]float64)
	}
	i := q.indexOf(day)
	if i < 0 {
		i = q.insertDay(day)
	}
	key := ColumnKey{Ticker: ticker, Field: field}
	col, ok := q.Columns[key]
	if !ok {
		col = nanColumn(len(q.Index))
	}
	col[i] = v
	q.Columns[key] = col
}

// Value returns the observation for (ticker, field) on day, or NaN when absent.
func (q *QuoteTable) Value(ticker string, day TradingDay, field Field) float64 {
	if q == nil {
		return math.NaN()
	}
	i := q.indexOf(day)
	if i < 0 {
		return math.NaN()
	}
	col, ok := q.Columns[ColumnKey{Ticker: ticker, Field: field}]
	if !ok || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Tickers returns the distinct tickers present in the table, sorted.
func (q *QuoteTable) Tickers() []string {
	if q == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for k := range q.Columns {
		seen[k.Ticker] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for t := range seen {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the table has no observations at all.
func (q *QuoteTable) Empty() bool {
	return q == nil || len(q.Index) == 0 || len(q.Columns) == 0
}

// Merge copies every non-NaN observation of other into q.
func (q *QuoteTable) Merge(other *QuoteTable) {
	if other == nil {
		return
	}
	for key, col := range other.Columns {
		for i, v := range col {
			if i < len(other.Index) && !math.IsNaN(v) {
				q.Put(key.Ticker, other.Index[i], key.Field, v)
			}
		}
	}
}

func (q *QuoteTable) indexOf(day TradingDay) int {
	i := sort.Search(len(q.Index), func(i int) bool { return !q.Index[i].Before(day) })
	if i < len(q.Index) && q.Index[i] == day {
		return i
	}
	return -1
}

// insertDay keeps Index sorted and pads every column with NaN at the new position.
func (q *QuoteTable) insertDay(day TradingDay) int {
	i := sort.Search(len(q.Index), func(i int) bool { return !q.Index[i].Before(day) })
	q.Index = append(q.Index, TradingDay{})
	copy(q.Index[i+1:], q.Index[i:])
	q.Index[i] = day
	for k, col := range q.Columns {
		col = append(col, 0)
		copy(col[i+1:], col[i:])
		col[i] = math.NaN()
		q.Columns[k] = col
	}
	return i
}

func nanColumn(n int) []float64 {
	col := make([]float64, n)
	for i := range col {
		col[i] = math.NaN()
	}
	return col
}
