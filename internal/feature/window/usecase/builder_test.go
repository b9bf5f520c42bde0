package usecase

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
	"stock_pipeline/internal/feature/window/domain"
	"stock_pipeline/internal/feature/window/domain/entity"
)

// memoryReader は PartitionReader のインメモリ実装です。
type memoryReader struct {
	parts        map[priceentity.TradingDay]priceentity.Partition
	daysErr      error
	readErr      error
	readCalls    atomic.Int32
	lastReadSpan [2]priceentity.TradingDay
}

func (m *memoryReader) Days(_ context.Context) ([]priceentity.TradingDay, error) {
	if m.daysErr != nil {
		return nil, m.daysErr
	}
	days := make([]priceentity.TradingDay, 0, len(m.parts))
	for d := range m.parts {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days, nil
}

func (m *memoryReader) ReadRange(ctx context.Context, start, end priceentity.TradingDay) ([]priceentity.Partition, error) {
	m.readCalls.Add(1)
	m.lastReadSpan = [2]priceentity.TradingDay{start, end}
	if m.readErr != nil {
		return nil, m.readErr
	}
	days, _ := m.Days(ctx)
	var out []priceentity.Partition
	for _, d := range days {
		if !d.Before(start) && !d.After(end) {
			out = append(out, m.parts[d])
		}
	}
	return out, nil
}

func (m *memoryReader) drop(day priceentity.TradingDay) { delete(m.parts, day) }

func (m *memoryReader) dropTicker(day priceentity.TradingDay, ticker string) {
	p := m.parts[day]
	rows := p.Rows[:0:0]
	for _, r := range p.Rows {
		if r.Ticker != ticker {
			rows = append(rows, r)
		}
	}
	p.Rows = rows
	m.parts[day] = p
}

func march(d int) priceentity.TradingDay { return priceentity.Date(2024, time.March, d) }

// newMarchReader stores every calendar day from 2024-03-01 to 2024-03-12.
// Weekends are empty partitions, so the trading days are
// 1, 4, 5, 6, 7, 8, 11 and 12. AAPL closes at 100+i and MSFT at 200+2i
// on the i-th trading day.
func newMarchReader() *memoryReader {
	m := &memoryReader{parts: make(map[priceentity.TradingDay]priceentity.Partition)}
	i := 0
	for d := march(1); !d.After(march(12)); d = d.Next() {
		wd := d.Time().Weekday()
		if wd == time.Saturday || wd == time.Sunday {
			m.parts[d] = priceentity.Partition{Day: d}
			continue
		}
		aapl := 100 + float64(i)
		msft := 200 + 2*float64(i)
		m.parts[d] = priceentity.Partition{Day: d, Rows: []priceentity.OHLCVRow{
			{Ticker: "AAPL", Day: d, Open: aapl - 1, High: aapl + 1, Low: aapl - 2, Close: aapl, Volume: int64(1000 + i)},
			{Ticker: "MSFT", Day: d, Open: msft - 1, High: msft + 1, Low: msft - 2, Close: msft, Volume: int64(2000 + i)},
		}}
		i++
	}
	return m
}

func TestBuilder_BuildTable(t *testing.T) {
	t.Parallel()

	reader := newMarchReader()
	b := NewBuilder(reader, entity.MustLayout(2, 1), 4)

	rows, summary, err := b.BuildTable(context.Background(), nil, march(1), march(12), true)
	require.NoError(t, err)

	// anchors 5..11 have two prior trading days and one following
	assert.Equal(t, 10, summary.Rows)
	assert.Len(t, rows, 10)
	assert.Equal(t, 6, summary.Skipped)
	assert.Equal(t, 4, summary.SkippedByReason[domain.ReasonShortHistory])
	assert.Equal(t, 2, summary.SkippedByReason[domain.ReasonShortFuture])

	assert.Equal(t, march(5), rows[0].Anchor)
	assert.Equal(t, "AAPL", rows[0].Ticker)
	assert.Equal(t, march(5), rows[1].Anchor)
	assert.Equal(t, "MSFT", rows[1].Ticker)
	assert.Equal(t, march(11), rows[9].Anchor)
	for i := 1; i < len(rows); i++ {
		assert.False(t, rows[i].Anchor.Before(rows[i-1].Anchor), "rows must be ordered by anchor")
	}

	for _, r := range rows {
		assert.Len(t, r.Features, b.Layout().NumFeatures())
		assert.Len(t, r.Labels, b.Layout().NumLabels())
	}

	// anchor 2024-03-05 spans the weekend: closes 100, 101, 102 then 103
	first := rows[0]
	assert.InDelta(t, 0.01, first.Features[mustIndex(t, b.Layout(), "increaseRatio_p1")], 1e-12)
	assert.InDelta(t, 1.0/101.0, first.Features[mustIndex(t, b.Layout(), "increaseRatio_p2")], 1e-12)
	assert.InDelta(t, 1.0/102.0, first.Labels[0], 1e-12)
	assert.InDelta(t, 1.0/102.0, first.Labels[1], 1e-12)
	assert.Equal(t, float64(1002), first.Features[mustIndex(t, b.Layout(), "Volume_p2")])

	// one read for the whole table
	assert.Equal(t, int32(1), reader.readCalls.Load())
}

func mustIndex(t *testing.T, layout entity.Layout, name string) int {
	t.Helper()
	i, ok := layout.ColumnIndex(name)
	require.True(t, ok)
	return i
}

func TestBuilder_BuildTable_WithoutLabels(t *testing.T) {
	t.Parallel()

	b := NewBuilder(newMarchReader(), entity.MustLayout(2, 5), 1)

	rows, summary, err := b.BuildTable(context.Background(), []string{"AAPL"}, march(1), march(12), false)
	require.NoError(t, err)

	// post_days does not restrict anchors when labels are off
	assert.Len(t, rows, 6)
	assert.Equal(t, 2, summary.Skipped)
	for _, r := range rows {
		assert.Nil(t, r.Labels)
		assert.Equal(t, "AAPL", r.Ticker)
	}
}

func TestBuilder_BuildTable_TickerMissing(t *testing.T) {
	t.Parallel()

	reader := newMarchReader()
	reader.dropTicker(march(6), "MSFT")
	b := NewBuilder(reader, entity.MustLayout(2, 1), 2)

	rows, summary, err := b.BuildTable(context.Background(), nil, march(1), march(12), true)
	require.NoError(t, err)

	var msft []priceentity.TradingDay
	for _, r := range rows {
		if r.Ticker == "MSFT" {
			msft = append(msft, r.Anchor)
		}
	}
	// every window or label horizon that touches 2024-03-06 is skipped
	assert.Equal(t, []priceentity.TradingDay{march(11)}, msft)
	assert.Equal(t, 4, summary.SkippedByReason[domain.ReasonTickerMissing])
	assert.Equal(t, 6, summary.Rows)
}

func TestBuilder_BuildTable_CalendarGap(t *testing.T) {
	t.Parallel()

	reader := newMarchReader()
	reader.drop(march(3))
	b := NewBuilder(reader, entity.MustLayout(2, 0), 1)

	rows, summary, err := b.BuildTable(context.Background(), []string{"AAPL"}, march(1), march(12), false)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SkippedByReason[domain.ReasonPartitionMissing])
	assert.Equal(t, 2, summary.SkippedByReason[domain.ReasonShortHistory])
	require.Len(t, rows, 5)
	assert.Equal(t, march(6), rows[0].Anchor)
}

func TestBuilder_BuildTable_UnknownTicker(t *testing.T) {
	t.Parallel()

	b := NewBuilder(newMarchReader(), entity.MustLayout(1, 0), 1)

	rows, summary, err := b.BuildTable(context.Background(), []string{"ZZZZ"}, march(4), march(8), false)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 5, summary.SkippedByReason[domain.ReasonTickerMissing])
}

func TestBuilder_BuildTable_Errors(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		reader  *memoryReader
		start   priceentity.TradingDay
		end     priceentity.TradingDay
		wantErr error
	}{
		{
			name:    "days error",
			reader:  &memoryReader{daysErr: errBoom},
			start:   march(1),
			end:     march(2),
			wantErr: errBoom,
		},
		{
			name:    "read error",
			reader:  func() *memoryReader { m := newMarchReader(); m.readErr = errBoom; return m }(),
			start:   march(1),
			end:     march(12),
			wantErr: errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBuilder(tt.reader, entity.MustLayout(1, 0), 1)
			_, _, err := b.BuildTable(context.Background(), nil, tt.start, tt.end, false)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	t.Run("inverted range", func(t *testing.T) {
		t.Parallel()
		b := NewBuilder(newMarchReader(), entity.MustLayout(1, 0), 1)
		_, _, err := b.BuildTable(context.Background(), nil, march(5), march(4), false)
		assert.Error(t, err)
	})
}

func TestBuilder_BuildTable_EmptyStore(t *testing.T) {
	t.Parallel()

	b := NewBuilder(&memoryReader{parts: map[priceentity.TradingDay]priceentity.Partition{}}, entity.MustLayout(1, 0), 1)
	rows, summary, err := b.BuildTable(context.Background(), nil, march(1), march(12), false)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, summary.Rows)
}

func TestBuilder_BuildTable_Canceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := NewBuilder(newMarchReader(), entity.MustLayout(1, 0), 1)
	_, _, err := b.BuildTable(ctx, nil, march(1), march(12), false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuilder_BuildWindow(t *testing.T) {
	t.Parallel()

	reader := newMarchReader()
	b := NewBuilder(reader, entity.MustLayout(2, 1), 1)

	got, err := b.BuildWindow(context.Background(), "AAPL", march(5), true)
	require.NoError(t, err)

	// the first read stops at the weekend and is widened once
	assert.Equal(t, int32(2), reader.readCalls.Load())
	assert.Equal(t, march(1), reader.lastReadSpan[0])

	table, _, err := NewBuilder(newMarchReader(), entity.MustLayout(2, 1), 1).BuildTable(context.Background(), []string{"AAPL"}, march(5), march(5), true)
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.Equal(t, table[0], got)
}

func TestBuilder_BuildWindow_Insufficient(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		ticker     string
		anchor     priceentity.TradingDay
		withLabels bool
		want       domain.Reason
	}{
		{name: "weekend anchor", ticker: "AAPL", anchor: march(9), want: domain.ReasonAnchorNotTradingDay},
		{name: "anchor outside store", ticker: "AAPL", anchor: march(20), want: domain.ReasonAnchorNotTradingDay},
		{name: "first trading day", ticker: "AAPL", anchor: march(4), want: domain.ReasonShortHistory},
		{name: "last trading day with labels", ticker: "AAPL", anchor: march(12), withLabels: true, want: domain.ReasonShortFuture},
		{name: "unknown ticker", ticker: "ZZZZ", anchor: march(7), want: domain.ReasonTickerMissing},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			b := NewBuilder(newMarchReader(), entity.MustLayout(2, 1), 1)

			_, err := b.BuildWindow(context.Background(), tt.ticker, tt.anchor, tt.withLabels)
			require.ErrorIs(t, err, domain.ErrInsufficientWindow)

			var iw *domain.InsufficientWindowError
			require.ErrorAs(t, err, &iw)
			assert.Equal(t, tt.want, iw.Reason)
			assert.Equal(t, tt.anchor, iw.Anchor)
		})
	}
}

func TestBuilder_BuildWindow_LastDayWithoutLabels(t *testing.T) {
	t.Parallel()

	b := NewBuilder(newMarchReader(), entity.MustLayout(2, 1), 1)
	got, err := b.BuildWindow(context.Background(), "MSFT", march(12), false)
	require.NoError(t, err)
	assert.Nil(t, got.Labels)
	assert.Equal(t, "MSFT", got.Ticker)
}
