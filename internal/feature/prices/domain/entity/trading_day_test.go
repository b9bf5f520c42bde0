package entity

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradingDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    TradingDay
		wantErr bool
	}{
		{name: "valid", input: "2024-03-01", want: Date(2024, time.March, 1)},
		{name: "leap day", input: "2024-02-29", want: Date(2024, time.February, 29)},
		{name: "not a date", input: "2024-13-01", wantErr: true},
		{name: "wrong layout", input: "01/03/2024", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseTradingDay(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestTradingDay_AddDaysAndCompare(t *testing.T) {
	t.Parallel()

	d := Date(2024, time.December, 31)
	assert.Equal(t, Date(2025, time.January, 1), d.Next())
	assert.Equal(t, Date(2024, time.December, 21), d.AddDays(-10))
	assert.True(t, d.Before(d.Next()))
	assert.True(t, d.Next().After(d))
	assert.Equal(t, 0, d.Compare(Date(2024, time.December, 31)))
	assert.False(t, d.IsZero())
	assert.True(t, TradingDay{}.IsZero())
}

func TestNewTradingDay_UsesLocationOfTime(t *testing.T) {
	t.Parallel()

	hk := time.FixedZone("HKT", 8*3600)
	// 2024-03-01 01:00 in Hong Kong is still 2024-02-29 in UTC.
	ts := time.Date(2024, time.March, 1, 1, 0, 0, 0, hk)
	assert.Equal(t, Date(2024, time.March, 1), NewTradingDay(ts))
	assert.Equal(t, Date(2024, time.February, 29), NewTradingDay(ts.UTC()))
}

func TestDaysBetween(t *testing.T) {
	t.Parallel()

	start := Date(2024, time.February, 27)
	end := Date(2024, time.March, 2)
	days := DaysBetween(start, end)
	require.Len(t, days, 5)
	assert.Equal(t, start, days[0])
	assert.Equal(t, end, days[4])

	assert.Nil(t, DaysBetween(end, start))
	assert.Len(t, DaysBetween(start, start), 1)
}

func TestTradingDay_JSON(t *testing.T) {
	t.Parallel()

	type wrapper struct {
		Day TradingDay `json:"day"`
	}
	b, err := json.Marshal(wrapper{Day: Date(2024, time.January, 5)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-01-05"}`, string(b))

	var w wrapper
	require.NoError(t, json.Unmarshal(b, &w))
	assert.Equal(t, Date(2024, time.January, 5), w.Day)
}
