// Package entity defines the domain models for the prices feature.
package entity

import (
	"fmt"
	"time"
)

// DateLayout is the textual form of a TradingDay, also used in partition keys.
const DateLayout = "2006-01-02"

// TradingDay is a calendar date without a time component.
// The zero value is not a valid day; use IsZero to detect it.
type TradingDay struct {
	year  int
	month time.Month
	day   int
}

// NewTradingDay returns the calendar date of t in t's own location.
func NewTradingDay(t time.Time) TradingDay {
	y, m, d := t.Date()
	return TradingDay{year: y, month: m, day: d}
}

// Date builds a TradingDay, normalising out-of-range values the way time.Date does.
func Date(year int, month time.Month, day int) TradingDay {
	return NewTradingDay(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// ParseTradingDay parses a YYYY-MM-DD string.
func ParseTradingDay(s string) (TradingDay, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return TradingDay{}, fmt.Errorf("parse trading day %q: %w", s, err)
	}
	return NewTradingDay(t), nil
}

// Time returns midnight UTC of the day.
func (d TradingDay) Time() time.Time {
	return time.Date(d.year, d.month, d.day, 0, 0, 0, 0, time.UTC)
}

// AddDays returns the day n calendar days later (n may be negative).
func (d TradingDay) AddDays(n int) TradingDay {
	return NewTradingDay(d.Time().AddDate(0, 0, n))
}

// Next returns the following calendar day.
func (d TradingDay) Next() TradingDay { return d.AddDays(1) }

// Compare returns -1, 0 or +1.
func (d TradingDay) Compare(o TradingDay) int {
	return d.Time().Compare(o.Time())
}

func (d TradingDay) Before(o TradingDay) bool { return d.Compare(o) < 0 }
func (d TradingDay) After(o TradingDay) bool  { return d.Compare(o) > 0 }

// IsZero reports whether d is the zero TradingDay.
func (d TradingDay) IsZero() bool { return d == TradingDay{} }

func (d TradingDay) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

// MarshalText implements encoding.TextMarshaler so days serialise as YYYY-MM-DD.
func (d TradingDay) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *TradingDay) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = TradingDay{}
		return nil
	}
	p, err := ParseTradingDay(string(b))
	if err != nil {
		return err
	}
	*d = p
	return nil
}

// DaysBetween returns every calendar day in [start, end] ascending.
// It returns nil when start is after end.
func DaysBetween(start, end TradingDay) []TradingDay {
	if start.After(end) {
		return nil
	}
	var out []TradingDay
	for d := start; !d.After(end); d = d.Next() {
		out = append(out, d)
	}
	return out
}
