// Package domain defines domain-level errors for the window feature.
package domain

import (
	"errors"
	"fmt"

	priceentity "stock_pipeline/internal/feature/prices/domain/entity"
)

var (
	// ErrInsufficientWindow is matched by every *InsufficientWindowError.
	// An anchor that cannot produce a full window is skipped, never default-filled.
	ErrInsufficientWindow = errors.New("insufficient window")

	// ErrInvalidLayout is returned when pre_days or post_days are out of range.
	ErrInvalidLayout = errors.New("invalid feature layout")

	// ErrBarCount is returned when a compute function receives the wrong number of bars.
	ErrBarCount = errors.New("unexpected number of bars")
)

// Reason explains why a window could not be built.
type Reason string

const (
	ReasonAnchorNotTradingDay Reason = "anchor is not a trading day"
	ReasonShortHistory        Reason = "not enough trading days before anchor"
	ReasonShortFuture         Reason = "not enough trading days after anchor"
	ReasonTickerMissing       Reason = "ticker missing on a required day"
	ReasonPartitionMissing    Reason = "calendar day missing from store"
)

// InsufficientWindowError reports a (ticker, anchor) pair that was skipped.
type InsufficientWindowError struct {
	Ticker string
	Anchor priceentity.TradingDay
	Reason Reason
	Day    priceentity.TradingDay // offending day for ReasonTickerMissing and ReasonPartitionMissing
}

func (e *InsufficientWindowError) Error() string {
	if !e.Day.IsZero() {
		return fmt.Sprintf("insufficient window for %s at %s: %s (%s)", e.Ticker, e.Anchor, e.Reason, e.Day)
	}
	return fmt.Sprintf("insufficient window for %s at %s: %s", e.Ticker, e.Anchor, e.Reason)
}

func (e *InsufficientWindowError) Is(target error) bool { return target == ErrInsufficientWindow }
