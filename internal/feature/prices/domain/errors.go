// Package domain defines domain-level errors for the prices feature.
package domain

import (
	"errors"
	"fmt"

	"stock_pipeline/internal/feature/prices/domain/entity"
)

var (
	// ErrNoDataAvailable indicates that the provider returned no rows for any requested
	// ticker on the day (weekend, exchange holiday). It is not a failure: the day is
	// persisted as an empty partition.
	ErrNoDataAvailable = errors.New("no data available for day")

	// ErrFetch is the sentinel matched by every *FetchError.
	ErrFetch = errors.New("fetch failed")

	// ErrPartitionExists is returned by Write when a complete partition is already present.
	ErrPartitionExists = errors.New("partition already exists")

	// ErrInvalidRow is returned when a row violates the OHLCVRow invariants.
	ErrInvalidRow = errors.New("invalid row")
)

// FetchError wraps a provider or network failure for a single day.
// The day stays retryable by a later run.
type FetchError struct {
	Day entity.TradingDay
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Day, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is reports ErrFetch so callers can test with errors.Is without knowing the cause.
func (e *FetchError) Is(target error) bool { return target == ErrFetch }

// ErrNoTickers is returned when an operation is asked to work on an empty ticker set.
var ErrNoTickers = errors.New("no tickers given")

// ErrInvalidRange is returned when a start day is after the end day.
var ErrInvalidRange = errors.New("start day is after end day")

// ErrRunNotFound is returned by the run ledger when no run matches the query.
var ErrRunNotFound = errors.New("ingest run not found")
