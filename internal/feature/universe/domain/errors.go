// Package domain defines domain-level errors for the universe feature.
package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrResolution is returned when a market's ticker universe cannot be produced.
	// Callers treat it as fatal for the run.
	ErrResolution = errors.New("universe resolution failed")

	// ErrUnknownMarket is returned for a market without a configured reference source.
	// It also matches ErrResolution.
	ErrUnknownMarket = fmt.Errorf("unknown market: %w", ErrResolution)
)
