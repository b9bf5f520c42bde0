// Package entity defines the domain models for the universe feature.
package entity

import "fmt"

// Market identifies a ticker universe, e.g. "hk" or "us".
type Market string

const (
	MarketHK Market = "hk" // Hang Seng index constituents
	MarketUS Market = "us" // S&P 500 constituents
)

// Kind describes how a market's reference list is obtained.
type Kind string

const (
	// KindRegionalIndex is a checked-in membership file of numeric exchange codes.
	KindRegionalIndex Kind = "regional-index"
	// KindBroadIndex is a public constituents page, cached locally after the first fetch.
	KindBroadIndex Kind = "broad-index"
	// KindDatabase is a members table maintained in the ledger database.
	KindDatabase Kind = "database"
)

// ParseKind validates a configured kind.
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindRegionalIndex, KindBroadIndex, KindDatabase:
		return k, nil
	default:
		return "", fmt.Errorf("unknown universe kind %q", s)
	}
}
