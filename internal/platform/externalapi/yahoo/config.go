// Package yahoo provides a market data provider backed by the Yahoo Finance chart API.
package yahoo

import "time"

// DefaultBaseURL is the public chart endpoint host.
const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Config holds configuration for the Yahoo Finance client.
type Config struct {
	BaseURL     string        // e.g. "https://query1.finance.yahoo.com"
	Timeout     time.Duration // HTTP request timeout
	Concurrency int           // parallel per-ticker requests; 1 means sequential
	UserAgent   string
}
