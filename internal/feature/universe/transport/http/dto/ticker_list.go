// Package dto defines data transfer objects for the universe HTTP API.
package dto

// TickerList is the resolved universe of one market.
type TickerList struct {
	Market  string   `json:"market"`
	Tickers []string `json:"tickers"`
}
