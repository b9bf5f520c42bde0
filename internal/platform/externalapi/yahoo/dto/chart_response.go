// Package dto defines data transfer objects for the Yahoo Finance chart API.
package dto

// ChartResponse represents the JSON response of /v8/finance/chart/{symbol}.
// Null observations decode to nil pointers.
type ChartResponse struct {
	Chart struct {
		Result []ChartResult `json:"result"`
		Error  *ChartError   `json:"error"`
	} `json:"chart"`
}

// ChartResult is one symbol's series.
type ChartResult struct {
	Meta struct {
		Symbol       string `json:"symbol"`
		GMTOffset    int    `json:"gmtoffset"`
		ExchangeName string `json:"exchangeName"`
		Timezone     string `json:"exchangeTimezoneName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

// ChartError is the error envelope returned for unknown or delisted symbols.
type ChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}
