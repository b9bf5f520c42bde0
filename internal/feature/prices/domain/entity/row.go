package entity

// OHLCVRow is one ticker's daily price and volume record.
type OHLCVRow struct {
	Ticker string     // Ticker symbol (e.g., "0700.HK", "AAPL")
	Day    TradingDay // Trading day; also the partition key
	Open   float64    // Opening price
	High   float64    // Highest price of the day
	Low    float64    // Lowest price of the day
	Close  float64    // Closing price
	Volume int64      // Traded volume
}

// Valid reports whether the row satisfies the non-negativity invariants.
func (r OHLCVRow) Valid() bool {
	return r.Ticker != "" &&
		r.Open >= 0 && r.High >= 0 && r.Low >= 0 && r.Close >= 0 &&
		r.Volume >= 0
}

// Partition is the complete set of rows persisted for one day.
// An empty Rows slice is a legitimate partition (holiday, weekend).
type Partition struct {
	Day  TradingDay
	Rows []OHLCVRow
}

// Empty reports whether the partition holds no rows, i.e. the day had no trading.
func (p Partition) Empty() bool { return len(p.Rows) == 0 }

// Row returns the row for ticker, if present.
func (p Partition) Row(ticker string) (OHLCVRow, bool) {
	for _, r := range p.Rows {
		if r.Ticker == ticker {
			return r, true
		}
	}
	return OHLCVRow{}, false
}
