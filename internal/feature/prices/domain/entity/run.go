package entity

import "time"

// Outcome is the result of ingesting one calendar day.
type Outcome string

const (
	OutcomeWritten Outcome = "written" // rows fetched and persisted
	OutcomeEmpty   Outcome = "empty"   // no trading; empty partition persisted
	OutcomeSkipped Outcome = "skipped" // partition already present
	OutcomeFailed  Outcome = "failed"  // fetch or write failed; retryable
)

// Run identifies one invocation of the ingestion driver.
type Run struct {
	ID        string
	Market    string
	Start     TradingDay
	End       TradingDay
	Tickers   int
	StartedAt time.Time
}

// DayResult is the per-day record emitted while a run progresses.
type DayResult struct {
	Day     TradingDay
	Outcome Outcome
	Rows    int
	Err     error
}

// Summary aggregates the outcome of a run.
type Summary struct {
	RunID      string
	Market     string
	Start      TradingDay
	End        TradingDay
	Written    []TradingDay
	Empty      []TradingDay
	Skipped    []TradingDay
	Failed     map[TradingDay]error
	StartedAt  time.Time
	FinishedAt time.Time
	Canceled   bool
}

// Complete reports whether every processed day ended in a persisted partition.
func (s Summary) Complete() bool { return len(s.Failed) == 0 && !s.Canceled }

// Processed returns the number of days the run reached.
func (s Summary) Processed() int {
	return len(s.Written) + len(s.Empty) + len(s.Skipped) + len(s.Failed)
}

// Add folds a day result into the summary.
func (s *Summary) Add(r DayResult) {
	switch r.Outcome {
	case OutcomeWritten:
		s.Written = append(s.Written, r.Day)
	case OutcomeEmpty:
		s.Empty = append(s.Empty, r.Day)
	case OutcomeSkipped:
		s.Skipped = append(s.Skipped, r.Day)
	case OutcomeFailed:
		if s.Failed == nil {
			s.Failed = make(map[TradingDay]error)
		}
		s.Failed[r.Day] = r.Err
	}
}

// RunRecord is a finished or in-progress run as persisted by the run ledger.
type RunRecord struct {
	ID         string
	Market     string
	Start      TradingDay
	End        TradingDay
	Tickers    int
	StartedAt  time.Time
	FinishedAt *time.Time
	Written    int
	Empty      int
	Skipped    int
	Failed     int
	Canceled   bool
}

// FailedDay is a day whose most recent ingestion attempt failed.
type FailedDay struct {
	Day      TradingDay
	RunID    string
	Error    string
	FailedAt time.Time
}
