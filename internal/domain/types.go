// Package domain defines the core value types shared across the
// synchronization engine: daily bars, record kinds, and per-ticker sync
// outcomes.
package domain

import "time"

// RecordKind identifies one of the three persisted dataset kinds.
type RecordKind string

const (
	KindBars      RecordKind = "bars"
	KindSplits    RecordKind = "splits"
	KindDividends RecordKind = "dividends"
)

// Bar is one daily OHLCV row as reported by the provider, non-adjusted.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// SyncStatus is the terminal status of one ticker synchronization.
type SyncStatus int

const (
	StatusDownloaded SyncStatus = iota
	StatusUpdated
	StatusUpToDate
	StatusNoNewData
	StatusFailed
)

// String returns the status identifier used in logs and summaries.
func (s SyncStatus) String() string {
	switch s {
	case StatusDownloaded:
		return "downloaded"
	case StatusUpdated:
		return "updated"
	case StatusUpToDate:
		return "up_to_date"
	case StatusNoNewData:
		return "no_new_data"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Outcome is the result of synchronizing one ticker. It is produced by the
// synchronizer and consumed by the batch orchestrator and the audit log; it
// is not persisted beyond the run.
type Outcome struct {
	Symbol  string
	Status  SyncStatus
	NewRows int    // rows appended, set for StatusUpdated and StatusDownloaded
	Detail  string // human-readable reason, set for StatusFailed
}

// Summary aggregates the outcomes of one batch run.
type Summary struct {
	Downloaded    int
	Updated       int
	UpToDate      int
	NoNewData     int
	FailedSymbols []string
	Outcomes      []Outcome
}

// Add records one outcome into the aggregate counts.
func (s *Summary) Add(o Outcome) {
	s.Outcomes = append(s.Outcomes, o)
	switch o.Status {
	case StatusDownloaded:
		s.Downloaded++
	case StatusUpdated:
		s.Updated++
	case StatusUpToDate:
		s.UpToDate++
	case StatusNoNewData:
		s.NoNewData++
	case StatusFailed:
		s.FailedSymbols = append(s.FailedSymbols, o.Symbol)
	}
}

// Failed returns the number of failed tickers.
func (s *Summary) Failed() int { return len(s.FailedSymbols) }

// Total returns the number of outcomes recorded.
func (s *Summary) Total() int { return len(s.Outcomes) }
