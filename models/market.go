package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus indicates whether the trading venue is currently open.
// It is always derived from the clock, never fetched from a provider.
type MarketStatus string

const (
	MarketOpen   MarketStatus = "Open"
	MarketClosed MarketStatus = "Closed"
)

// Index identifiers tracked by the sync engine. The set is fixed and known
// in advance; a snapshot missing any of these is rejected as malformed.
const (
	IndexNifty50 = "NIFTY50"
	IndexSensex  = "SENSEX"
)

// TrackedIndices returns the required index identifiers for a full snapshot.
func TrackedIndices() []string {
	return []string{IndexNifty50, IndexSensex}
}

// IndexQuote holds one index reading. ChangePercent is computed from the
// current value and the previous reference value at parse time, so the three
// fields stay mutually consistent.
type IndexQuote struct {
	Value         decimal.Decimal `json:"value"`
	Change        decimal.Decimal `json:"change"`
	ChangePercent decimal.Decimal `json:"change_percent"`
}

// NewIndexQuote derives change and change percent from a current value and
// the previous session's reference value.
func NewIndexQuote(value, previousClose decimal.Decimal) IndexQuote {
	change := value.Sub(previousClose)
	changePercent := decimal.Zero
	if !previousClose.IsZero() {
		changePercent = change.Div(previousClose).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return IndexQuote{
		Value:         value.Round(2),
		Change:        change.Round(2),
		ChangePercent: changePercent,
	}
}

// IsPositive reports whether the index moved up against the previous close.
func (q IndexQuote) IsPositive() bool {
	return q.Change.Sign() >= 0
}

// MarketSnapshot is one immutable, fully-resolved set of index quotes plus
// metadata. It is only constructed from a provider response in which every
// tracked index parsed cleanly.
type MarketSnapshot struct {
	Status    MarketStatus          `json:"status"`
	Indices   map[string]IndexQuote `json:"indices"`
	FetchedAt time.Time             `json:"fetched_at"`
	Source    string                `json:"source"`
}

// Complete reports whether the snapshot carries every tracked index.
func (s *MarketSnapshot) Complete() bool {
	for _, id := range TrackedIndices() {
		if _, ok := s.Indices[id]; !ok {
			return false
		}
	}
	return true
}

// RefreshState is the single view the presentation layer reads: the latest
// good snapshot, the latest fetch failure, and how stale the snapshot is.
type RefreshState struct {
	LastSnapshot *MarketSnapshot `json:"last_snapshot,omitempty"`
	LastError    string          `json:"last_error,omitempty"`
	AgeSeconds   int64           `json:"age_seconds"`
	IntervalMs   int64           `json:"interval_ms"`
}

// HasData reports whether at least one fetch cycle has ever succeeded.
// Before the first success the dashboard shows an explicit unavailable state
// instead of fabricated zeros. Value receiver: RefreshState is a small
// read-only view handed out by value.
func (r RefreshState) HasData() bool {
	return r.LastSnapshot != nil
}
