// Package journal records what the trader saw: the daily JSON report and
// operator override file, and an optional SQLite history of account
// snapshots keyed by run.
package journal

import "time"

// EquitySnapshot is the account once per bar.
type EquitySnapshot struct {
	RunID  string
	Time   time.Time
	Equity float64
	Margin float64
	// Profit is equity minus the first equity seen in the run.
	Profit float64
}

// PositionSnapshot is one open position once per bar.
type PositionSnapshot struct {
	RunID        string
	Time         time.Time
	Symbol       string
	Direction    string
	Quantity     int
	EntryPrice   float64
	CurrentPrice float64
	Profit       float64
}

type Journal interface {
	RecordEquity(EquitySnapshot) error
	RecordPositions([]PositionSnapshot) error
	Close() error
}

// Nop discards everything. It is used when no database is configured.
type Nop struct{}

func (Nop) RecordEquity(EquitySnapshot) error        { return nil }
func (Nop) RecordPositions([]PositionSnapshot) error { return nil }
func (Nop) Close() error                             { return nil }
