package sim

import (
	"time"

	"github.com/rustyeddy/fxtrader/market"
)

// Forever makes an injected fault permanent.
const Forever = -1

type faults struct {
	reject  map[string]int
	pending map[string]int
	redCard map[string]int
	ignore  map[string]int
	drop    map[string]int

	short map[string]int
	lag   map[string]time.Duration
	bars  map[string][]market.Bar

	ohlc      []error
	positions []error
}

func newFaults() faults {
	return faults{
		reject:  map[string]int{},
		pending: map[string]int{},
		redCard: map[string]int{},
		ignore:  map[string]int{},
		drop:    map[string]int{},
		short:   map[string]int{},
		lag:     map[string]time.Duration{},
		bars:    map[string][]market.Bar{},
	}
}

// take consumes one occurrence of a counted fault.
func (f *faults) take(m map[string]int, symbol string) bool {
	n, ok := m[symbol]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		m[symbol] = n - 1
	}
	return true
}

func (f *faults) ohlcErr() error {
	if len(f.ohlc) == 0 {
		return nil
	}
	err := f.ohlc[0]
	f.ohlc = f.ohlc[1:]
	return err
}

func (f *faults) positionsErr() error {
	if len(f.positions) == 0 {
		return nil
	}
	err := f.positions[0]
	f.positions = f.positions[1:]
	return err
}

// Reject makes the next n orders for symbol fail at submission.
func (e *Engine) Reject(symbol string, n int) { e.setCount(e.faults.reject, symbol, n) }

// LeavePending makes the next n orders for symbol sit pending until
// cancelled.
func (e *Engine) LeavePending(symbol string, n int) { e.setCount(e.faults.pending, symbol, n) }

// RedCard makes the next n orders for symbol stick in a failed status.
func (e *Engine) RedCard(symbol string, n int) { e.setCount(e.faults.redCard, symbol, n) }

// Ignore makes the next n orders for symbol succeed without changing the
// position.
func (e *Engine) Ignore(symbol string, n int) { e.setCount(e.faults.ignore, symbol, n) }

// Drop leaves symbol out of the next n OHLC responses.
func (e *Engine) Drop(symbol string, n int) { e.setCount(e.faults.drop, symbol, n) }

func (e *Engine) setCount(m map[string]int, symbol string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m[symbol] = n
}

// Short caps the number of bars returned for symbol.
func (e *Engine) Short(symbol string, n int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults.short[symbol] = n
}

// Lag delays symbol's bars by d, making them stale.
func (e *Engine) Lag(symbol string, d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d == 0 {
		delete(e.faults.lag, symbol)
		return
	}
	e.faults.lag[symbol] = d
}

// SetBars pins the bars returned for symbol. Nil unpins.
func (e *Engine) SetBars(symbol string, bars []market.Bar) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if bars == nil {
		delete(e.faults.bars, symbol)
		return
	}
	e.faults.bars[symbol] = bars
}

// FailOHLC queues errors returned by the next OHLC calls.
func (e *Engine) FailOHLC(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults.ohlc = append(e.faults.ohlc, errs...)
}

// FailPositions queues errors returned by the next OpenPositions calls.
func (e *Engine) FailPositions(errs ...error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults.positions = append(e.faults.positions, errs...)
}
