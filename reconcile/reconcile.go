// Package reconcile computes the trades that move live broker positions to
// the positions the signals ask for. Nothing here does I/O.
package reconcile

import (
	"slices"
	"strings"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/risk"
	"github.com/rustyeddy/fxtrader/strategy"
)

// Sizer returns a symbol's sizing multiplier. *risk.Multipliers is one.
type Sizer interface {
	Get(symbol string) float64
}

// Decide returns the single trade for one symbol given its signal, its live
// position (nil when flat) and its base quantity. Only the sign of the
// signal matters.
func Decide(symbol string, sig strategy.Signal, live *broker.Position, base int) (broker.TradeIntent, bool) {
	sig = sig.Sign()
	if live == nil {
		if sig == strategy.Flat || base == 0 {
			return broker.TradeIntent{}, false
		}
		dir := broker.Buy
		if sig == strategy.Sell {
			dir = broker.Sell
		}
		return broker.TradeIntent{Symbol: symbol, Direction: dir, Quantity: base, FinalQuantity: base}, true
	}

	held := live.Direction
	switch {
	case sig == strategy.Flat:
		return closing(*live), true
	case signalDirection(sig) == held:
		if live.Quantity < base {
			return broker.TradeIntent{Symbol: symbol, Direction: held, Quantity: base - live.Quantity, FinalQuantity: base}, true
		}
		return broker.TradeIntent{}, false
	default:
		return broker.TradeIntent{Symbol: symbol, Direction: held.Opposite(), Quantity: base + live.Quantity, FinalQuantity: base}, true
	}
}

func signalDirection(sig strategy.Signal) broker.Direction {
	if sig == strategy.Buy {
		return broker.Buy
	}
	return broker.Sell
}

func closing(p broker.Position) broker.TradeIntent {
	return broker.TradeIntent{Symbol: p.Symbol, Direction: p.Direction.Opposite(), Quantity: p.Quantity, FinalQuantity: 0}
}

// Reconcile returns at most one intent per symbol, sorted by symbol.
// Positions in symbols without a signal are left alone. In exit-only mode
// every open position is flattened and nothing new is opened.
func Reconcile(signals map[string]strategy.Signal, positions []broker.Position, sizes Sizer, orderSize int, exitOnly bool) []broker.TradeIntent {
	if exitOnly {
		return Flatten(positions)
	}

	open := broker.Net(positions)
	held := make(map[string]*broker.Position, len(open))
	for i := range open {
		held[open[i].Symbol] = &open[i]
	}

	var out []broker.TradeIntent
	for sym, sig := range signals {
		base := risk.BaseQuantity(sizes.Get(sym), orderSize)
		if ti, ok := Decide(sym, sig, held[sym], base); ok {
			out = append(out, ti)
		}
	}
	sortIntents(out)
	return out
}

// Flatten closes every open position.
func Flatten(positions []broker.Position) []broker.TradeIntent {
	open := broker.Net(positions)
	out := make([]broker.TradeIntent, 0, len(open))
	for _, p := range open {
		out = append(out, closing(p))
	}
	return out
}

func sortIntents(ti []broker.TradeIntent) {
	slices.SortFunc(ti, func(a, b broker.TradeIntent) int { return strings.Compare(a.Symbol, b.Symbol) })
}
