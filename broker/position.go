package broker

import (
	"math"
	"slices"
	"strings"
)

// Net collapses positions to one per symbol. Opposing positions offset each
// other; the surviving entry price is the quantity-weighted average of the
// side that remains. Flat symbols are dropped. Output is sorted by symbol.
func Net(positions []Position) []Position {
	type acc struct {
		signed   int
		long     int
		longVal  float64
		short    int
		shortVal float64
	}
	by := map[string]*acc{}
	for _, p := range positions {
		a, ok := by[p.Symbol]
		if !ok {
			a = &acc{}
			by[p.Symbol] = a
		}
		a.signed += p.Direction.Sign() * p.Quantity
		if p.Direction == Buy {
			a.long += p.Quantity
			a.longVal += float64(p.Quantity) * p.Price
		} else {
			a.short += p.Quantity
			a.shortVal += float64(p.Quantity) * p.Price
		}
	}

	out := make([]Position, 0, len(by))
	for sym, a := range by {
		switch {
		case a.signed > 0:
			out = append(out, Position{Symbol: sym, Direction: Buy, Quantity: a.signed, Price: avg(a.longVal, a.long)})
		case a.signed < 0:
			out = append(out, Position{Symbol: sym, Direction: Sell, Quantity: -a.signed, Price: avg(a.shortVal, a.short)})
		}
	}
	slices.SortFunc(out, func(a, b Position) int { return strings.Compare(a.Symbol, b.Symbol) })
	return out
}

func avg(val float64, qty int) float64 {
	if qty == 0 {
		return 0
	}
	return math.Round(val/float64(qty)*1e5) / 1e5
}
