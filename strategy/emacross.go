package strategy

import (
	"context"
	"fmt"

	"github.com/rustyeddy/fxtrader/market"
)

// EMA is an exponential moving average over closes, seeded with the first
// value it sees.
type EMA struct {
	n     int
	alpha float64
	seen  int
	value float64
}

func NewEMA(period int) *EMA {
	if period <= 0 {
		panic("EMA period must be > 0")
	}
	return &EMA{n: period, alpha: 2.0 / float64(period+1)}
}

func (e *EMA) Update(x float64) {
	e.seen++
	if e.seen == 1 {
		e.value = x
		return
	}
	e.value = e.alpha*x + (1.0-e.alpha)*e.value
}

func (e *EMA) Ready() bool    { return e.seen >= e.n }
func (e *EMA) Value() float64 { return e.value }

// EMACross is long while the fast EMA of the window is above the slow one
// and short while below. It stays flat until the window covers the slow
// period.
type EMACross struct {
	Fast int
	Slow int
}

func NewEMACross(fast, slow int) *EMACross {
	return &EMACross{Fast: fast, Slow: slow}
}

func (s *EMACross) Signal(ctx context.Context, symbol string, h *market.History) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Flat, err
	}
	if s.Fast <= 0 || s.Slow <= s.Fast {
		return Flat, fmt.Errorf("ema-cross %s: need 0 < fast < slow, got %d/%d", symbol, s.Fast, s.Slow)
	}
	if h == nil || h.Len() < s.Slow {
		return Flat, nil
	}

	fast, slow := NewEMA(s.Fast), NewEMA(s.Slow)
	for _, c := range h.Close {
		fast.Update(c)
		slow.Update(c)
	}
	switch {
	case fast.Value() > slow.Value():
		return Buy, nil
	case fast.Value() < slow.Value():
		return Sell, nil
	default:
		return Flat, nil
	}
}
