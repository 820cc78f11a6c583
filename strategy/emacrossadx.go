package strategy

import (
	"context"
	"fmt"

	"github.com/rustyeddy/fxtrader/market"
)

// EMACrossADX follows the EMA cross only while the trend is strong: ADX at
// or above Threshold and, with RequireDI, the directional indexes agreeing
// with the cross. Otherwise it asks for flat.
type EMACrossADX struct {
	Fast      int
	Slow      int
	Period    int
	Threshold float64
	RequireDI bool
}

func NewEMACrossADX(fast, slow, period int, threshold float64) *EMACrossADX {
	return &EMACrossADX{Fast: fast, Slow: slow, Period: period, Threshold: threshold, RequireDI: true}
}

func (s *EMACrossADX) Signal(ctx context.Context, symbol string, h *market.History) (Signal, error) {
	sig, err := (&EMACross{Fast: s.Fast, Slow: s.Slow}).Signal(ctx, symbol, h)
	if err != nil || sig == Flat {
		return Flat, err
	}
	if s.Period <= 0 {
		return Flat, fmt.Errorf("ema-cross-adx %s: ADX period must be positive, got %d", symbol, s.Period)
	}

	adx := NewADX(s.Period)
	for i := range h.Len() {
		adx.Update(h.High[i], h.Low[i], h.Close[i])
	}
	if !adx.Ready() || adx.Value() < s.Threshold {
		return Flat, nil
	}
	if s.RequireDI {
		if sig == Buy && adx.PlusDI() <= adx.MinusDI() {
			return Flat, nil
		}
		if sig == Sell && adx.MinusDI() <= adx.PlusDI() {
			return Flat, nil
		}
	}
	return sig, nil
}
