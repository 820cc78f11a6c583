package sim

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"github.com/rustyeddy/fxtrader/market"
	"github.com/rustyeddy/fxtrader/session"
)

var basePrices = map[string]float64{
	"EUR/USD": 1.10,
	"GBP/USD": 1.27,
	"AUD/USD": 0.66,
	"USD/CHF": 0.88,
	"USD/CAD": 1.36,
	"USD/JPY": 150.0,
	"EUR/JPY": 162.0,
}

const (
	amplitude = 0.002
	period    = 40 * time.Minute
)

// phase maps a symbol to [0,1) so symbols do not move in lockstep.
func phase(symbol string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(symbol))
	return float64(h.Sum32()%1_000_000) / 1e6
}

// priceAt is the deterministic mid price path.
func priceAt(symbol string, t time.Time) float64 {
	base, ok := basePrices[symbol]
	if !ok {
		base = 1.0
	}
	x := 2*math.Pi*float64(t.Unix())/period.Seconds() + 2*math.Pi*phase(symbol)
	in := market.Lookup(symbol)
	return roundTo(base*(1+amplitude*math.Sin(x)), -in.PipLocation+1)
}

func roundTo(x float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(x*p) / p
}

// quoteLocked returns the live quote, one pip wide, and caches it.
func (e *Engine) quoteLocked(symbol string, now time.Time) market.Tick {
	if t, err := e.ticks.Get(symbol); err == nil && t.Time.Equal(now) {
		return t
	}
	mid := priceAt(symbol, now)
	half := market.Lookup(symbol).PipSize() / 2
	t := market.Tick{Symbol: symbol, Time: now, Bid: mid - half, Ask: mid + half}
	e.ticks.Set(t)
	return t
}

func (e *Engine) Prices(ctx context.Context, symbols []string) (map[string]market.Tick, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	now := e.now()
	out := make(map[string]market.Tick, len(symbols))
	for _, s := range symbols {
		out[s] = e.quoteLocked(s, now)
	}
	return out, ctx.Err()
}

// OHLC returns count completed bars per symbol ending at the last bar
// boundary, shifted back by any injected lag. Fixed bars set with SetBars
// are returned as is.
func (e *Engine) OHLC(ctx context.Context, symbols []string, interval string, count, span int) (map[string][]market.Bar, error) {
	seconds, err := session.ValidateInterval(interval, span)
	if err != nil {
		return nil, err
	}
	bar := time.Duration(seconds) * time.Second

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if err := e.faults.ohlcErr(); err != nil {
		return nil, err
	}

	now := e.now()
	out := make(map[string][]market.Bar, len(symbols))
	for _, s := range symbols {
		if e.faults.take(e.faults.drop, s) {
			continue
		}
		if fixed, ok := e.faults.bars[s]; ok {
			out[s] = fixed
			continue
		}
		n := count
		if short, ok := e.faults.short[s]; ok {
			n = min(n, short)
		}
		last := now.Add(-e.faults.lag[s]).Truncate(bar).Add(-bar)
		out[s] = synthBars(s, last, bar, n)
	}
	return out, ctx.Err()
}

// synthBars builds n bars oldest first, the newest starting at last.
func synthBars(symbol string, last time.Time, bar time.Duration, n int) []market.Bar {
	bars := make([]market.Bar, 0, n)
	pip := market.Lookup(symbol).PipSize()
	for i := n - 1; i >= 0; i-- {
		start := last.Add(-time.Duration(i) * bar)
		open := priceAt(symbol, start)
		closeP := priceAt(symbol, start.Add(bar))
		bars = append(bars, market.Bar{
			Date:  market.FormatBarDate(start),
			Open:  open,
			High:  max(open, closeP) + pip,
			Low:   min(open, closeP) - pip,
			Close: closeP,
		})
	}
	return bars
}
