// Package strategy turns a symbol's recent bars into a position signal.
package strategy

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/rustyeddy/fxtrader/market"
)

// Signal is the desired position: long, flat or short.
type Signal int

const (
	Sell Signal = -1
	Flat Signal = 0
	Buy  Signal = 1
)

func (s Signal) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	case Flat:
		return "flat"
	default:
		return fmt.Sprintf("Signal(%d)", int(s))
	}
}

// Sign folds any positive value to Buy and any negative value to Sell.
func (s Signal) Sign() Signal {
	switch {
	case s > 0:
		return Buy
	case s < 0:
		return Sell
	default:
		return Flat
	}
}

// Source scores one symbol from its history. It is called once per symbol
// per bar.
type Source interface {
	Signal(ctx context.Context, symbol string, h *market.History) (Signal, error)
}

// Func adapts a plain function to Source.
type Func func(ctx context.Context, symbol string, h *market.History) (Signal, error)

func (f Func) Signal(ctx context.Context, symbol string, h *market.History) (Signal, error) {
	return f(ctx, symbol, h)
}

// Factory builds a fresh Source.
type Factory func() Source

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[normalize(name)] = f
}

// ByName builds the registered strategy called name.
func ByName(name string) (Source, error) {
	mu.RLock()
	f, ok := registry[normalize(name)]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (supported: %s)", name, strings.Join(Names(), ", "))
	}
	return f(), nil
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func init() {
	Register("random", func() Source { return NewRandom(0) })
	Register("flat", func() Source { return FlatSource{} })
	Register("ema-cross", func() Source { return NewEMACross(20, 50) })
	Register("ema-cross-adx", func() Source { return NewEMACrossADX(20, 50, 14, 20) })
}
