package strategy

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rustyeddy/fxtrader/market"
)

// Random ignores the history and goes long or short with equal odds. It
// stands in for a real model.
type Random struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom seeds the generator; seed 0 uses the clock.
func NewRandom(seed int64) *Random {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Random{rnd: rand.New(rand.NewSource(seed))}
}

func (r *Random) Signal(ctx context.Context, _ string, _ *market.History) (Signal, error) {
	if err := ctx.Err(); err != nil {
		return Flat, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rnd.Float64() > 0.5 {
		return Buy, nil
	}
	return Sell, nil
}

// FlatSource always asks for no position.
type FlatSource struct{}

func (FlatSource) Signal(context.Context, string, *market.History) (Signal, error) {
	return Flat, nil
}
