package risk

import (
	"maps"
	"slices"
	"sync"
)

// Multipliers is the per-symbol position sizing table. Symbols never set
// size at 1. A zero multiplier stops new exposure for good; closing trades
// are unaffected.
type Multipliers struct {
	mu    sync.RWMutex
	table map[string]float64
}

func NewMultipliers(symbols []string) *Multipliers {
	m := &Multipliers{table: make(map[string]float64, len(symbols))}
	for _, s := range symbols {
		m.table[s] = 1
	}
	return m
}

func (m *Multipliers) Get(symbol string) float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.table[symbol]
	if !ok {
		return 1
	}
	return v
}

// Set changes a multiplier. Quarantined symbols stay at zero.
func (m *Multipliers) Set(symbol string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.table[symbol]; ok && cur == 0 {
		return
	}
	m.table[symbol] = v
}

// Quarantine zeroes the symbol's multiplier.
func (m *Multipliers) Quarantine(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.table[symbol] = 0
}

func (m *Multipliers) Quarantined(symbol string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.table[symbol]
	return ok && v == 0
}

// Snapshot returns a copy of the table.
func (m *Multipliers) Snapshot() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.table)
}

// Symbols returns the known symbols in sorted order.
func (m *Multipliers) Symbols() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.table))
}
