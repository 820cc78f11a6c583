package market

import "slices"

// Universe is the ordered set of symbols still being traded, each with its
// rolling history and consecutive price-failure count.
type Universe struct {
	symbols  []string
	history  map[string]*History
	failures map[string]int
}

// NewUniverse normalizes and de-duplicates symbols, keeping their order.
func NewUniverse(symbols []string, historySize int) *Universe {
	u := &Universe{
		history:  make(map[string]*History, len(symbols)),
		failures: make(map[string]int, len(symbols)),
	}
	for _, s := range symbols {
		s = NormalizeSymbol(s)
		if s == "" || slices.Contains(u.symbols, s) {
			continue
		}
		u.symbols = append(u.symbols, s)
		u.history[s] = NewHistory(historySize)
	}
	return u
}

// Symbols returns a copy of the live symbol list.
func (u *Universe) Symbols() []string { return slices.Clone(u.symbols) }

func (u *Universe) Len() int { return len(u.symbols) }

func (u *Universe) Contains(symbol string) bool {
	_, ok := u.history[symbol]
	return ok
}

// History returns the symbol's window, or nil once it has been removed.
func (u *Universe) History(symbol string) *History { return u.history[symbol] }

// Fail increments the symbol's consecutive failure count and returns it.
func (u *Universe) Fail(symbol string) int {
	u.failures[symbol]++
	return u.failures[symbol]
}

func (u *Universe) Failures(symbol string) int { return u.failures[symbol] }

func (u *Universe) ResetFailures(symbol string) { delete(u.failures, symbol) }

// Remove drops symbol from the list and forgets its history.
func (u *Universe) Remove(symbol string) bool {
	i := slices.Index(u.symbols, symbol)
	if i < 0 {
		return false
	}
	u.symbols = slices.Delete(u.symbols, i, i+1)
	delete(u.history, symbol)
	delete(u.failures, symbol)
	return true
}
