package market

import (
	"math"
	"strings"
)

type Instrument struct {
	Name          string
	BaseCurrency  string
	QuoteCurrency string
	PipLocation   int
	MarginRate    float64
}

// PipSize returns the price of one pip.
func (i Instrument) PipSize() float64 {
	return math.Pow(10, float64(i.PipLocation))
}

var Instruments = map[string]Instrument{
	"EUR/USD": {Name: "EUR/USD", BaseCurrency: "EUR", QuoteCurrency: "USD", PipLocation: -4, MarginRate: 0.02},
	"GBP/USD": {Name: "GBP/USD", BaseCurrency: "GBP", QuoteCurrency: "USD", PipLocation: -4, MarginRate: 0.02},
	"AUD/USD": {Name: "AUD/USD", BaseCurrency: "AUD", QuoteCurrency: "USD", PipLocation: -4, MarginRate: 0.02},
	"USD/CHF": {Name: "USD/CHF", BaseCurrency: "USD", QuoteCurrency: "CHF", PipLocation: -4, MarginRate: 0.02},
	"USD/CAD": {Name: "USD/CAD", BaseCurrency: "USD", QuoteCurrency: "CAD", PipLocation: -4, MarginRate: 0.02},
	"USD/JPY": {Name: "USD/JPY", BaseCurrency: "USD", QuoteCurrency: "JPY", PipLocation: -2, MarginRate: 0.02},
	"EUR/JPY": {Name: "EUR/JPY", BaseCurrency: "EUR", QuoteCurrency: "JPY", PipLocation: -2, MarginRate: 0.02},
}

// Lookup returns the instrument metadata for symbol. Unknown pairs get a
// four decimal pip, or two when quoted in JPY.
func Lookup(symbol string) Instrument {
	symbol = NormalizeSymbol(symbol)
	if in, ok := Instruments[symbol]; ok {
		return in
	}
	base, quote, _ := strings.Cut(symbol, "/")
	in := Instrument{Name: symbol, BaseCurrency: base, QuoteCurrency: quote, PipLocation: -4, MarginRate: 0.02}
	if quote == "JPY" {
		in.PipLocation = -2
	}
	return in
}

// NormalizeSymbol turns "eur_usd" or " EUR/USD " into "EUR/USD".
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	return strings.ReplaceAll(s, "_", "/")
}
