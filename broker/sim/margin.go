package sim

import (
	"math"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/market"
)

// TradeMargin is the margin held for quantity units at price.
func TradeMargin(quantity int, price float64, symbol string, quoteToAccount float64) float64 {
	return math.Abs(float64(quantity)) * price * quoteToAccount * market.Lookup(symbol).MarginRate
}

// UnrealizedPL is the account-currency P&L of closing quantity units of p
// at price.
func UnrealizedPL(p broker.Position, quantity int, price, quoteToAccount float64) float64 {
	move := price - p.Price
	return float64(p.Direction.Sign()) * float64(quantity) * move * quoteToAccount
}

// quoteToAccount converts quote currency into a USD account. Crosses without
// USD are treated at par.
func quoteToAccount(symbol string, price float64) float64 {
	in := market.Lookup(symbol)
	switch {
	case in.QuoteCurrency == "USD":
		return 1
	case in.BaseCurrency == "USD" && price > 0:
		return 1 / price
	default:
		return 1
	}
}
