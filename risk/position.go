package risk

import "math"

// Lot is the granularity new positions are sized in.
const Lot = 1000

// BaseQuantity scales orderSize by multiplier and rounds to a whole lot.
func BaseQuantity(multiplier float64, orderSize int) int {
	return int(math.Round(multiplier*float64(orderSize)/Lot)) * Lot
}
