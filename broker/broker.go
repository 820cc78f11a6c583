// Package broker defines the brokerage collaborator the trader drives and
// the wire-neutral types it exchanges.
package broker

import (
	"context"
	"fmt"

	"github.com/rustyeddy/fxtrader/market"
)

type Broker interface {
	// Authenticate opens a new session.
	Authenticate(ctx context.Context) error
	// ValidateSession re-authenticates when the session has expired.
	ValidateSession(ctx context.Context) error
	MarketID(ctx context.Context, symbol string) (int64, error)

	// OHLC returns up to count bars per symbol, oldest first. Symbols the
	// broker could not serve are absent from the map.
	OHLC(ctx context.Context, symbols []string, interval string, count, span int) (map[string][]market.Bar, error)
	Prices(ctx context.Context, symbols []string) (map[string]market.Tick, error)

	OpenPositions(ctx context.Context) ([]Position, error)
	MarginInfo(ctx context.Context) (Margin, error)

	// TradeMarketOrder submits one market order per intent and returns the
	// symbols whose order was rejected.
	TradeMarketOrder(ctx context.Context, intents []TradeIntent) ([]string, error)
	ActiveOrders(ctx context.Context) ([]Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
}

type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

func (d Direction) Valid() bool { return d == Buy || d == Sell }

// Sign is +1 for buy and -1 for sell.
func (d Direction) Sign() int {
	if d == Buy {
		return 1
	}
	return -1
}

// TradeIntent asks for Quantity units in Direction so the symbol ends at
// FinalQuantity units.
type TradeIntent struct {
	Symbol        string
	Direction     Direction
	Quantity      int
	FinalQuantity int
}

func (ti TradeIntent) String() string {
	return fmt.Sprintf("%s %s %d -> %d", ti.Symbol, ti.Direction, ti.Quantity, ti.FinalQuantity)
}

type Position struct {
	Symbol    string
	Direction Direction
	Quantity  int
	Price     float64 // entry
}

type Margin struct {
	NetEquity float64
	Margin    float64
}

type OrderStatus int

// Order status ids as the broker reports them.
const (
	StatusPending    OrderStatus = 1
	StatusAccepted   OrderStatus = 2
	StatusOpen       OrderStatus = 3
	StatusCancelled  OrderStatus = 4
	StatusRejected   OrderStatus = 5
	StatusSuspended  OrderStatus = 6
	StatusYellowCard OrderStatus = 8
	StatusClosed     OrderStatus = 9
	StatusRedCard    OrderStatus = 10
	StatusTriggered  OrderStatus = 11
)

func (s OrderStatus) Pending() bool { return s == StatusPending }

// Failed reports a status the order can never leave for a fill.
func (s OrderStatus) Failed() bool {
	return s == StatusSuspended || s == StatusYellowCard || s == StatusRedCard
}

type Order struct {
	ID        int64
	Symbol    string
	Direction Direction
	Quantity  int
	Status    OrderStatus
}
