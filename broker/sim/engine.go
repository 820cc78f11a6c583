// Package sim is an in-memory broker. It synthesizes bars and ticks from a
// deterministic price path, fills market orders at the current quote and
// keeps one netted position per symbol. Faults can be injected per symbol
// so callers can exercise retry and quarantine paths.
package sim

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/market"
)

var ErrNotAuthenticated = errors.New("sim: not authenticated")

type Engine struct {
	mu sync.Mutex

	now func() time.Time
	log *zap.Logger

	authenticated bool
	logons        int

	balance   float64
	ticks     *market.TickStore
	positions map[string]*broker.Position
	orders    map[int64]*broker.Order
	nextOrder int64
	submitted [][]broker.TradeIntent

	faults faults
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = l } }

// WithBalance sets the starting cash balance. Defaults to 10,000.
func WithBalance(b float64) Option { return func(e *Engine) { e.balance = b } }

var _ broker.Broker = (*Engine)(nil)

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		now:       time.Now,
		log:       zap.NewNop(),
		balance:   10_000,
		ticks:     market.NewTickStore(),
		positions: make(map[string]*broker.Position),
		orders:    make(map[int64]*broker.Order),
		nextOrder: 1,
		faults:    newFaults(),
	}
	for _, o := range opts {
		o(e)
	}
	e.log = e.log.With(zap.String("component", "sim"))
	return e
}

func (e *Engine) Authenticate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.authenticated = true
	e.logons++
	return ctx.Err()
}

func (e *Engine) ValidateSession(ctx context.Context) error {
	e.mu.Lock()
	if e.authenticated {
		e.mu.Unlock()
		return ctx.Err()
	}
	e.mu.Unlock()
	return e.Authenticate(ctx)
}

// Logons reports how many times Authenticate ran.
func (e *Engine) Logons() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logons
}

// MarketID derives a stable id from the symbol.
func (e *Engine) MarketID(_ context.Context, symbol string) (int64, error) {
	if symbol == "" {
		return 0, fmt.Errorf("sim: empty symbol")
	}
	return 400_000_000 + int64(phase(symbol)*1e6), nil
}

func (e *Engine) requireSession() error {
	if !e.authenticated {
		return ErrNotAuthenticated
	}
	return nil
}

// SetPosition replaces the netted position for p.Symbol. A zero quantity
// removes it.
func (e *Engine) SetPosition(p broker.Position) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p.Quantity == 0 {
		delete(e.positions, p.Symbol)
		return
	}
	cp := p
	e.positions[p.Symbol] = &cp
}

// Position returns the current position for symbol, if any.
func (e *Engine) Position(symbol string) (broker.Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p, ok := e.positions[symbol]
	if !ok {
		return broker.Position{}, false
	}
	return *p, true
}

func (e *Engine) OpenPositions(ctx context.Context) ([]broker.Position, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if err := e.faults.positionsErr(); err != nil {
		return nil, err
	}
	out := make([]broker.Position, 0, len(e.positions))
	for _, p := range e.positions {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(a, b broker.Position) int { return strings.Compare(a.Symbol, b.Symbol) })
	return out, ctx.Err()
}

// Submissions returns every batch passed to TradeMarketOrder.
func (e *Engine) Submissions() [][]broker.TradeIntent {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([][]broker.TradeIntent, len(e.submitted))
	for i, b := range e.submitted {
		out[i] = slices.Clone(b)
	}
	return out
}

func (e *Engine) TradeMarketOrder(ctx context.Context, intents []broker.TradeIntent) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.submitted = append(e.submitted, slices.Clone(intents))

	now := e.now()
	var failed []string
	for _, ti := range intents {
		if !ti.Direction.Valid() || ti.Quantity <= 0 {
			failed = append(failed, ti.Symbol)
			continue
		}
		if e.faults.take(e.faults.reject, ti.Symbol) {
			e.log.Info("order rejected", zap.Stringer("intent", ti))
			failed = append(failed, ti.Symbol)
			continue
		}

		o := &broker.Order{ID: e.nextOrder, Symbol: ti.Symbol, Direction: ti.Direction, Quantity: ti.Quantity}
		e.nextOrder++

		switch {
		case e.faults.take(e.faults.pending, ti.Symbol):
			o.Status = broker.StatusPending
			e.orders[o.ID] = o
		case e.faults.take(e.faults.redCard, ti.Symbol):
			o.Status = broker.StatusRedCard
			e.orders[o.ID] = o
		case e.faults.take(e.faults.ignore, ti.Symbol):
			// accepted, never filled
		default:
			e.fillLocked(ti, now)
		}
	}
	return failed, nil
}

// fillLocked applies a fill to the netted position. Buys fill at the ask,
// sells at the bid. Reductions realize P&L into the balance.
func (e *Engine) fillLocked(ti broker.TradeIntent, now time.Time) {
	tick := e.quoteLocked(ti.Symbol, now)
	price := tick.Bid
	if ti.Direction == broker.Buy {
		price = tick.Ask
	}

	p, ok := e.positions[ti.Symbol]
	if !ok {
		e.positions[ti.Symbol] = &broker.Position{Symbol: ti.Symbol, Direction: ti.Direction, Quantity: ti.Quantity, Price: price}
		return
	}
	if p.Direction == ti.Direction {
		total := p.Quantity + ti.Quantity
		p.Price = (p.Price*float64(p.Quantity) + price*float64(ti.Quantity)) / float64(total)
		p.Quantity = total
		return
	}

	closed := min(p.Quantity, ti.Quantity)
	e.balance += UnrealizedPL(*p, closed, price, quoteToAccount(ti.Symbol, price))
	switch {
	case ti.Quantity < p.Quantity:
		p.Quantity -= ti.Quantity
	case ti.Quantity == p.Quantity:
		delete(e.positions, ti.Symbol)
	default:
		e.positions[ti.Symbol] = &broker.Position{
			Symbol: ti.Symbol, Direction: ti.Direction, Quantity: ti.Quantity - p.Quantity, Price: price,
		}
	}
}

func (e *Engine) ActiveOrders(ctx context.Context) ([]broker.Order, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return nil, err
	}
	out := make([]broker.Order, 0, len(e.orders))
	for _, o := range e.orders {
		out = append(out, *o)
	}
	slices.SortFunc(out, func(a, b broker.Order) int { return cmp.Compare(a.ID, b.ID) })
	return out, ctx.Err()
}

// CancelOrder removes a live order.
func (e *Engine) CancelOrder(ctx context.Context, orderID int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return err
	}
	if _, ok := e.orders[orderID]; !ok {
		return fmt.Errorf("sim: order %d not found", orderID)
	}
	delete(e.orders, orderID)
	return ctx.Err()
}

// MarginInfo values open positions at the current mid.
func (e *Engine) MarginInfo(ctx context.Context) (broker.Margin, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requireSession(); err != nil {
		return broker.Margin{}, err
	}

	now := e.now()
	equity := e.balance
	var used float64
	for _, p := range e.positions {
		tick := e.quoteLocked(p.Symbol, now)
		mark := tick.Bid
		if p.Direction == broker.Sell {
			mark = tick.Ask
		}
		rate := quoteToAccount(p.Symbol, tick.Mid())
		equity += UnrealizedPL(*p, p.Quantity, mark, rate)
		used += TradeMargin(p.Quantity, tick.Mid(), p.Symbol, rate)
	}
	return broker.Margin{NetEquity: round2(equity), Margin: round2(used)}, ctx.Err()
}

func round2(x float64) float64 { return math.Round(x*100) / 100 }
