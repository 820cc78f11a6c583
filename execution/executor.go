// Package execution submits trade intents, watches the resulting orders and
// re-checks live positions until they match or the attempt budget runs out.
package execution

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/session"
)

const (
	// MaxVerifications bounds how many times a batch is checked and
	// corrected. The submission after the last check is final.
	MaxVerifications = 3

	Polls        = 3
	PollInterval = time.Second
)

// Broker is the part of broker.Broker the executor drives.
type Broker interface {
	TradeMarketOrder(ctx context.Context, intents []broker.TradeIntent) ([]string, error)
	ActiveOrders(ctx context.Context) ([]broker.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
	OpenPositions(ctx context.Context) ([]broker.Position, error)
}

// Quarantiner stops new exposure in a symbol. *risk.Multipliers is one.
type Quarantiner interface {
	Quarantine(symbol string)
}

// Report describes one Execute call.
type Report struct {
	DryRun bool
	// Submissions counts TradeMarketOrder calls.
	Submissions   int
	Verifications int
	Rejected      []string
	Cancelled     []int64
	Quarantined   []string
}

type Executor struct {
	broker      Broker
	quarantine  Quarantiner
	placeTrades bool

	sleep session.Sleeper
	log   *zap.Logger
}

type Option func(*Executor)

func WithSleeper(s session.Sleeper) Option { return func(x *Executor) { x.sleep = s } }

func WithLogger(l *zap.Logger) Option { return func(x *Executor) { x.log = l } }

// WithPlaceTrades turns real submission on. Without it Execute only logs.
func WithPlaceTrades(on bool) Option { return func(x *Executor) { x.placeTrades = on } }

func New(b Broker, q Quarantiner, opts ...Option) *Executor {
	x := &Executor{
		broker:     b,
		quarantine: q,
		sleep:      session.Sleep,
		log:        zap.NewNop(),
	}
	for _, o := range opts {
		o(x)
	}
	x.log = x.log.With(zap.String("component", "execution"))
	return x
}

// Execute submits intents unless trading is switched off.
func (x *Executor) Execute(ctx context.Context, intents []broker.TradeIntent) (Report, error) {
	if !x.placeTrades {
		for _, ti := range intents {
			x.log.Info("dry run, not submitted", zap.Stringer("intent", ti))
		}
		return Report{DryRun: true}, nil
	}
	return x.run(ctx, intents)
}

// Force submits intents even when trading is switched off. It is used to
// close everything in an emergency.
func (x *Executor) Force(ctx context.Context, intents []broker.TradeIntent) (Report, error) {
	return x.run(ctx, intents)
}

// run is submit, poll, verify, repeated. After MaxVerifications checks
// the next submission is the last; symbols it rejects are quarantined.
func (x *Executor) run(ctx context.Context, intents []broker.TradeIntent) (Report, error) {
	const op = "execution.Execute"

	var rep Report
	batch := intents
	for len(batch) > 0 {
		rejected, err := x.broker.TradeMarketOrder(ctx, batch)
		rep.Submissions++
		if err != nil {
			return rep, fxerr.E(op, fxerr.Execution, err)
		}
		for _, ti := range batch {
			x.log.Info("order submitted", zap.Stringer("intent", ti), zap.Int("submission", rep.Submissions))
		}
		for _, s := range rejected {
			x.log.Warn("trading error", zap.String("symbol", s), zap.Int("submission", rep.Submissions))
		}
		rep.Rejected = appendNew(rep.Rejected, rejected...)

		cancelled, err := x.poll(ctx)
		rep.Cancelled = append(rep.Cancelled, cancelled...)
		if err != nil {
			return rep, fxerr.E(op, fxerr.Execution, err)
		}

		if rep.Verifications >= MaxVerifications {
			for _, s := range rejected {
				x.log.Warn("trading error, symbol removed", zap.String("symbol", s))
				x.quarantine.Quarantine(s)
				rep.Quarantined = appendNew(rep.Quarantined, s)
			}
			break
		}

		rep.Verifications++
		batch, err = x.verify(ctx, batch)
		if err != nil {
			return rep, fxerr.E(op, fxerr.Execution, err)
		}
	}
	return rep, nil
}

// poll lists active orders up to Polls times. Orders still pending on the
// last look are cancelled. Failed orders are logged and not waited on.
func (x *Executor) poll(ctx context.Context) ([]int64, error) {
	var cancelled []int64
	for i := range Polls {
		if err := x.sleep(ctx, PollInterval); err != nil {
			return cancelled, err
		}
		orders, err := x.broker.ActiveOrders(ctx)
		if err != nil {
			return cancelled, err
		}

		pending := 0
		for _, o := range orders {
			switch {
			case o.Status.Pending():
				pending++
				if i == Polls-1 {
					if err := x.broker.CancelOrder(ctx, o.ID); err != nil {
						x.log.Error("cancel failed", zap.Int64("order", o.ID), zap.Error(err))
						continue
					}
					x.log.Warn("cancelled order", zap.Int64("order", o.ID), zap.String("symbol", o.Symbol))
					cancelled = append(cancelled, o.ID)
				}
			case o.Status.Failed():
				x.log.Error("major order status error", zap.Int64("order", o.ID),
					zap.String("symbol", o.Symbol), zap.Int("status", int(o.Status)))
			}
		}
		if pending == 0 {
			break
		}
	}
	return cancelled, nil
}

// verify compares live positions with what batch asked for and returns the
// corrective intents.
func (x *Executor) verify(ctx context.Context, batch []broker.TradeIntent) ([]broker.TradeIntent, error) {
	positions, err := x.broker.OpenPositions(ctx)
	if err != nil {
		return nil, err
	}

	want := make(map[string]broker.TradeIntent, len(batch))
	for _, ti := range batch {
		want[ti.Symbol] = ti
	}

	var out []broker.TradeIntent
	for _, p := range broker.Net(positions) {
		ti, ok := want[p.Symbol]
		if !ok {
			continue
		}
		delete(want, p.Symbol)
		switch {
		case p.Direction != ti.Direction:
			out = append(out, broker.TradeIntent{Symbol: ti.Symbol, Direction: ti.Direction,
				Quantity: p.Quantity + ti.FinalQuantity, FinalQuantity: ti.FinalQuantity})
		case p.Quantity < ti.FinalQuantity:
			out = append(out, broker.TradeIntent{Symbol: ti.Symbol, Direction: ti.Direction,
				Quantity: ti.FinalQuantity - p.Quantity, FinalQuantity: ti.FinalQuantity})
		}
	}
	for _, ti := range want {
		if ti.FinalQuantity != 0 {
			out = append(out, ti)
		}
	}

	slices.SortFunc(out, func(a, b broker.TradeIntent) int { return strings.Compare(a.Symbol, b.Symbol) })
	for _, ti := range out {
		x.log.Info("position does not match intent, correcting", zap.Stringer("intent", ti))
	}
	return out, nil
}

func appendNew(dst []string, src ...string) []string {
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
