// Package control drives the trader one bar at a time: fetch prices, score
// symbols, reconcile against the broker, execute, report.
package control

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/execution"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/journal"
	"github.com/rustyeddy/fxtrader/market"
	"github.com/rustyeddy/fxtrader/pricing"
	"github.com/rustyeddy/fxtrader/reconcile"
	"github.com/rustyeddy/fxtrader/risk"
	"github.com/rustyeddy/fxtrader/session"
	"github.com/rustyeddy/fxtrader/strategy"
)

const (
	// BarRetries is how many times failing symbols are re-fetched while
	// waiting for the next bar.
	BarRetries = 5
	// RetryCutoff stops retries this long before the bar deadline.
	RetryCutoff = 15 * time.Second
)

var ErrNoSymbols = errors.New("no symbols left to trade")

// Clock is the session schedule. *session.Clock is one.
type Clock interface {
	AwaitSessionOpen(ctx context.Context) error
	IsMarketClosed() bool
	IsExitOnly() bool
	BarInterval() time.Duration
	Now() time.Time
}

type Fetcher interface {
	Fetch(ctx context.Context, u *market.Universe, symbols []string, nextBar int64) (pricing.Result, error)
}

type Executor interface {
	Execute(ctx context.Context, intents []broker.TradeIntent) (execution.Report, error)
	Force(ctx context.Context, intents []broker.TradeIntent) (execution.Report, error)
}

// Config wires a Loop. Journal and Sleep may be left nil.
type Config struct {
	Clock       Clock
	Broker      broker.Broker
	Fetcher     Fetcher
	Executor    Executor
	Signals     strategy.Source
	Universe    *market.Universe
	Multipliers *risk.Multipliers
	Store       *journal.Store
	Journal     journal.Journal
	Sleep       session.Sleeper
	Logger      *zap.Logger

	OrderSize        int
	MaxRetryFailures int
	RunID            string
}

type Loop struct {
	clock    Clock
	broker   broker.Broker
	fetcher  Fetcher
	exec     Executor
	signals  strategy.Source
	universe *market.Universe
	mult     *risk.Multipliers
	store    *journal.Store
	journal  journal.Journal
	sleep    session.Sleeper
	log      *zap.Logger

	orderSize int
	maxRetry  int
	runID     string

	lastBar   int64
	failing   []string
	dataShort []string
	// failures is the global budget: consecutive bars that ended in error.
	failures     int
	initialFunds float64
}

func New(cfg Config) (*Loop, error) {
	const op = "control.New"

	if cfg.Clock == nil || cfg.Broker == nil || cfg.Fetcher == nil || cfg.Executor == nil ||
		cfg.Signals == nil || cfg.Universe == nil || cfg.Multipliers == nil || cfg.Store == nil {
		return nil, fxerr.Errorf(op, fxerr.Config, "incomplete configuration")
	}
	if cfg.OrderSize <= 0 {
		return nil, fxerr.Errorf(op, fxerr.Config, "order size must be positive, got %d", cfg.OrderSize)
	}
	if cfg.MaxRetryFailures < 0 {
		return nil, fxerr.Errorf(op, fxerr.Config, "max retry failures must not be negative, got %d", cfg.MaxRetryFailures)
	}

	l := &Loop{
		clock:     cfg.Clock,
		broker:    cfg.Broker,
		fetcher:   cfg.Fetcher,
		exec:      cfg.Executor,
		signals:   cfg.Signals,
		universe:  cfg.Universe,
		mult:      cfg.Multipliers,
		store:     cfg.Store,
		journal:   cfg.Journal,
		sleep:     cfg.Sleep,
		log:       cfg.Logger,
		orderSize: cfg.OrderSize,
		maxRetry:  cfg.MaxRetryFailures,
		runID:     cfg.RunID,
	}
	if l.journal == nil {
		l.journal = journal.Nop{}
	}
	if l.sleep == nil {
		l.sleep = session.Sleep
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	l.log = l.log.With(zap.String("component", "control"), zap.String("run", l.runID))
	return l, nil
}

// LastBar is the newest bar timestamp the loop has traded on.
func (l *Loop) LastBar() int64 { return l.lastBar }

// Start waits for the session, logs in and writes the opening report and
// override file.
func (l *Loop) Start(ctx context.Context) error {
	if err := l.clock.AwaitSessionOpen(ctx); err != nil {
		return err
	}
	if err := l.broker.Authenticate(ctx); err != nil {
		return err
	}
	l.log.Info("broker session started")

	for _, s := range l.universe.Symbols() {
		if _, err := l.broker.MarketID(ctx, s); err != nil {
			l.log.Warn("market id lookup failed", zap.String("symbol", s), zap.Error(err))
		}
	}
	if err := l.report(ctx); err != nil {
		return err
	}
	if _, err := l.store.ReadOverrides(l.universe.Symbols()); err != nil {
		l.log.Error("override file not written", zap.Error(err))
	}
	return nil
}

// Run trades until the session closes, the context ends or the failure
// budget is spent.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("currently running")

	l.fetch(ctx, l.universe.Symbols(), 0)
	if err := ctx.Err(); err != nil {
		return err
	}

	for !l.clock.IsMarketClosed() {
		if l.universe.Len() == 0 {
			return fxerr.E("control.Run", fxerr.DataAcquisition, ErrNoSymbols)
		}

		err := l.bar(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			l.failures++
			l.log.Error("loop failed", zap.Int("failures", l.failures), zap.Int("max", l.maxRetry), zap.Error(err))
			if l.failures > l.maxRetry {
				return err
			}
			continue
		}
		l.failures = 0
		l.log.Info("loop completed")
	}
	l.log.Info("market closed")
	return nil
}

// bar waits for the next bar and trades it.
func (l *Loop) bar(ctx context.Context) error {
	executable, err := l.awaitNextBar(ctx)
	if err != nil {
		return err
	}
	return l.step(ctx, executable)
}

// awaitNextBar retries failing symbols, settles failure counters, sleeps
// until the next bar is due and fetches it for every live symbol. Fetch
// errors only mark symbols as failing; they never fail the bar.
func (l *Loop) awaitNextBar(ctx context.Context) ([]string, error) {
	bar := l.clock.BarInterval()
	nextBar := l.lastBar + int64(bar/time.Second)
	deadline := time.Unix(nextBar, 0).Add(bar)

	for range BarRetries {
		if len(l.failing) == 0 {
			break
		}
		if l.clock.Now().After(deadline.Add(-RetryCutoff)) {
			break
		}
		res, err := l.fetch(ctx, l.failing, l.lastBar)
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if err != nil {
			// The symbols stay failing and are counted below.
			break
		}
		if len(res.Executable) > 0 {
			if err := l.step(ctx, res.Executable); err != nil {
				return nil, err
			}
		}
	}

	for _, s := range l.failing {
		n := l.universe.Fail(s)
		l.log.Warn("updates failed", zap.String("symbol", s), zap.Int("failed_loops", n))
		if n > l.maxRetry {
			l.quarantine(s, "price updates failed")
		}
	}
	for _, s := range l.dataShort {
		l.quarantine(s, "data acquisition error")
	}
	l.failing, l.dataShort = nil, nil

	if wait := deadline.Sub(l.clock.Now()); wait > 0 {
		l.log.Info("waiting for bar update", zap.Duration("wait", wait))
		if err := l.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	if err := l.broker.ValidateSession(ctx); err != nil {
		return nil, err
	}
	if l.universe.Len() == 0 {
		return nil, nil
	}
	res, _ := l.fetch(ctx, l.universe.Symbols(), nextBar)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return res.Executable, nil
}

// fetch runs the fetcher and folds the outcome into the loop state.
func (l *Loop) fetch(ctx context.Context, symbols []string, nextBar int64) (pricing.Result, error) {
	res, err := l.fetcher.Fetch(ctx, l.universe, symbols, nextBar)
	if err != nil {
		l.log.Error("price fetch failed", zap.Error(err))
	}
	l.lastBar = max(l.lastBar, res.LastBar)
	for _, s := range res.Executable {
		l.universe.ResetFailures(s)
	}
	l.failing = res.Failed
	l.dataShort = append(l.dataShort, res.DataShort...)
	return res, err
}

// quarantine removes a symbol for the rest of the run.
func (l *Loop) quarantine(symbol, reason string) {
	if l.universe.Remove(symbol) {
		l.mult.Quarantine(symbol)
		l.log.Error("symbol removed", zap.String("symbol", symbol), zap.String("reason", reason))
	}
}

// step scores symbols, applies operator overrides, reconciles and executes.
func (l *Loop) step(ctx context.Context, symbols []string) error {
	const op = "control.step"

	signals := make(map[string]strategy.Signal, len(symbols))
	for _, s := range symbols {
		sig, err := l.signals.Signal(ctx, s, l.universe.History(s))
		if err != nil {
			l.log.Warn("no signal", zap.String("symbol", s), zap.Error(err))
			continue
		}
		l.log.Debug("trading model output", zap.String("symbol", s), zap.Stringer("signal", sig))
		signals[s] = sig
	}
	l.applyOverrides(signals)

	positions, err := l.broker.OpenPositions(ctx)
	if err != nil {
		return fxerr.E(op, fxerr.Broker, err)
	}
	intents := reconcile.Reconcile(signals, positions, l.mult, l.orderSize, l.clock.IsExitOnly())
	if len(intents) > 0 {
		if _, err := l.exec.Execute(ctx, intents); err != nil {
			return err
		}
	}
	return l.report(ctx)
}

func (l *Loop) applyOverrides(signals map[string]strategy.Signal) {
	overrides, err := l.store.ReadOverrides(l.universe.Symbols())
	if err != nil {
		l.log.Error("override file not written", zap.Error(err))
	}
	for s, o := range overrides {
		if o.CloseImmediately {
			signals[s] = strategy.Flat
		}
		if o.CloseOnSignalChange {
			l.mult.Set(s, 0)
		}
	}
}
