package control

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/broker/sim"
	"github.com/rustyeddy/fxtrader/execution"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/journal"
	"github.com/rustyeddy/fxtrader/market"
	"github.com/rustyeddy/fxtrader/pricing"
	"github.com/rustyeddy/fxtrader/risk"
	"github.com/rustyeddy/fxtrader/strategy"
)

const (
	orderSize = 2000
	history   = 10
)

// 10:07 UTC on a Wednesday; the newest completed five minute bar opened at
// 10:00.
var t0 = time.Date(2024, 1, 10, 10, 7, 0, 0, time.UTC)

// fakeClock is a session that is open from t0 until close. Every sleeper
// in the fixture advances it.
type fakeClock struct {
	t        time.Time
	close    time.Time
	exitFrom time.Time
}

func (c *fakeClock) AwaitSessionOpen(ctx context.Context) error { return ctx.Err() }
func (c *fakeClock) IsMarketClosed() bool                       { return !c.t.Before(c.close) }
func (c *fakeClock) IsExitOnly() bool                           { return c.t.After(c.exitFrom) }
func (c *fakeClock) BarInterval() time.Duration                 { return 5 * time.Minute }
func (c *fakeClock) Now() time.Time                             { return c.t }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.t = c.t.Add(d)
	return nil
}

type fixture struct {
	clock    *fakeClock
	engine   *sim.Engine
	universe *market.Universe
	mult     *risk.Multipliers
	store    *journal.Store
	journal  *journal.SQLite
	loop     *Loop
}

type fixtureOpts struct {
	symbols   []string
	open      time.Duration
	// exitAfter starts exit only mode this long after t0. Zero never does,
	// unless exitOnly is set.
	exitAfter time.Duration
	exitOnly  bool
	maxRetry  int
	signal    strategy.Signal
	setup     func(*sim.Engine)
	// source wraps the engine as the fetcher's bar source.
	source    func(*sim.Engine) pricing.Source
}

func newFixture(t *testing.T, o fixtureOpts) *fixture {
	t.Helper()

	log := zaptest.NewLogger(t)
	fc := &fakeClock{t: t0, close: t0.Add(o.open), exitFrom: t0.Add(24 * time.Hour)}
	switch {
	case o.exitOnly:
		fc.exitFrom = t0.Add(-time.Minute)
	case o.exitAfter > 0:
		fc.exitFrom = t0.Add(o.exitAfter)
	}

	e := sim.NewEngine(sim.WithClock(fc.Now), sim.WithLogger(log))
	require.NoError(t, e.Authenticate(t.Context()))
	if o.setup != nil {
		o.setup(e)
	}

	u := market.NewUniverse(o.symbols, history)
	m := risk.NewMultipliers(o.symbols)
	var src pricing.Source = e
	if o.source != nil {
		src = o.source(e)
	}
	f, err := pricing.New(src, "MINUTE", 5, history,
		pricing.WithClock(fc.Now), pricing.WithSleeper(fc.Sleep), pricing.WithLogger(log))
	require.NoError(t, err)
	x := execution.New(e, m,
		execution.WithSleeper(fc.Sleep), execution.WithPlaceTrades(true), execution.WithLogger(log))

	dir := t.TempDir()
	store := journal.NewStore(dir, journal.WithClock(fc.Now), journal.WithLogger(log))
	j, err := journal.NewSQLite(filepath.Join(dir, "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })

	sig := o.signal
	l, err := New(Config{
		Clock:    fc,
		Broker:   e,
		Fetcher:  f,
		Executor: x,
		Signals: strategy.Func(func(context.Context, string, *market.History) (strategy.Signal, error) {
			return sig, nil
		}),
		Universe:         u,
		Multipliers:      m,
		Store:            store,
		Journal:          j,
		Sleep:            fc.Sleep,
		Logger:           log,
		OrderSize:        orderSize,
		MaxRetryFailures: o.maxRetry,
		RunID:            "RUN",
	})
	require.NoError(t, err)

	return &fixture{clock: fc, engine: e, universe: u, mult: m, store: store, journal: j, loop: l}
}

// unlistedSource behaves as if symbol has no market: requests naming only
// symbol fail, wider requests leave it out.
type unlistedSource struct {
	pricing.Source
	symbol string
}

func (u unlistedSource) OHLC(ctx context.Context, symbols []string, interval string, count, span int) (map[string][]market.Bar, error) {
	if len(symbols) == 1 && symbols[0] == u.symbol {
		return nil, errors.New("market not found: " + u.symbol)
	}
	out, err := u.Source.OHLC(ctx, symbols, interval, count, span)
	delete(out, u.symbol)
	return out, err
}

func submittedSymbols(e *sim.Engine) map[string]bool {
	out := map[string]bool{}
	for _, batch := range e.Submissions() {
		for _, ti := range batch {
			out[ti.Symbol] = true
		}
	}
	return out
}

func TestNewValidates(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	assert.True(t, fxerr.Is(err, fxerr.Config))

	fx := newFixture(t, fixtureOpts{symbols: []string{"EUR/USD"}, open: time.Hour})
	cfg := Config{
		Clock: fx.clock, Broker: fx.engine, Fetcher: fx.loop.fetcher, Executor: fx.loop.exec,
		Signals: strategy.FlatSource{}, Universe: fx.universe, Multipliers: fx.mult, Store: fx.store,
	}
	_, err = New(cfg)
	assert.True(t, fxerr.Is(err, fxerr.Config), "order size")

	cfg.OrderSize = orderSize
	cfg.MaxRetryFailures = -1
	_, err = New(cfg)
	assert.True(t, fxerr.Is(err, fxerr.Config), "retry budget")

	cfg.MaxRetryFailures = 0
	l, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, journal.Nop{}, l.journal)
}

func TestStartWritesFiles(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{symbols: []string{"EUR/USD", "USD/JPY"}, open: time.Hour})
	require.NoError(t, fx.loop.Start(t.Context()))
	assert.Equal(t, 2, fx.engine.Logons())

	_, err := os.Stat(fx.store.OverridesPath())
	require.NoError(t, err)
	data, err := os.ReadFile(fx.store.ReportPath())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Initial Funds": 10000`)

	eq, err := fx.journal.ListEquity("RUN")
	require.NoError(t, err)
	require.Len(t, eq, 1)
	assert.InDelta(t, 10_000, eq[0].Equity, 1e-9)
}

// A symbol that never updates is removed after more than MaxRetryFailures
// failed bars. The others trade through to the close and are flattened
// once the session turns exit only.
func TestRunQuarantinesSilentSymbol(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{
		symbols:   []string{"EUR/USD", "GBP/USD", "USD/CHF", "USD/JPY"},
		open:      26 * time.Minute,
		exitAfter: 24 * time.Minute,
		maxRetry:  3,
		signal:    strategy.Buy,
		setup:     func(e *sim.Engine) { e.Drop("USD/CHF", sim.Forever) },
	})

	require.NoError(t, fx.loop.Run(t.Context()))

	assert.False(t, fx.universe.Contains("USD/CHF"))
	assert.True(t, fx.mult.Quarantined("USD/CHF"))
	assert.Equal(t, 3, fx.universe.Len())
	assert.False(t, submittedSymbols(fx.engine)["USD/CHF"])

	subs := fx.engine.Submissions()
	require.GreaterOrEqual(t, len(subs), 2)
	assert.Equal(t, []broker.TradeIntent{
		{Symbol: "EUR/USD", Direction: broker.Buy, Quantity: orderSize, FinalQuantity: orderSize},
		{Symbol: "GBP/USD", Direction: broker.Buy, Quantity: orderSize, FinalQuantity: orderSize},
		{Symbol: "USD/JPY", Direction: broker.Buy, Quantity: orderSize, FinalQuantity: orderSize},
	}, subs[0])
	for _, ti := range subs[len(subs)-1] {
		assert.Equal(t, broker.Sell, ti.Direction)
		assert.Zero(t, ti.FinalQuantity)
	}

	positions, err := fx.engine.OpenPositions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.True(t, fx.clock.IsMarketClosed())
	assert.Equal(t, time.Date(2024, 1, 10, 10, 30, 0, 0, time.UTC).Unix(), fx.loop.LastBar())

	eq, err := fx.journal.ListEquity("RUN")
	require.NoError(t, err)
	assert.NotEmpty(t, eq)
}

// A broker error while retrying one symbol between bars counts against
// that symbol only. The run carries on and the symbol is removed.
func TestRunQuarantinesUnlistedSymbol(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{
		symbols:  []string{"EUR/USD", "USD/CHF"},
		open:     20 * time.Minute,
		maxRetry: 2,
		signal:   strategy.Buy,
		source: func(e *sim.Engine) pricing.Source {
			return unlistedSource{Source: e, symbol: "USD/CHF"}
		},
	})

	require.NoError(t, fx.loop.Run(t.Context()))

	assert.False(t, fx.universe.Contains("USD/CHF"))
	assert.True(t, fx.mult.Quarantined("USD/CHF"))
	assert.Equal(t, map[string]bool{"EUR/USD": true}, submittedSymbols(fx.engine))
	assert.True(t, fx.clock.IsMarketClosed())
}

func TestRunQuarantinesShortHistory(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{
		symbols:  []string{"EUR/USD", "GBP/USD"},
		open:     2 * time.Minute,
		maxRetry: 3,
		signal:   strategy.Buy,
		setup:    func(e *sim.Engine) { e.Short("GBP/USD", history/2) },
	})

	require.NoError(t, fx.loop.Run(t.Context()))

	assert.False(t, fx.universe.Contains("GBP/USD"))
	assert.True(t, fx.mult.Quarantined("GBP/USD"))
	assert.Equal(t, map[string]bool{"EUR/USD": true}, submittedSymbols(fx.engine))
}

func TestRunStopsWhenBudgetSpent(t *testing.T) {
	t.Parallel()

	down := errors.New("positions unavailable")
	fx := newFixture(t, fixtureOpts{
		symbols:  []string{"EUR/USD"},
		open:     time.Hour,
		maxRetry: 1,
		signal:   strategy.Flat,
		setup:    func(e *sim.Engine) { e.FailPositions(down, down) },
	})

	err := fx.loop.Run(t.Context())
	require.Error(t, err)
	assert.True(t, fxerr.Is(err, fxerr.Broker))
	assert.ErrorIs(t, err, down)
	assert.False(t, fx.clock.IsMarketClosed())
}

func TestRunBudgetResetsOnSuccess(t *testing.T) {
	t.Parallel()

	// each clean bar reads positions twice: once to reconcile, once to
	// report
	down := errors.New("positions unavailable")
	fx := newFixture(t, fixtureOpts{
		symbols:  []string{"EUR/USD"},
		open:     16 * time.Minute,
		maxRetry: 1,
		signal:   strategy.Flat,
		setup:    func(e *sim.Engine) { e.FailPositions(down, nil, nil, down) },
	})

	require.NoError(t, fx.loop.Run(t.Context()))
	assert.True(t, fx.clock.IsMarketClosed())
}

func TestRunAppliesOverrides(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{
		symbols:  []string{"EUR/USD", "GBP/USD", "USD/JPY"},
		open:     2 * time.Minute,
		maxRetry: 3,
		signal:   strategy.Buy,
		setup: func(e *sim.Engine) {
			e.SetPosition(broker.Position{Symbol: "EUR/USD", Direction: broker.Buy, Quantity: 2000, Price: 1.1})
			e.SetPosition(broker.Position{Symbol: "GBP/USD", Direction: broker.Sell, Quantity: 2000, Price: 1.27})
		},
	})
	require.NoError(t, os.WriteFile(fx.store.OverridesPath(), []byte(`{
		"EUR/USD": {"Close Immediately": true},
		"GBP/USD": {"Close On Trade Signal Change": true}
	}`), 0o644))

	require.NoError(t, fx.loop.Run(t.Context()))

	_, ok := fx.engine.Position("EUR/USD")
	assert.False(t, ok, "closed immediately")
	_, ok = fx.engine.Position("GBP/USD")
	assert.False(t, ok, "closed on signal change, not reversed")
	assert.Zero(t, fx.mult.Get("GBP/USD"))

	jpy, ok := fx.engine.Position("USD/JPY")
	require.True(t, ok)
	assert.Equal(t, broker.Buy, jpy.Direction)
	assert.Equal(t, orderSize, jpy.Quantity)
}

func TestRunExitOnlyFlattens(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{
		symbols:  []string{"EUR/USD", "USD/JPY"},
		open:     2 * time.Minute,
		exitOnly: true,
		maxRetry: 3,
		signal:   strategy.Buy,
		setup: func(e *sim.Engine) {
			e.SetPosition(broker.Position{Symbol: "USD/JPY", Direction: broker.Sell, Quantity: 3000, Price: 150})
		},
	})

	require.NoError(t, fx.loop.Run(t.Context()))

	positions, err := fx.engine.OpenPositions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, [][]broker.TradeIntent{
		{{Symbol: "USD/JPY", Direction: broker.Buy, Quantity: 3000}},
	}, fx.engine.Submissions())
}

func TestRunCancelled(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{symbols: []string{"EUR/USD"}, open: time.Hour})
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	assert.ErrorIs(t, fx.loop.Run(ctx), context.Canceled)
}

func TestEmergencyClose(t *testing.T) {
	t.Parallel()

	fx := newFixture(t, fixtureOpts{
		symbols: []string{"EUR/USD", "USD/JPY"},
		open:    time.Hour,
		setup: func(e *sim.Engine) {
			e.SetPosition(broker.Position{Symbol: "EUR/USD", Direction: broker.Buy, Quantity: 1000, Price: 1.1})
			e.SetPosition(broker.Position{Symbol: "USD/JPY", Direction: broker.Sell, Quantity: 2000, Price: 150})
		},
	})

	require.NoError(t, fx.loop.EmergencyClose(t.Context()))

	positions, err := fx.engine.OpenPositions(t.Context())
	require.NoError(t, err)
	assert.Empty(t, positions)
	assert.Equal(t, [][]broker.TradeIntent{{
		{Symbol: "EUR/USD", Direction: broker.Sell, Quantity: 1000},
		{Symbol: "USD/JPY", Direction: broker.Buy, Quantity: 2000},
	}}, fx.engine.Submissions())

	_, err = os.Stat(fx.store.ReportPath())
	assert.NoError(t, err)
}
