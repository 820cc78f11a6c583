package cmd

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/broker"
	"github.com/rustyeddy/fxtrader/broker/gaincapital"
	"github.com/rustyeddy/fxtrader/broker/sim"
	"github.com/rustyeddy/fxtrader/config"
	"github.com/rustyeddy/fxtrader/control"
	"github.com/rustyeddy/fxtrader/credentials"
	"github.com/rustyeddy/fxtrader/execution"
	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/internal/id"
	"github.com/rustyeddy/fxtrader/internal/logging"
	"github.com/rustyeddy/fxtrader/journal"
	"github.com/rustyeddy/fxtrader/market"
	"github.com/rustyeddy/fxtrader/pricing"
	"github.com/rustyeddy/fxtrader/risk"
	"github.com/rustyeddy/fxtrader/session"
	"github.com/rustyeddy/fxtrader/strategy"
)

// app is one fully wired run.
type app struct {
	runID   string
	log     *zap.Logger
	clock   *session.Clock
	broker  broker.Broker
	journal journal.Journal
	loop    *control.Loop
}

func newLogger(o config.Options) (*zap.Logger, error) {
	log, err := logging.New(logging.Options{Level: o.LogLevel, FileLogging: o.FileLogging, Dir: o.Dir})
	if err != nil {
		return nil, fxerr.E("cmd.newLogger", fxerr.Config, err)
	}
	return log, nil
}

func newApp(o config.Options, path string) (*app, error) {
	const op = "cmd.newApp"

	log, err := newLogger(o)
	if err != nil {
		return nil, err
	}
	a := &app{runID: id.New()}
	a.log = log.With(zap.String("run", a.runID))

	s, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	cal := session.DefaultCalendar()
	if o.Calendar != "" {
		if cal, err = session.LoadCalendar(o.Calendar); err != nil {
			return nil, fxerr.E(op, fxerr.Config, err)
		}
	}
	a.clock, err = session.New(s.StartHour, s.EndHour, s.BarInterval(),
		session.WithCalendar(cal), session.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	if o.Testing {
		a.clock.EnableTestingMode()
	}

	if a.broker, err = newBroker(o, s, a.clock.Now, a.log); err != nil {
		return nil, err
	}

	src, err := strategy.ByName(o.Strategy)
	if err != nil {
		return nil, fxerr.E(op, fxerr.Config, err)
	}

	universe := market.NewUniverse(s.Positions, s.NumDataPoints)
	mult := risk.NewMultipliers(s.Positions)
	fetcher, err := pricing.New(a.broker, s.UpdateInterval, s.UpdateSpan, s.NumDataPoints,
		pricing.WithClock(a.clock.Now), pricing.WithLogger(a.log))
	if err != nil {
		return nil, err
	}
	exec := execution.New(a.broker, mult,
		execution.WithPlaceTrades(o.PlaceTrades), execution.WithLogger(a.log))

	a.journal = journal.Nop{}
	if o.DB != "" {
		if a.journal, err = journal.NewSQLite(o.DB); err != nil {
			return nil, err
		}
	}

	a.loop, err = control.New(control.Config{
		Clock:            a.clock,
		Broker:           a.broker,
		Fetcher:          fetcher,
		Executor:         exec,
		Signals:          src,
		Universe:         universe,
		Multipliers:      mult,
		Store:            journal.NewStore(o.Dir, journal.WithClock(a.clock.Now), journal.WithLogger(a.log)),
		Journal:          a.journal,
		Logger:           a.log,
		OrderSize:        s.OrderSize,
		MaxRetryFailures: o.MaxRetryFailures,
		RunID:            a.runID,
	})
	if err != nil {
		_ = a.journal.Close()
		return nil, err
	}

	a.log.Info("configured",
		zap.String("account", string(o.Account)),
		zap.Bool("place_trades", o.PlaceTrades),
		zap.Bool("simulate", o.Simulate),
		zap.String("strategy", o.Strategy),
		zap.Strings("symbols", s.Positions),
		zap.Duration("bar", s.BarInterval()))
	return a, nil
}

// newBroker returns the simulated broker, or logs into the real one with
// the keychain password for the chosen account.
func newBroker(o config.Options, s *config.Settings, now func() time.Time, log *zap.Logger) (broker.Broker, error) {
	if o.Simulate {
		return sim.NewEngine(sim.WithClock(now), sim.WithLogger(log)), nil
	}
	username, err := s.UsernameFor(o.Account)
	if err != nil {
		return nil, err
	}
	password, err := credentials.New(o.Account, credentials.WithLogger(log)).Password(username)
	if err != nil {
		return nil, err
	}
	return gaincapital.New(gaincapital.Config{
		Username: username,
		Password: password,
		AppKey:   s.APIKey,
		Logger:   log,
	}), nil
}

func (a *app) Close() error {
	err := a.journal.Close()
	// stderr cannot always be synced
	_ = a.log.Sync()
	return err
}

// exitStatus logs how the run ended. A cancelled run is not an error.
func (a *app) exitStatus(err error) error {
	switch {
	case err == nil:
		a.log.Info("finished")
		return nil
	case errors.Is(err, context.Canceled):
		a.log.Warn("interrupted")
		return nil
	default:
		a.log.Error("stopped", zap.String("kind", fxerr.KindOf(err).String()), zap.Error(err))
		return err
	}
}
