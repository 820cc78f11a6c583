// Package pricing refreshes the rolling OHLC windows of the trading
// universe once per bar.
package pricing

import (
	"context"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/fxerr"
	"github.com/rustyeddy/fxtrader/market"
	"github.com/rustyeddy/fxtrader/session"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultPause   = 1500 * time.Millisecond
)

// Source serves bar history. broker.Broker satisfies it.
type Source interface {
	OHLC(ctx context.Context, symbols []string, interval string, count, span int) (map[string][]market.Bar, error)
}

// Result sorts the requested symbols by outcome. Every requested symbol
// appears in exactly one of Executable, Failed and DataShort.
type Result struct {
	// Executable symbols have a fresh window of the configured size.
	Executable []string
	// Failed symbols returned nothing usable in time or a stale bar.
	Failed []string
	// DataShort symbols were current but had too few bars.
	DataShort []string
	// LastBar is the newest bar timestamp agreed on, or 0 when no symbol
	// completed.
	LastBar int64
}

type Fetcher struct {
	src      Source
	interval string
	span     int
	count    int

	timeout time.Duration
	pause   time.Duration
	now     func() time.Time
	sleep   session.Sleeper
	log     *zap.Logger
}

type Option func(*Fetcher)

func WithClock(now func() time.Time) Option { return func(f *Fetcher) { f.now = now } }

func WithSleeper(s session.Sleeper) Option { return func(f *Fetcher) { f.sleep = s } }

func WithLogger(l *zap.Logger) Option { return func(f *Fetcher) { f.log = l } }

// WithTimeout bounds how long one Fetch keeps retrying pending symbols.
func WithTimeout(d time.Duration) Option { return func(f *Fetcher) { f.timeout = d } }

// WithPause sets the sleep between retries.
func WithPause(d time.Duration) Option { return func(f *Fetcher) { f.pause = d } }

// New returns a fetcher for count bars of interval/span.
func New(src Source, interval string, span, count int, opts ...Option) (*Fetcher, error) {
	if _, err := session.ValidateInterval(interval, span); err != nil {
		return nil, err
	}
	if count <= 0 {
		return nil, fxerr.Errorf("pricing.New", fxerr.Config, "bar count must be positive, got %d", count)
	}
	f := &Fetcher{
		src:      src,
		interval: interval,
		span:     span,
		count:    count,
		timeout:  DefaultTimeout,
		pause:    DefaultPause,
		now:      time.Now,
		sleep:    session.Sleep,
		log:      zap.NewNop(),
	}
	for _, o := range opts {
		o(f)
	}
	f.log = f.log.With(zap.String("component", "pricing"))
	return f, nil
}

// Fetch requests bars for symbols until each one's newest bar is at or past
// nextBar, or the timeout passes. Symbols that finish on an older bar than
// the rest are demoted to Failed. Surviving symbols with enough bars have
// their window in u replaced.
//
// The returned error is non-nil only when the context ends or when no
// symbol completed and the broker itself reported an error.
func (f *Fetcher) Fetch(ctx context.Context, u *market.Universe, symbols []string, nextBar int64) (Result, error) {
	const op = "pricing.Fetch"

	pending := slices.Clone(symbols)
	stamps := make(map[string]int64, len(symbols))
	bars := make(map[string][]market.Bar, len(symbols))
	var lastErr error

	start := f.now()
	for attempt := 1; ; attempt++ {
		data, err := f.src.OHLC(ctx, pending, f.interval, f.count, f.span)
		if err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			lastErr = err
			f.log.Warn("bar history request failed", zap.Int("attempt", attempt), zap.Error(err))
		}

		var still []string
		for _, s := range pending {
			ts, ok := newest(data[s])
			if !ok || ts < nextBar {
				still = append(still, s)
				continue
			}
			stamps[s] = ts
			bars[s] = data[s]
		}
		pending = still

		if len(pending) == 0 || f.now().Sub(start) > f.timeout {
			break
		}
		if err := f.sleep(ctx, f.pause); err != nil {
			return Result{}, err
		}
	}

	var res Result
	for _, ts := range stamps {
		res.LastBar = max(res.LastBar, ts)
	}

	for _, s := range symbols {
		ts, ok := stamps[s]
		switch {
		case !ok:
			res.Failed = append(res.Failed, s)
		case ts != res.LastBar:
			f.log.Warn("stale bar, will retry", zap.String("symbol", s),
				zap.Int64("bar", ts), zap.Int64("expected", res.LastBar))
			res.Failed = append(res.Failed, s)
		case len(bars[s]) < f.count:
			f.log.Warn("data acquisition error, history too short", zap.String("symbol", s),
				zap.Int("bars", len(bars[s])), zap.Int("need", f.count))
			res.DataShort = append(res.DataShort, s)
		default:
			h := u.History(s)
			if h == nil {
				res.Failed = append(res.Failed, s)
				continue
			}
			if err := h.Load(bars[s]); err != nil {
				f.log.Warn("bar history unusable", zap.String("symbol", s), zap.Error(err))
				res.Failed = append(res.Failed, s)
				continue
			}
			res.Executable = append(res.Executable, s)
		}
	}

	for _, s := range res.Failed {
		f.log.Error("price data update failure, will retry after trades are placed", zap.String("symbol", s))
	}

	if len(stamps) == 0 && lastErr != nil {
		return res, fxerr.E(op, fxerr.DataAcquisition, lastErr)
	}
	return res, nil
}

// newest returns the timestamp of the last bar.
func newest(bars []market.Bar) (int64, bool) {
	if len(bars) == 0 {
		return 0, false
	}
	ts, err := bars[len(bars)-1].Time()
	if err != nil {
		return 0, false
	}
	return ts, true
}
