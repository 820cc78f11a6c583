// Package session knows when the exchange trades.
//
// Session hours are configured in exchange-local time (London) and converted
// to the local wall clock through a whole-hour timezone offset. The offset is
// re-derived every time the clock wakes from a wait, so a Daylight Saving
// change on either side shifts the session in place.
package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/rustyeddy/fxtrader/fxerr"
)

const (
	DefaultExchange = "Europe/London"

	// ExitOnlyLead is how long before the hard close only closing trades are
	// allowed.
	ExitOnlyLead = 2 * time.Minute

	testingBuffer = 150 * time.Second
)

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the wall-clock Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Window is one session in absolute time. End is always Close minus
// ExitOnlyLead.
type Window struct {
	Start time.Time
	End   time.Time
	Close time.Time
}

type Clock struct {
	// configured, exchange-local
	exchangeStart int
	exchangeEnd   int

	// local wall clock, after offset correction
	startHr     int
	endHr       int
	startDayAdj int
	endDayAdj   int
	offset      int
	synced      bool

	bar      time.Duration
	exchange string
	exchLoc  *time.Location
	local    *time.Location
	calendar *Calendar

	now   func() time.Time
	sleep Sleeper
	log   *zap.Logger

	window  Window
	testing bool
}

type Option func(*Clock)

func WithClock(now func() time.Time) Option { return func(c *Clock) { c.now = now } }

func WithSleeper(s Sleeper) Option { return func(c *Clock) { c.sleep = s } }

// WithLocation sets the local wall-clock zone. Defaults to time.Local.
func WithLocation(loc *time.Location) Option { return func(c *Clock) { c.local = loc } }

// WithExchange sets the IANA zone the session hours are expressed in.
func WithExchange(name string) Option { return func(c *Clock) { c.exchange = name } }

func WithCalendar(cal *Calendar) Option { return func(c *Clock) { c.calendar = cal } }

func WithLogger(l *zap.Logger) Option { return func(c *Clock) { c.log = l } }

// New validates the session hours and returns an unsynchronized clock.
func New(startHr, endHr int, bar time.Duration, opts ...Option) (*Clock, error) {
	const op = "session.New"

	if startHr < 0 || startHr > 24 || endHr < 0 || endHr > 24 {
		return nil, fxerr.Errorf(op, fxerr.Config, "session hours %d-%d: provide values between 0 and 24", startHr, endHr)
	}
	if endHr <= startHr {
		return nil, fxerr.Errorf(op, fxerr.Config, "end hour %d is not after start hour %d", endHr, startHr)
	}
	if bar <= 0 {
		return nil, fxerr.Errorf(op, fxerr.Config, "bar interval %s must be positive", bar)
	}

	c := &Clock{
		exchangeStart: startHr,
		exchangeEnd:   endHr,
		bar:           bar,
		exchange:      DefaultExchange,
		local:         time.Local,
		now:           time.Now,
		sleep:         Sleep,
		log:           zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.calendar == nil {
		c.calendar = DefaultCalendar()
	}
	c.log = c.log.With(zap.String("component", "session"))
	c.applyOffset(0)
	return c, nil
}

func (c *Clock) BarInterval() time.Duration { return c.bar }

func (c *Clock) Now() time.Time { return c.now() }

func (c *Clock) Window() Window { return c.window }

// DayAdjustments returns how many local days the session start and end sit
// away from the exchange date after offset correction.
func (c *Clock) DayAdjustments() (start, end int) { return c.startDayAdj, c.endDayAdj }

// TimezoneOffset returns local minus exchange UTC offset in whole hours at
// the current instant.
func (c *Clock) TimezoneOffset() (int, error) {
	if c.exchLoc == nil {
		loc, err := time.LoadLocation(c.exchange)
		if err != nil {
			return 0, fxerr.E("session.TimezoneOffset", fxerr.Scheduling, err)
		}
		c.exchLoc = loc
	}
	now := c.now()
	_, local := now.In(c.local).Zone()
	_, exch := now.In(c.exchLoc).Zone()
	return (local - exch) / 3600, nil
}

// Synchronize re-derives the timezone offset, corrects the local session
// hours by any change, and recomputes the window around now.
func (c *Clock) Synchronize() error {
	offset, err := c.TimezoneOffset()
	if err != nil {
		return err
	}
	if !c.synced || offset != c.offset {
		if c.synced {
			c.log.Info("timezone offset changed", zap.Int("from", c.offset), zap.Int("to", offset))
		}
		c.applyOffset(offset)
		c.synced = true
	}
	if !c.testing {
		_, c.window = c.sessionFor(c.now())
	}
	return nil
}

func (c *Clock) applyOffset(offset int) {
	c.offset = offset
	c.startHr, c.startDayAdj = splitDay(c.exchangeStart + offset)
	c.endHr, c.endDayAdj = splitDay(c.exchangeEnd + offset)
}

func splitDay(h int) (hour, dayAdj int) {
	dayAdj = h / 24
	if h < 0 && h%24 != 0 {
		dayAdj--
	}
	return h - dayAdj*24, dayAdj
}

// bounds returns the local session for exchange date day.
func (c *Clock) bounds(day time.Time, startDayAdj, endDayAdj int) Window {
	y, m, d := day.Date()
	start := time.Date(y, m, d+startDayAdj, c.startHr, 0, 0, 0, c.local)
	closeAt := time.Date(y, m, d+endDayAdj, c.endHr, 0, 0, 0, c.local)
	return Window{Start: start, End: closeAt.Add(-ExitOnlyLead), Close: closeAt}
}

// sessionFor returns the exchange date and window of the earliest session
// that has not closed at t.
func (c *Clock) sessionFor(t time.Time) (time.Time, Window) {
	return c.sessionForAdj(t, c.startDayAdj, c.endDayAdj)
}

func (c *Clock) sessionForAdj(t time.Time, startDayAdj, endDayAdj int) (time.Time, Window) {
	lt := t.In(c.local)
	y, m, d := lt.Date()
	for i := -1; ; i++ {
		day := time.Date(y, m, d+i, 0, 0, 0, 0, c.local)
		w := c.bounds(day, startDayAdj, endDayAdj)
		if w.Close.After(t) {
			return day, w
		}
	}
}

// SecondsUntilOpen is the signed distance from now to the start of the next
// session that has not yet closed. Negative means now is inside it.
func (c *Clock) SecondsUntilOpen(startDayAdj, endDayAdj int) int64 {
	now := c.now()
	_, w := c.sessionForAdj(now, startDayAdj, endDayAdj)
	return int64(w.Start.Sub(now) / time.Second)
}

// IsTradingDay reports whether a session starting on local date trades.
// The exchange date is the local date shifted back by startDayAdj.
func (c *Clock) IsTradingDay(date time.Time, startDayAdj int) bool {
	y, m, d := date.In(c.local).Date()
	return c.calendar.Open(time.Date(y, m, d-startDayAdj, 0, 0, 0, 0, time.UTC))
}

// AwaitSessionOpen blocks until a trading session is open. Each wake
// re-derives the offset and re-checks the calendar, stepping one session at
// a time over weekends and holidays.
func (c *Clock) AwaitSessionOpen(ctx context.Context) error {
	if c.testing {
		return nil
	}
	for {
		if err := c.Synchronize(); err != nil {
			return err
		}
		now := c.now()
		day, w := c.sessionFor(now)

		if c.IsTradingDay(w.Start, c.startDayAdj) {
			wait := w.Start.Sub(now)
			if wait <= 0 {
				c.window = w
				c.log.Info("session open",
					zap.Time("start", w.Start), zap.Time("end", w.End), zap.Time("close", w.Close))
				return nil
			}
			c.log.Info("waiting for session open", zap.Duration("wait", wait), zap.Time("start", w.Start))
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		next := c.bounds(day.AddDate(0, 0, 1), c.startDayAdj, c.endDayAdj)
		wait := next.Start.Sub(now)
		c.log.Info("market closed today, waiting for next session",
			zap.String("exchange_date", day.Format(dateLayout)), zap.Duration("wait", wait))
		if err := c.sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// IsMarketClosed reports whether the hard close has passed.
func (c *Clock) IsMarketClosed() bool {
	return !c.now().Before(c.window.Close)
}

// IsExitOnly reports whether now is outside [Start, End].
func (c *Clock) IsExitOnly() bool {
	now := c.now()
	return now.Before(c.window.Start) || now.After(c.window.End)
}

// EnableTestingMode replaces the session with a short window starting now
// that spans two bars plus a buffer. AwaitSessionOpen then returns at once.
func (c *Clock) EnableTestingMode() {
	now := c.now()
	closeAt := now.Add(2*c.bar + testingBuffer)
	c.testing = true
	c.window = Window{Start: now, End: closeAt.Add(-ExitOnlyLead), Close: closeAt}
	c.log.Info("testing mode", zap.Time("close", closeAt))
}
