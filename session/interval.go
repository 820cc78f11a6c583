package session

import (
	"slices"
	"strings"

	"github.com/rustyeddy/fxtrader/fxerr"
)

const (
	Minute = "MINUTE"
	Hour   = "HOUR"
)

var (
	minuteSpans = []int{1, 2, 3, 5, 10, 15, 30}
	hourSpans   = []int{1, 2, 4, 8}
)

// ValidateInterval checks an interval/span pair against the bar sizes the
// broker serves and returns the bar length in seconds.
func ValidateInterval(interval string, span int) (int, error) {
	const op = "session.ValidateInterval"

	switch strings.ToUpper(strings.TrimSpace(interval)) {
	case Minute:
		if !slices.Contains(minuteSpans, span) {
			return 0, fxerr.Errorf(op, fxerr.Config, "minute span %d not one of %v", span, minuteSpans)
		}
		return 60 * span, nil
	case Hour:
		if !slices.Contains(hourSpans, span) {
			return 0, fxerr.Errorf(op, fxerr.Config, "hour span %d not one of %v", span, hourSpans)
		}
		return 3600 * span, nil
	default:
		return 0, fxerr.Errorf(op, fxerr.Config, "interval %q must be %s or %s", interval, Hour, Minute)
	}
}
