package market

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Bar is one OHLC summary as the broker reports it. Date keeps the broker's
// "/Date(<epoch ms>)/" encoding until the bar is copied into a History.
type Bar struct {
	Date  string
	Open  float64
	High  float64
	Low   float64
	Close float64
}

// Time parses the bar's embedded date.
func (b Bar) Time() (int64, error) {
	return ParseBarDate(b.Date)
}

// ParseBarDate returns the epoch seconds embedded in a "/Date(ms)/" or
// "/Date(ms+zzzz)/" field.
func ParseBarDate(s string) (int64, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '(')
	if open < 0 {
		return 0, fmt.Errorf("bar date %q: missing '('", s)
	}
	rest := s[open+1:]

	end := 0
	if end < len(rest) && rest[end] == '-' {
		end++
	}
	for end < len(rest) && rest[end] >= '0' && rest[end] <= '9' {
		end++
	}
	ms, err := strconv.ParseInt(rest[:end], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("bar date %q: %w", s, err)
	}
	return ms / 1000, nil
}

// FormatBarDate encodes t the way the broker does.
func FormatBarDate(t time.Time) string {
	return fmt.Sprintf("/Date(%d)/", t.UnixMilli())
}
