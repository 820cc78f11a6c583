package session

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

//go:embed calendar.yaml
var defaultCalendar []byte

// Calendar is static configuration: the weekdays the exchange trades and the
// dates it does not.
type Calendar struct {
	Weekdays []string `yaml:"weekdays"`
	Holidays []string `yaml:"holidays"`

	days     map[time.Weekday]bool
	holidays map[string]bool
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// DefaultCalendar returns the embedded Monday to Friday calendar.
func DefaultCalendar() *Calendar {
	c, err := ParseCalendar(defaultCalendar)
	if err != nil {
		panic(fmt.Sprintf("embedded calendar: %v", err))
	}
	return c
}

func LoadCalendar(path string) (*Calendar, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calendar: %w", err)
	}
	return ParseCalendar(b)
}

func ParseCalendar(b []byte) (*Calendar, error) {
	c := &Calendar{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse calendar: %w", err)
	}
	if err := c.index(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Calendar) index() error {
	if len(c.Weekdays) == 0 {
		return fmt.Errorf("calendar: no trading weekdays")
	}
	c.days = make(map[time.Weekday]bool, len(c.Weekdays))
	for _, name := range c.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return fmt.Errorf("calendar: unknown weekday %q", name)
		}
		c.days[wd] = true
	}

	c.holidays = make(map[string]bool, len(c.Holidays))
	for _, h := range c.Holidays {
		d, err := time.Parse(dateLayout, strings.TrimSpace(h))
		if err != nil {
			return fmt.Errorf("calendar: holiday %q: %w", h, err)
		}
		c.holidays[d.Format(dateLayout)] = true
	}
	return nil
}

func (c *Calendar) IsHoliday(day time.Time) bool {
	return c.holidays[day.Format(dateLayout)]
}

// Open reports whether the exchange trades on the given exchange date.
func (c *Calendar) Open(day time.Time) bool {
	return c.days[day.Weekday()] && !c.IsHoliday(day)
}
