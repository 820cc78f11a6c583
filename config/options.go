package config

import (
	"fmt"

	"github.com/rustyeddy/fxtrader/fxerr"
)

// Options are the per-run switches taken from the command line.
type Options struct {
	Account          Account
	PlaceTrades      bool
	MaxRetryFailures int
	FileLogging      bool
	LogLevel         string

	// Dir receives the daily log, report and override files.
	Dir string
	// DB is an optional SQLite journal path.
	DB string

	Simulate bool
	Testing  bool
	Strategy string
	Calendar string
}

// DefaultOptions matches the flag defaults.
func DefaultOptions() Options {
	return Options{
		Account:          Paper,
		MaxRetryFailures: 3,
		LogLevel:         "info",
		Dir:              ".",
		Strategy:         "random",
	}
}

func (o Options) Validate() error {
	const op = "config.Options"

	if _, err := ParseAccount(string(o.Account)); err != nil {
		return err
	}
	if o.MaxRetryFailures < 0 {
		return fxerr.Errorf(op, fxerr.Config, "max retry failures must not be negative, got %d", o.MaxRetryFailures)
	}
	if o.Dir == "" {
		return fxerr.E(op, fxerr.Config, fmt.Errorf("output directory is required"))
	}
	return nil
}
