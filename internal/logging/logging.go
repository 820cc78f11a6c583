// Package logging builds the zap logger used across the trader.
package logging

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Options struct {
	Level string // debug|info|warn|error

	// FileLogging adds <Dir>/YYYY_MM_DD_FX_Order_Management.log as an output.
	FileLogging bool
	Dir         string

	Now func() time.Time
}

// FileName returns the daily log file name for t.
func FileName(dir string, t time.Time) string {
	return filepath.Join(dir, t.Format("2006_01_02")+"_FX_Order_Management.log")
}

func New(opts Options) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(strings.TrimSpace(opts.Level))
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", opts.Level, err)
	}

	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(level)
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.TimeKey = "time"
	config.Sampling = nil

	if opts.FileLogging {
		now := opts.Now
		if now == nil {
			now = time.Now
		}
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		config.OutputPaths = append(config.OutputPaths, FileName(dir, now()))
	}

	return config.Build()
}
