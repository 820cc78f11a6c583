package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxtrader/config"
)

var rootCmd = &cobra.Command{
	Use:   "fxtrader",
	Short: "Automated forex position manager",
	Long: `fxtrader keeps a basket of currency pairs positioned the way a trading
signal asks, one price bar at a time, during the London session.

Each bar it refreshes price history, scores every symbol, compares the
wanted positions with the broker's and places the difference as market
orders. Symbols that stop updating or keep failing are dropped for the
rest of the day, and every position is closed before the session ends.

Examples:
  fxtrader config init
  fxtrader run --account PAPER --place-trades
  fxtrader run --simulate --testing --strategy ema-cross
  fxtrader close --account LIVE`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: parseOptions,
}

var (
	opts         = config.DefaultOptions()
	settingsPath string
	accountFlag  string
)

// Execute runs the command line and prints any error as op: kind: message.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	return err
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&settingsPath, "config", "c", config.DefaultPath, "path to the settings file (JSON or YAML)")
	pf.StringVarP(&accountFlag, "account", "a", string(config.Paper), "account to trade: PAPER or LIVE")
	pf.StringVarP(&opts.Dir, "dir", "d", opts.Dir, "directory for the daily log, report and override files")
	pf.StringVar(&opts.DB, "db", "", "optional SQLite journal of equity and positions")
	pf.BoolVar(&opts.Simulate, "simulate", false, "trade against the in-memory simulated broker")
	pf.BoolVarP(&opts.FileLogging, "file-logging", "f", false, "also write logs to the daily log file")
	pf.StringVar(&opts.LogLevel, "log-level", opts.LogLevel, "debug, info, warn or error")
}

func parseOptions(cmd *cobra.Command, args []string) error {
	a, err := config.ParseAccount(accountFlag)
	if err != nil {
		return err
	}
	opts.Account = a
	return opts.Validate()
}
