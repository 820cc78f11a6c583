package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trade the London session",
	Long: `Wait for the London session to open, then trade one bar at a time until
the market closes, the failure budget is spent or the process is
interrupted.

Without --place-trades the wanted orders are only logged. The daily report
and active management files are written to --dir; set "Close Immediately"
or "Close On Trade Signal Change" for a symbol in the active management
file to wind it down during the day.

Examples:
  fxtrader run --account PAPER --place-trades
  fxtrader run --simulate --testing --place-trades --db fxtrader.sqlite`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	f := runCmd.Flags()
	f.BoolVarP(&opts.PlaceTrades, "place-trades", "p", false, "submit orders to the broker")
	f.IntVarP(&opts.MaxRetryFailures, "max-retry-failures", "m", opts.MaxRetryFailures, "failed bars tolerated before a symbol or the run is stopped")
	f.BoolVar(&opts.Testing, "testing", false, "open a short session starting now")
	f.StringVarP(&opts.Strategy, "strategy", "s", opts.Strategy, "signal source: random, flat, ema-cross or ema-cross-adx")
	f.StringVar(&opts.Calendar, "calendar", "", "YAML holiday calendar replacing the built in one")
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(opts, settingsPath)
	if err != nil {
		return err
	}
	defer a.Close()

	return a.exitStatus(trade(ctx, a))
}

func trade(ctx context.Context, a *app) error {
	if err := a.loop.Start(ctx); err != nil {
		return err
	}
	return a.loop.Run(ctx)
}
