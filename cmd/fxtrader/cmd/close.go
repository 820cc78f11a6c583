package cmd

import (
	"github.com/spf13/cobra"
)

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close every open position now",
	Long: `Log in, close every open position on the account with market orders and
write the report. Orders are submitted whether or not --place-trades is
set anywhere else.

Example:
  fxtrader close --account LIVE`,
	Args: cobra.NoArgs,
	RunE: runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) error {
	a, err := newApp(opts, settingsPath)
	if err != nil {
		return err
	}
	defer a.Close()

	a.log.Warn("emergency close requested")
	return a.exitStatus(a.loop.EmergencyClose(cmd.Context()))
}
