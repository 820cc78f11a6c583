package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/fxtrader/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Generate or validate the settings file",
	Long: `Manage the settings file that lists the traded symbols, order size,
bar interval and London session hours.

Subcommands:
  init     - Generate a default settings file
  validate - Validate an existing settings file

Examples:
  fxtrader config init --output settings.json
  fxtrader config validate settings.json`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate a default settings file",
	Long: `Create a new settings file with default values. Usernames and the API
key are left empty; fill them in or set FX_USERNAME, FX_PAPER_USERNAME and
FX_API_KEY.

Example:
  fxtrader config init --output settings.json`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a settings file",
	Long: `Check that a settings file loads and validates. Without an argument the
file named by --config is checked.

Example:
  fxtrader config validate settings.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigValidate,
}

var configInitOutput string

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)

	configInitCmd.Flags().StringVarP(&configInitOutput, "output", "o", config.DefaultPath, "output settings file path")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	if err := config.Default().SaveToFile(configInitOutput); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Created default settings: %s\n", configInitOutput)
	fmt.Fprintln(out, "\nAdd your usernames and API key, then run:")
	fmt.Fprintf(out, "  fxtrader run --config %s\n", configInitOutput)
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path := settingsPath
	if len(args) == 1 {
		path = args[0]
	}
	s, err := config.Load(path)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "✓ Settings valid: %s\n", path)
	fmt.Fprintf(out, "  Symbols: %s\n", strings.Join(s.Positions, ", "))
	fmt.Fprintf(out, "  Order size: %d\n", s.OrderSize)
	fmt.Fprintf(out, "  Bars: %s %d x %d\n", s.UpdateInterval, s.UpdateSpan, s.NumDataPoints)
	fmt.Fprintf(out, "  London session: %02d:00-%02d:00\n", s.StartHour, s.EndHour)
	if _, err := s.UsernameFor(opts.Account); err != nil {
		fmt.Fprintf(out, "  Warning: %v\n", err)
	}
	return nil
}
