package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the fxtrader CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fxtrader version %s\n", version)
		fmt.Fprintln(cmd.OutOrStdout(), "Automated forex position manager")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
