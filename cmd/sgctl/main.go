package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configFile string
	timezone   string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sgctl",
		Short:         "sgctl - SendGrid deliverability reports from the command line",
		Long:          `sgctl analyzes SendGrid activity exports offline and loads exports into the insights database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "config/config.yaml", "Path to configuration file")
	root.PersistentFlags().StringVar(&timezone, "tz", "", "Reporting timezone (defaults to the configured one)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "sgctl %s (built %s)\n", version, buildTime)
		},
	})
	root.AddCommand(newAnalyzeCmd())
	root.AddCommand(newImportCmd())
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
