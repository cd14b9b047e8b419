// Package cmd wires the packet record ingestion path, the Conversation
// Tracker, the Statistics Engine, and the HTTP query surface into a
// runnable CLI: the "external producer" referred to throughout the
// engine packages' doc comments is whatever feeds capcore's stdin or
// --in file in the JSON-Lines format packet.Reader decodes.
package cmd

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/packetloom/capcore/printer"
	"github.com/packetloom/capcore/util"
)

var debugFlag bool
var verboseLevelFlag int

var rootCmd = &cobra.Command{
	Use:           "capcore",
	Short:         "Conversation tracking and traffic statistics over a packet record stream.",
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// Execute runs the CLI, exiting the process with the appropriate code on
// error. It's the single entry point main.go calls.
func Execute() {
	if cmd, err := rootCmd.ExecuteC(); err != nil {
		cmd.Println(cmd.UsageString())

		exitCode := 1
		var exitErr util.ExitError
		if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode
		}
		printer.Stderr.Errorf("%s\n", err)
		os.Exit(exitCode)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Output detailed debug logging.")
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))

	rootCmd.PersistentFlags().IntVarP(&verboseLevelFlag, "verbose", "v", 0, "Verbosity level for printer.V(n) tracing.")
	viper.BindPFlag("verbose-level", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(serveCmd)
}
