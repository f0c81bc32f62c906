// Package cli wires the squealogd command surface: flag and environment
// resolution, diagnostics logging, inventory discovery and the daemon
// run loop.
package cli

import (
	"github.com/spf13/cobra"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the squealogd CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "squealogd",
		Short: "Single-host syslog ingestion daemon",
		Long: `squealogd ingests syslog datagrams from socket-activated sockets and
the platform kernel log device, normalizes them into structured records,
and persists them to a self-pruning SQLite database.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}
