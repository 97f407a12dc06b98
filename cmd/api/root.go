package main

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. Configuration comes from the
// environment only.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ecoms-account",
		Short:         "Customer account and session service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewMigrateCmd())
	cmd.AddCommand(NewPruneSessionsCmd())

	return cmd
}
