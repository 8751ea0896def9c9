// Package cli wires ai-ext-proc's cobra command tree.
package cli

import (
	"github.com/spf13/cobra"
)

// Run parses args and executes the root command.
func Run(args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "ai-ext-proc",
		Short:         "Prompt-guard ext_proc sidecar",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(
		newServeCmd(),
		newValidateCmd(),
	)
	return cmd
}
