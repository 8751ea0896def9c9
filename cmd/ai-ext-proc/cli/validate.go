package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cecil-the-coder/ai-provider-kit/pkg/kubeconfig"
)

func newValidateCmd() *cobra.Command {
	var policyPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and parse a policy config file without starting the sidecar",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := kubeconfig.NewFileLoader(policyPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", policyPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&policyPath, "policy-config", "policy.yaml", "path to the policy YAML file to validate")
	return cmd
}
