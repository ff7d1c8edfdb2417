package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newValidateCmd creates the Cobra command that checks a state directory
// without touching the remote deployment.
func newValidateCmd() *cobra.Command {
	var stateDir string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the state directory without any remote call",
		Long: `Parses the definition, resolves every dependency reference and assembles
every policy from its fragments. This catches malformed YAML, unknown
bundle references, undeclared pipeline dependencies, missing fragment
files and duplicate integrations before anything reaches the deployment.

Exits with code ` + fmt.Sprint(ExitCodeDefinition) + ` on any definition problem.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, plan, input, err := loadDesiredState(stateDir)
			if err != nil {
				return err
			}

			// Assembly errors are tolerated at load time because a live
			// run keeps going without the broken policy; for validate
			// they are the whole point.
			for _, name := range plan.Policies {
				if asmErr, ok := input.AssemblyErrors[name]; ok {
					return asmErr
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"OK: %d component templates, %d ingest pipelines, %d integration bundles, %d policies\n",
				len(plan.ComponentTemplates), len(plan.IngestPipelines),
				len(def.IntegrationDefinitions), len(plan.Policies))
			return nil
		},
	}

	cmd.Flags().StringVarP(&stateDir, "state-dir", "s", ".", "Directory containing fleet_definition.yaml and asset files")
	return cmd
}
