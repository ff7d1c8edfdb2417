package cmd

import (
	"fleetsync/internal/reconciler"

	"github.com/spf13/cobra"
)

// newApplyCmd creates the Cobra command that reconciles the deployment.
func newApplyCmd() *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Reconcile the remote deployment with the local definition",
		Long: `Reads the state directory, compares every declared object against the
remote deployment and creates or updates whatever differs, in dependency
order: component templates first, then ingest pipelines, then agent
policies.

Objects already in the desired state are left alone, so running apply
twice in a row performs no writes on the second run. Objects that exist
remotely but are absent from the definition are never deleted.

The Elastic API key is read from the ` + apiKeyEnvVar + ` environment
variable.

Examples:
  fleetsync apply --url https://my-deployment.kb.gcp.cloud.es.io -s ./fleet_state
  fleetsync apply --url https://kibana.internal --es-url https://es.internal -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.initLogging()

			client, err := newElasticClient(flags)
			if err != nil {
				return err
			}
			return runSync(cmd.Context(), cmd, flags, client, reconciler.ModeApply)
		},
	}

	flags.register(cmd)
	return cmd
}
