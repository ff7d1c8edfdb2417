package cmd

import (
	"fmt"

	"fleetsync/internal/reconciler"
	"fleetsync/pkg/logging"

	"github.com/spf13/cobra"
)

// planWatch re-runs the plan whenever the state directory changes.
var planWatch bool

// newPlanCmd creates the Cobra command that renders pending changes
// without executing any write.
func newPlanCmd() *cobra.Command {
	flags := &syncFlags{}

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what apply would change, without changing anything",
		Long: `Performs the same reads and comparisons as apply but issues no writes:
every pending create or update is rendered as "planned" instead of being
executed.

With --watch the plan re-runs whenever the definition file or any asset
file in the state directory changes, which gives a live preview while
editing the definition.

Examples:
  fleetsync plan --url https://my-deployment.kb.gcp.cloud.es.io -s ./fleet_state
  fleetsync plan --url https://kibana.internal --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags.initLogging()

			client, err := newElasticClient(flags)
			if err != nil {
				return err
			}

			if !planWatch {
				return runSync(cmd.Context(), cmd, flags, client, reconciler.ModePlan)
			}

			// Watch mode: a failed pass is reported and watched through,
			// never fatal, so editing the definition out of a bad state
			// is possible without restarting.
			if err := runSync(cmd.Context(), cmd, flags, client, reconciler.ModePlan); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "plan failed: %v\n", err)
			}

			watcher := reconciler.NewDefinitionWatcher(flags.stateDir, 0)
			changes := make(chan struct{}, 1)
			if err := watcher.Start(cmd.Context(), changes); err != nil {
				return fmt.Errorf("failed to watch %s: %w", flags.stateDir, err)
			}
			defer watcher.Stop()

			logging.Info("DefinitionWatcher", "Watching %s for changes, Ctrl+C to stop", flags.stateDir)
			for {
				select {
				case <-cmd.Context().Done():
					return nil
				case <-changes:
					if err := runSync(cmd.Context(), cmd, flags, client, reconciler.ModePlan); err != nil {
						fmt.Fprintf(cmd.ErrOrStderr(), "plan failed: %v\n", err)
					}
				}
			}
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVarP(&planWatch, "watch", "w", false, "Re-run the plan when the state directory changes")
	return cmd
}
