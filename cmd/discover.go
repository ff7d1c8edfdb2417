package cmd

import (
	"fmt"
	"os"
	"time"

	"fleetsync/internal/discover"
	"fleetsync/internal/elastic"
	"fleetsync/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// newDiscoverCmd creates the Cobra command that exports live deployment
// state into the declarative layout.
func newDiscoverCmd() *cobra.Command {
	var (
		kibanaURL string
		esURL     string
		outputDir string
		debug     bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Export the live deployment state into a state directory",
		Long: `Dumps every non-managed component template and ingest pipeline, extracts
deduplicated integration fragments from the live agent policies and
generates a fleet_definition.yaml tying it all together.

The export is a starting point for managing an existing deployment as
code: review and edit it before the first apply. Policies carrying the
same set of integrations collapse into one definition, with the enrolled
agent hostnames recorded informationally under _discovered_agents.

Examples:
  fleetsync discover --url https://my-deployment.kb.gcp.cloud.es.io
  fleetsync discover --url https://kibana.internal --output-dir ./fleet_state`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := logging.LevelInfo
			if debug {
				level = logging.LevelDebug
			}
			logging.Init(level, os.Stderr)

			apiKey := os.Getenv(apiKeyEnvVar)
			if apiKey == "" {
				return fmt.Errorf("%s environment variable is not set", apiKeyEnvVar)
			}

			client, err := elastic.NewHTTPClient(elastic.Config{
				KibanaURL:        kibanaURL,
				ElasticsearchURL: esURL,
				APIKey:           apiKey,
			})
			if err != nil {
				return err
			}

			var s *spinner.Spinner
			if !quiet {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
				s.Suffix = fmt.Sprintf(" Discovering state of %s...", kibanaURL)
				s.Start()
			}

			result, err := discover.New(client).Run(cmd.Context(), outputDir)

			if s != nil {
				s.Stop()
			}
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Exported %d component templates, %d ingest pipelines, %d fragments and %d policies (%d agents) to %s\n",
				result.ComponentTemplates, result.IngestPipelines, result.Fragments,
				result.Policies, result.Agents, outputDir)
			fmt.Fprintf(cmd.OutOrStdout(), "Review %s before the first apply.\n", result.DefinitionPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&kibanaURL, "url", "", "Base URL of the Kibana instance (required)")
	cmd.Flags().StringVar(&esURL, "es-url", "", "Base URL of the Elasticsearch instance (derived from --url when omitted)")
	cmd.Flags().StringVar(&outputDir, "output-dir", "fleet_state_discovered", "Directory to write the exported state into")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable verbose logging")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Suppress the progress spinner")
	cmd.MarkFlagRequired("url")
	return cmd
}
