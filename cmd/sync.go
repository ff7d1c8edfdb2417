package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleetsync/internal/assembler"
	"fleetsync/internal/config"
	"fleetsync/internal/dependency"
	"fleetsync/internal/elastic"
	"fleetsync/internal/formatting"
	"fleetsync/internal/fragment"
	"fleetsync/internal/reconciler"
	"fleetsync/pkg/logging"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
)

// apiKeyEnvVar names the environment variable carrying the Elastic API
// key used against both Kibana and Elasticsearch.
const apiKeyEnvVar = "ELASTIC_API_KEY"

// syncFlags are the flags shared by apply and plan.
type syncFlags struct {
	stateDir     string
	kibanaURL    string
	esURL        string
	outputFormat string
	noColor      bool
	debug        bool
	quiet        bool
}

// register adds the shared flags to a command.
func (f *syncFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.stateDir, "state-dir", "s", ".", "Directory containing fleet_definition.yaml and asset files")
	cmd.Flags().StringVar(&f.kibanaURL, "url", "", "Base URL of the Kibana instance (required)")
	cmd.Flags().StringVar(&f.esURL, "es-url", "", "Base URL of the Elasticsearch instance (derived from --url when omitted)")
	cmd.Flags().StringVarP(&f.outputFormat, "output", "o", "table", "Output format (table, console, json, yaml)")
	cmd.Flags().BoolVar(&f.noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable verbose logging")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Suppress the progress spinner")
	cmd.MarkFlagRequired("url")
}

// initLogging configures the process-wide logger from the debug flag.
func (f *syncFlags) initLogging() {
	level := logging.LevelInfo
	if f.debug {
		level = logging.LevelDebug
	}
	logging.Init(level, os.Stderr)
}

// loadDesiredState parses, validates, resolves and assembles the local
// state directory. No remote call happens here; every error maps to the
// definition exit code.
func loadDesiredState(stateDir string) (*config.Definition, *dependency.Plan, reconciler.Input, error) {
	def, err := config.Load(stateDir)
	if err != nil {
		return nil, nil, reconciler.Input{}, err
	}

	plan, err := dependency.Resolve(def)
	if err != nil {
		return nil, nil, reconciler.Input{}, err
	}

	store := fragment.NewStore(filepath.Join(stateDir, config.FragmentsDirName), def.Vars)
	assembled := make(map[string]*assembler.AssembledPolicy, len(plan.Policies))
	assemblyErrs := make(map[string]error)
	for _, name := range plan.Policies {
		policy, err := assembler.Assemble(name, def, store)
		if err != nil {
			// Fatal for this policy only; the reconciler records it and
			// moves on.
			assemblyErrs[name] = err
			continue
		}
		assembled[name] = policy
	}

	input := reconciler.Input{
		Plan:           plan,
		Definition:     def,
		Templates:      fragment.NewStore(filepath.Join(stateDir, config.ComponentTemplatesDirName), def.Vars),
		Pipelines:      fragment.NewStore(filepath.Join(stateDir, config.PipelinesDirName), def.Vars),
		Assembled:      assembled,
		AssemblyErrors: assemblyErrs,
	}
	return def, plan, input, nil
}

// newElasticClient builds the HTTP client from flags and the API key
// environment variable.
func newElasticClient(flags *syncFlags) (elastic.Client, error) {
	apiKey := os.Getenv(apiKeyEnvVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable is not set", apiKeyEnvVar)
	}

	return elastic.NewHTTPClient(elastic.Config{
		KibanaURL:        flags.kibanaURL,
		ElasticsearchURL: flags.esURL,
		APIKey:           apiKey,
	})
}

// runSync executes one reconciliation pass in the given mode and renders
// the report. Returns *ReconcileFailedError when any operation failed.
func runSync(ctx context.Context, cmd *cobra.Command, flags *syncFlags, client elastic.Client, mode reconciler.Mode) error {
	_, _, input, err := loadDesiredState(flags.stateDir)
	if err != nil {
		return err
	}
	input.Mode = mode

	var s *spinner.Spinner
	if !flags.quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(cmd.ErrOrStderr()))
		s.Suffix = fmt.Sprintf(" Reconciling against %s...", flags.kibanaURL)
		s.Start()
	}

	report := reconciler.New(client).Run(ctx, input)

	if s != nil {
		s.Stop()
	}

	formatter := formatting.NewFactory().CreateFormatter(formatting.Options{
		Format: formatting.OutputFormat(flags.outputFormat),
		Color:  !flags.noColor,
	})
	rendered, err := formatter.FormatReport(report)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), rendered)

	if report.Failed() {
		return &ReconcileFailedError{Failed: report.Counts()[reconciler.OutcomeFailed]}
	}
	return nil
}
