package cmd

import (
	"errors"
	"fmt"
	"os"

	"fleetsync/internal/assembler"
	"fleetsync/internal/config"
	"fleetsync/internal/dependency"
	"fleetsync/internal/fragment"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
// These follow common conventions so the tool composes well in CI.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeDefinition indicates the definition failed to parse, validate
	// or resolve. Nothing was sent to the remote deployment.
	ExitCodeDefinition = 2
	// ExitCodeRemoteFailed indicates the run finished but one or more
	// remote operations failed or were skipped because of a failure.
	ExitCodeRemoteFailed = 3
)

// rootCmd represents the base command for the fleetsync application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "fleetsync",
	Short: "Reconcile Elastic Fleet deployments from a declarative definition",
	Long: `fleetsync keeps an Elastic Fleet deployment in sync with a declarative
state directory: component templates, ingest pipelines and agent policies
assembled from reusable integration fragments.

It only ever creates or updates objects. Anything removed from the
definition is left untouched remotely.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// It initializes and executes the root command, which in turn handles subcommands and flags.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "fleetsync version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		exitCode := getExitCode(err)
		os.Exit(exitCode)
	}
}

// ReconcileFailedError is returned when a run completed but recorded
// failed operations. The report has already been rendered by then; the
// error only carries the exit semantics.
type ReconcileFailedError struct {
	Failed int
}

func (e *ReconcileFailedError) Error() string {
	if e.Failed == 1 {
		return "1 operation failed"
	}
	return fmt.Sprintf("%d operations failed", e.Failed)
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	var parseErr *config.ParseError
	if errors.As(err, &parseErr) {
		return ExitCodeDefinition
	}

	var validationErr *config.ValidationError
	if errors.As(err, &validationErr) {
		return ExitCodeDefinition
	}

	var unresolvedErr *dependency.UnresolvedDependencyError
	if errors.As(err, &unresolvedErr) {
		return ExitCodeDefinition
	}

	var unknownBundleErr *dependency.UnknownBundleReferenceError
	if errors.As(err, &unknownBundleErr) {
		return ExitCodeDefinition
	}

	var duplicateErr *assembler.DuplicateIntegrationError
	if errors.As(err, &duplicateErr) {
		return ExitCodeDefinition
	}

	var fragmentErr *fragment.NotFoundError
	if errors.As(err, &fragmentErr) {
		return ExitCodeDefinition
	}

	var failedErr *ReconcileFailedError
	if errors.As(err, &failedErr) {
		return ExitCodeRemoteFailed
	}

	// Default to general error
	return ExitCodeError
}

// init registers all subcommands on the root command.
func init() {
	rootCmd.AddCommand(newApplyCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newDiscoverCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
