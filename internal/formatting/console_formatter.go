package formatting

import (
	"fmt"
	"strings"

	"fleetsync/internal/reconciler"
)

// ConsoleFormatter provides plain console output without tables or
// colors, suitable for logs and narrow terminals.
type ConsoleFormatter struct {
	options Options
}

// NewConsoleFormatter creates a new console formatter
func NewConsoleFormatter(options Options) Formatter {
	return &ConsoleFormatter{
		options: options,
	}
}

// FormatReport renders the report as one line per operation.
func (f *ConsoleFormatter) FormatReport(report *reconciler.Report) (string, error) {
	var out strings.Builder

	for _, op := range report.Operations {
		fmt.Fprintf(&out, "%-8s %s/%s", op.Outcome, op.Kind, op.Name)
		if op.Reason != "" {
			fmt.Fprintf(&out, ": %s", op.Reason)
		}
		out.WriteString("\n")
	}

	counts := report.Counts()
	status := "ok"
	if report.Failed() {
		status = "failed"
	}
	fmt.Fprintf(&out, "%s run %s %s: %d operations (%d failed) in %s\n",
		report.Mode, report.RunID, status, len(report.Operations),
		counts[reconciler.OutcomeFailed], report.Duration.Round(timeRounding))
	return out.String(), nil
}

// SetOptions updates the formatter options
func (f *ConsoleFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *ConsoleFormatter) GetOptions() Options {
	return f.options
}
