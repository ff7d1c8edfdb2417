package formatting

import (
	"fmt"
	"strings"

	"fleetsync/internal/reconciler"
	pkgstrings "fleetsync/pkg/strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// reasonMaxLen keeps failure reasons from blowing up the table width.
const reasonMaxLen = 80

// TableFormatter provides rich table output formatting
type TableFormatter struct {
	options Options
}

// NewTableFormatter creates a new table formatter
func NewTableFormatter(options Options) Formatter {
	return &TableFormatter{
		options: options,
	}
}

// FormatReport renders the report as one table, operations in plan
// order, followed by a summary line.
func (f *TableFormatter) FormatReport(report *reconciler.Report) (string, error) {
	var out strings.Builder

	t := f.createTable()
	t.AppendHeader(table.Row{
		f.header("PHASE"),
		f.header("KIND"),
		f.header("NAME"),
		f.header("ACTION"),
		f.header("RESULT"),
		f.header("REASON"),
	})

	for _, op := range report.Operations {
		reason := pkgstrings.TruncateDescription(op.Reason, reasonMaxLen)
		t.AppendRow(table.Row{
			op.Phase.String(),
			string(op.Kind),
			op.Name,
			string(op.Action),
			f.outcome(op.Outcome),
			reason,
		})
	}

	out.WriteString(t.Render())
	out.WriteString("\n")
	out.WriteString(f.summaryLine(report))
	out.WriteString("\n")
	return out.String(), nil
}

// SetOptions updates the formatter options
func (f *TableFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *TableFormatter) GetOptions() Options {
	return f.options
}

// Helper methods

// createTable creates a new table with standard styling
func (f *TableFormatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	return t
}

func (f *TableFormatter) header(s string) string {
	if !f.options.Color {
		return s
	}
	return text.FgHiCyan.Sprint(s)
}

// outcome colors a result cell: green for changes applied, yellow for
// skips, red for failures.
func (f *TableFormatter) outcome(o reconciler.Outcome) string {
	s := string(o)
	if !f.options.Color {
		return s
	}
	switch o {
	case reconciler.OutcomeCreated, reconciler.OutcomeUpdated:
		return text.FgGreen.Sprint(s)
	case reconciler.OutcomePlanned:
		return text.FgHiBlue.Sprint(s)
	case reconciler.OutcomeSkipped:
		return text.FgYellow.Sprint(s)
	case reconciler.OutcomeFailed:
		return text.FgRed.Sprint(s)
	default:
		return s
	}
}

func (f *TableFormatter) summaryLine(report *reconciler.Report) string {
	counts := report.Counts()
	parts := make([]string, 0, 6)
	for _, outcome := range []reconciler.Outcome{
		reconciler.OutcomeNoOp,
		reconciler.OutcomeCreated,
		reconciler.OutcomeUpdated,
		reconciler.OutcomePlanned,
		reconciler.OutcomeSkipped,
		reconciler.OutcomeFailed,
	} {
		if counts[outcome] == 0 {
			continue
		}
		parts = append(parts, fmt.Sprintf("%d %s", counts[outcome], outcome))
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}

	status := "OK"
	if report.Failed() {
		status = "FAILED"
	}
	if f.options.Color {
		if report.Failed() {
			status = text.FgRed.Sprint(status)
		} else {
			status = text.FgGreen.Sprint(status)
		}
	}
	return fmt.Sprintf("%s run %s: %s (%s, %s)",
		report.Mode, report.RunID, status, strings.Join(parts, ", "), report.Duration.Round(timeRounding))
}
