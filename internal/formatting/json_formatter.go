package formatting

import (
	"encoding/json"
	"fmt"

	"fleetsync/internal/reconciler"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) Formatter {
	return &JSONFormatter{
		options: options,
	}
}

// FormatReport renders the report as indented JSON.
func (f *JSONFormatter) FormatReport(report *reconciler.Report) (string, error) {
	b, err := json.MarshalIndent(newReportDocument(report), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render report as JSON: %w", err)
	}
	return string(b) + "\n", nil
}

// SetOptions updates the formatter options
func (f *JSONFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *JSONFormatter) GetOptions() Options {
	return f.options
}
