package formatting

import (
	"fmt"

	"fleetsync/internal/reconciler"

	"gopkg.in/yaml.v3"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) Formatter {
	return &YAMLFormatter{
		options: options,
	}
}

// FormatReport renders the report as YAML.
func (f *YAMLFormatter) FormatReport(report *reconciler.Report) (string, error) {
	b, err := yaml.Marshal(newReportDocument(report))
	if err != nil {
		return "", fmt.Errorf("failed to render report as YAML: %w", err)
	}
	return string(b), nil
}

// SetOptions updates the formatter options
func (f *YAMLFormatter) SetOptions(options Options) {
	f.options = options
}

// GetOptions returns the current formatter options
func (f *YAMLFormatter) GetOptions() Options {
	return f.options
}
