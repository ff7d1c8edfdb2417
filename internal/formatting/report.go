package formatting

import (
	"time"

	"fleetsync/internal/reconciler"
)

// timeRounding keeps rendered durations readable.
const timeRounding = time.Millisecond

// reportDocument is the serializable view of a report shared by the
// JSON and YAML formatters.
type reportDocument struct {
	RunID      string              `json:"run_id" yaml:"run_id"`
	Mode       string              `json:"mode" yaml:"mode"`
	Started    time.Time           `json:"started" yaml:"started"`
	DurationMS int64               `json:"duration_ms" yaml:"duration_ms"`
	Failed     bool                `json:"failed" yaml:"failed"`
	Summary    map[string]int      `json:"summary" yaml:"summary"`
	Operations []operationDocument `json:"operations" yaml:"operations"`
}

type operationDocument struct {
	Phase    string `json:"phase" yaml:"phase"`
	Kind     string `json:"kind" yaml:"kind"`
	Name     string `json:"name" yaml:"name"`
	Action   string `json:"action,omitempty" yaml:"action,omitempty"`
	Outcome  string `json:"outcome" yaml:"outcome"`
	Reason   string `json:"reason,omitempty" yaml:"reason,omitempty"`
	RemoteID string `json:"remote_id,omitempty" yaml:"remote_id,omitempty"`
}

func newReportDocument(report *reconciler.Report) reportDocument {
	doc := reportDocument{
		RunID:      report.RunID,
		Mode:       string(report.Mode),
		Started:    report.Started,
		DurationMS: report.Duration.Milliseconds(),
		Failed:     report.Failed(),
		Summary:    make(map[string]int),
		Operations: make([]operationDocument, 0, len(report.Operations)),
	}
	for outcome, count := range report.Counts() {
		doc.Summary[string(outcome)] = count
	}
	for _, op := range report.Operations {
		doc.Operations = append(doc.Operations, operationDocument{
			Phase:    op.Phase.String(),
			Kind:     string(op.Kind),
			Name:     op.Name,
			Action:   string(op.Action),
			Outcome:  string(op.Outcome),
			Reason:   op.Reason,
			RemoteID: op.RemoteID,
		})
	}
	return doc
}
