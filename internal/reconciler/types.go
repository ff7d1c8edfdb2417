package reconciler

import (
	"time"
)

// Mode selects whether computed operations are executed or only rendered.
type Mode string

const (
	// ModeApply executes operations in plan order.
	ModeApply Mode = "apply"

	// ModePlan renders pending operations without executing any write.
	ModePlan Mode = "plan"
)

// Kind identifies the type of remote object an operation targets.
type Kind string

const (
	KindComponentTemplate Kind = "ComponentTemplate"
	KindIngestPipeline    Kind = "IngestPipeline"
	KindAgentPolicy       Kind = "AgentPolicy"
)

// Phase is the ordered stage an operation belongs to. Operations within
// a phase are strictly ordered; a failure aborts the remainder of its
// phase but never unrelated phases.
type Phase int

const (
	PhaseComponentTemplates Phase = iota + 1
	PhaseIngestPipelines
	PhaseAgentPolicies
)

// String makes Phase satisfy fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseComponentTemplates:
		return "component-templates"
	case PhaseIngestPipelines:
		return "ingest-pipelines"
	case PhaseAgentPolicies:
		return "agent-policies"
	default:
		return "unknown"
	}
}

// Action describes the pending change computed for an object.
type Action string

const (
	// ActionNone means remote content already matches the desired content.
	ActionNone Action = "none"

	// ActionCreate means the object is absent remotely.
	ActionCreate Action = "create"

	// ActionUpdate means the object exists but its content differs.
	ActionUpdate Action = "update"
)

// Outcome is the final result recorded for an operation.
type Outcome string

const (
	// OutcomeNoOp means the object was already in the desired state.
	OutcomeNoOp Outcome = "no-op"

	// OutcomeCreated means the object was created.
	OutcomeCreated Outcome = "created"

	// OutcomeUpdated means the object was updated in place.
	OutcomeUpdated Outcome = "updated"

	// OutcomePlanned means a pending create or update was rendered but not
	// executed (plan mode).
	OutcomePlanned Outcome = "planned"

	// OutcomeFailed means the operation's read, assembly or write failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means the operation was not attempted: an earlier
	// failure in the same phase, a failed dependency, or a missing local
	// source file.
	OutcomeSkipped Outcome = "skipped"
)

// Operation is one reconciliation step and its result.
type Operation struct {
	// Phase orders the operation relative to the others.
	Phase Phase

	// Kind is the remote object type.
	Kind Kind

	// Name is the object's identity name.
	Name string

	// Action is the pending change computed by comparison.
	Action Action

	// Outcome is the recorded result.
	Outcome Outcome

	// Reason carries the error or skip explanation, empty on success.
	Reason string

	// RemoteID is the remote system's opaque object id, when known.
	// Policy ids are allocated remotely and only present for updates or
	// after a successful create.
	RemoteID string
}

// Failed reports whether the operation ended in failure.
func (o *Operation) Failed() bool {
	return o.Outcome == OutcomeFailed
}

// Report is the user-visible result of one reconciliation run.
type Report struct {
	// RunID uniquely identifies the run in logs and output.
	RunID string

	// Mode the run executed in.
	Mode Mode

	// Started is when the run began.
	Started time.Time

	// Duration is the total wall time of the run.
	Duration time.Duration

	// Operations lists every planned or executed operation in plan
	// order.
	Operations []Operation
}

// append records an operation.
func (r *Report) append(op Operation) {
	r.Operations = append(r.Operations, op)
}

// Failed reports whether any operation failed. A run with failures exits
// non-zero.
func (r *Report) Failed() bool {
	for i := range r.Operations {
		if r.Operations[i].Failed() {
			return true
		}
	}
	return false
}

// Counts returns the number of operations per outcome.
func (r *Report) Counts() map[Outcome]int {
	counts := make(map[Outcome]int)
	for i := range r.Operations {
		counts[r.Operations[i].Outcome]++
	}
	return counts
}
