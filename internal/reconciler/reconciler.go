package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fleetsync/internal/assembler"
	"fleetsync/internal/config"
	"fleetsync/internal/dependency"
	"fleetsync/internal/elastic"
	"fleetsync/internal/fragment"
	"fleetsync/pkg/logging"

	"github.com/google/uuid"
)

// Input carries everything one reconciliation run needs. All fields are
// read-only for the duration of the run.
type Input struct {
	// Plan is the validated, ordered application plan.
	Plan *dependency.Plan

	// Definition is the parsed declarative document the plan was resolved
	// from.
	Definition *config.Definition

	// Templates and Pipelines load the local JSON bodies of foundational
	// assets by name.
	Templates *fragment.Store
	Pipelines *fragment.Store

	// Assembled maps policy name to its assembled target document.
	// Policies whose assembly failed appear in AssemblyErrors instead.
	Assembled map[string]*assembler.AssembledPolicy

	// AssemblyErrors maps policy name to the assembly failure. Fatal for
	// that policy only; other policies continue.
	AssemblyErrors map[string]error

	// Mode selects apply or plan behaviour.
	Mode Mode
}

// Reconciler compares desired state against a snapshot of remote state
// and issues the minimal set of create and update operations. It never
// deletes: objects removed from the definition are left untouched
// remotely.
type Reconciler struct {
	client elastic.Client
}

// New creates a reconciler over the given remote state client.
func New(client elastic.Client) *Reconciler {
	return &Reconciler{client: client}
}

// Run executes one reconciliation pass and returns the report.
//
// Remote state is fetched once up front (reads for independent objects
// run concurrently), then operations execute strictly in plan order:
// component templates, ingest pipelines, agent policies. A write failure
// aborts the remainder of its own phase; later phases still run, and a
// policy is only skipped when a pipeline it depends on could not be
// brought into the desired state. Running twice in immediate succession
// with no intervening remote change yields all no-ops on the second run.
func (r *Reconciler) Run(ctx context.Context, in Input) *Report {
	report := &Report{
		RunID:   uuid.New().String(),
		Mode:    in.Mode,
		Started: time.Now(),
	}

	logging.Info("Reconciler", "Starting %s run %s", in.Mode, report.RunID)

	state := fetchRemoteState(ctx, r.client, in.Plan)

	// Pipelines that could not be confirmed to exist with the desired
	// content; policies depending on them are skipped.
	unhealthyPipelines := make(map[string]string)

	r.runAssetPhase(ctx, report, assetPhase{
		phase:   PhaseComponentTemplates,
		kind:    KindComponentTemplate,
		names:   in.Plan.ComponentTemplates,
		store:   in.Templates,
		current: state.templates,
		readErr: state.templateErrs,
		mode:    in.Mode,
		put: func(ctx context.Context, name string, doc elastic.Document) error {
			return r.client.PutComponentTemplate(ctx, name, doc)
		},
	}, nil)

	r.runAssetPhase(ctx, report, assetPhase{
		phase:   PhaseIngestPipelines,
		kind:    KindIngestPipeline,
		names:   in.Plan.IngestPipelines,
		store:   in.Pipelines,
		current: state.pipelines,
		readErr: state.pipelineErrs,
		mode:    in.Mode,
		put: func(ctx context.Context, name string, doc elastic.Document) error {
			return r.client.PutIngestPipeline(ctx, name, doc)
		},
	}, unhealthyPipelines)

	r.runPolicyPhase(ctx, report, in, state, unhealthyPipelines)

	report.Duration = time.Since(report.Started)
	counts := report.Counts()
	logging.Info("Reconciler", "Run %s finished: %d no-op, %d created, %d updated, %d planned, %d skipped, %d failed",
		report.RunID, counts[OutcomeNoOp], counts[OutcomeCreated], counts[OutcomeUpdated],
		counts[OutcomePlanned], counts[OutcomeSkipped], counts[OutcomeFailed])

	return report
}

// assetPhase bundles the parameters of one foundational-asset phase so
// templates and pipelines share a single code path.
type assetPhase struct {
	phase   Phase
	kind    Kind
	names   []string
	store   *fragment.Store
	current map[string]elastic.Document
	readErr map[string]error
	mode    Mode
	put     func(ctx context.Context, name string, doc elastic.Document) error
}

// runAssetPhase applies one foundational-asset phase in declared order.
// When unhealthy is non-nil it collects the assets that could not be
// confirmed to carry the desired content.
func (r *Reconciler) runAssetPhase(ctx context.Context, report *Report, p assetPhase, unhealthy map[string]string) {
	phaseAborted := false

	for _, name := range p.names {
		op := Operation{Phase: p.phase, Kind: p.kind, Name: name}

		if phaseAborted {
			op.Outcome = OutcomeSkipped
			op.Reason = "earlier failure in phase"
			// The object may still need a change we did not evaluate.
			if unhealthy != nil {
				unhealthy[name] = op.Reason
			}
			report.append(op)
			continue
		}

		if readErr, ok := p.readErr[name]; ok {
			op.Outcome = OutcomeFailed
			op.Reason = readErr.Error()
			if unhealthy != nil {
				unhealthy[name] = op.Reason
			}
			report.append(op)
			if p.mode == ModeApply {
				phaseAborted = true
			}
			continue
		}

		desired, err := p.store.Get(name)
		if err != nil {
			var notFound *fragment.NotFoundError
			if errors.As(err, &notFound) {
				// Matching the export format is best effort; a listed asset
				// without a local file is skipped with a warning rather than
				// failing the run.
				logging.Warn("Reconciler", "%s %q has no local source file, skipping", p.kind, name)
				op.Outcome = OutcomeSkipped
				op.Reason = "local source file not found"
				// Never applied, so possibly absent remotely.
				if unhealthy != nil {
					unhealthy[name] = op.Reason
				}
				report.append(op)
				continue
			}
			op.Outcome = OutcomeFailed
			op.Reason = err.Error()
			if unhealthy != nil {
				unhealthy[name] = op.Reason
			}
			report.append(op)
			if p.mode == ModeApply {
				phaseAborted = true
			}
			continue
		}

		current, exists := p.current[name]
		switch {
		case !exists:
			op.Action = ActionCreate
		default:
			same, err := elastic.Equivalent(desired, current)
			if err != nil {
				op.Outcome = OutcomeFailed
				op.Reason = err.Error()
				if unhealthy != nil {
					unhealthy[name] = op.Reason
				}
				report.append(op)
				if p.mode == ModeApply {
					phaseAborted = true
				}
				continue
			}
			if same {
				op.Action = ActionNone
			} else {
				op.Action = ActionUpdate
			}
		}

		if op.Action == ActionNone {
			op.Outcome = OutcomeNoOp
			report.append(op)
			continue
		}

		if p.mode == ModePlan {
			op.Outcome = OutcomePlanned
			report.append(op)
			continue
		}

		if err := p.put(ctx, name, desired); err != nil {
			writeErr := &elastic.WriteError{Kind: string(p.kind), Name: name, Operation: "PUT", Err: err}
			logging.Error("Reconciler", writeErr, "Failed to apply %s %q", p.kind, name)
			op.Outcome = OutcomeFailed
			op.Reason = writeErr.Error()
			if unhealthy != nil {
				unhealthy[name] = op.Reason
			}
			report.append(op)
			phaseAborted = true
			continue
		}

		if op.Action == ActionCreate {
			op.Outcome = OutcomeCreated
		} else {
			op.Outcome = OutcomeUpdated
		}
		logging.Info("Reconciler", "%s %s %q", op.Outcome, p.kind, name)
		report.append(op)
	}
}

// runPolicyPhase applies the agent policy phase. Policies are independent
// of each other: one policy failing never blocks another. A policy is
// skipped only when its assembly failed earlier or a pipeline it depends
// on is unhealthy.
func (r *Reconciler) runPolicyPhase(ctx context.Context, report *Report, in Input, state *remoteState, unhealthyPipelines map[string]string) {
	for _, name := range in.Plan.Policies {
		op := Operation{Phase: PhaseAgentPolicies, Kind: KindAgentPolicy, Name: name}

		if asmErr, ok := in.AssemblyErrors[name]; ok {
			op.Outcome = OutcomeFailed
			op.Reason = asmErr.Error()
			report.append(op)
			continue
		}

		if reason := dependencyFailure(in.Definition, name, unhealthyPipelines); reason != "" {
			op.Outcome = OutcomeSkipped
			op.Reason = reason
			report.append(op)
			continue
		}

		if state.policyListErr != nil {
			op.Outcome = OutcomeFailed
			op.Reason = state.policyListErr.Error()
			report.append(op)
			continue
		}

		assembled, ok := in.Assembled[name]
		if !ok {
			op.Outcome = OutcomeFailed
			op.Reason = fmt.Sprintf("policy %q was not assembled", name)
			report.append(op)
			continue
		}

		remote, exists := state.policiesByName[name]
		if !exists {
			op.Action = ActionCreate
		} else {
			op.RemoteID = remote.ID
			same, err := elastic.Equivalent(assembled.Document, remote.Document)
			if err != nil {
				op.Outcome = OutcomeFailed
				op.Reason = err.Error()
				report.append(op)
				continue
			}
			if same {
				op.Action = ActionNone
			} else {
				op.Action = ActionUpdate
			}
		}

		if op.Action == ActionNone {
			op.Outcome = OutcomeNoOp
			report.append(op)
			continue
		}

		if in.Mode == ModePlan {
			op.Outcome = OutcomePlanned
			report.append(op)
			continue
		}

		switch op.Action {
		case ActionCreate:
			// The remote system allocates the id; it is never predicted
			// locally.
			id, err := r.client.CreatePolicy(ctx, assembled.Document)
			if err != nil {
				writeErr := &elastic.WriteError{Kind: string(KindAgentPolicy), Name: name, Operation: "POST", Err: err}
				logging.Error("Reconciler", writeErr, "Failed to create policy %q", name)
				op.Outcome = OutcomeFailed
				op.Reason = writeErr.Error()
				report.append(op)
				continue
			}
			op.RemoteID = id
			op.Outcome = OutcomeCreated
			logging.Info("Reconciler", "created policy %q (id %s)", name, id)
		case ActionUpdate:
			// Wholesale replacement of the integrations list guarantees
			// convergence even after manual out-of-band edits.
			if err := r.client.UpdatePolicy(ctx, op.RemoteID, assembled.Document); err != nil {
				writeErr := &elastic.WriteError{Kind: string(KindAgentPolicy), Name: name, Operation: "PUT", Err: err}
				logging.Error("Reconciler", writeErr, "Failed to update policy %q", name)
				op.Outcome = OutcomeFailed
				op.Reason = writeErr.Error()
				report.append(op)
				continue
			}
			op.Outcome = OutcomeUpdated
			logging.Info("Reconciler", "updated policy %q (id %s)", name, op.RemoteID)
		}

		report.append(op)
	}
}

// dependencyFailure returns a human-readable reason when any pipeline the
// policy depends on could not be brought into the desired state.
func dependencyFailure(def *config.Definition, policyName string, unhealthyPipelines map[string]string) string {
	for _, dep := range dependency.PipelineDependencies(def, policyName) {
		if reason, ok := unhealthyPipelines[dep]; ok {
			return fmt.Sprintf("depends on ingest pipeline %q which was not applied: %s", dep, reason)
		}
	}
	return ""
}
