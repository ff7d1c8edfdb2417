package reconciler

import (
	"context"
	"errors"
	"sync"

	"fleetsync/internal/dependency"
	"fleetsync/internal/elastic"
	"fleetsync/pkg/logging"

	"golang.org/x/sync/errgroup"
)

// fetchConcurrency caps the number of in-flight remote reads during the
// prefetch.
const fetchConcurrency = 8

// remoteState is the snapshot of current remote state taken once at the
// start of a run. Objects absent remotely have a nil document and no
// entry error; objects whose read failed carry the error. The snapshot
// is owned by one run and never cached across runs.
type remoteState struct {
	templates      map[string]elastic.Document
	templateErrs   map[string]error
	pipelines      map[string]elastic.Document
	pipelineErrs   map[string]error
	policiesByName map[string]elastic.Policy
	policyListErr  error
}

// fetchRemoteState reads the current remote definition of every object
// the plan touches. Reads for independent objects have no ordering
// dependency on each other and run concurrently; a failed read is
// recorded per object and never aborts the other reads.
func fetchRemoteState(ctx context.Context, client elastic.Client, plan *dependency.Plan) *remoteState {
	state := &remoteState{
		templates:      make(map[string]elastic.Document),
		templateErrs:   make(map[string]error),
		pipelines:      make(map[string]elastic.Document),
		pipelineErrs:   make(map[string]error),
		policiesByName: make(map[string]elastic.Policy),
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(fetchConcurrency)

	for _, name := range plan.ComponentTemplates {
		name := name
		group.Go(func() error {
			doc, err := client.GetComponentTemplate(groupCtx, name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				state.templates[name] = doc
			case errors.Is(err, elastic.ErrNotFound):
				// Absent: schedule a create later.
			default:
				state.templateErrs[name] = &elastic.ReadError{Kind: "component template", Name: name, Err: err}
			}
			return nil
		})
	}

	for _, name := range plan.IngestPipelines {
		name := name
		group.Go(func() error {
			doc, err := client.GetIngestPipeline(groupCtx, name)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				state.pipelines[name] = doc
			case errors.Is(err, elastic.ErrNotFound):
			default:
				state.pipelineErrs[name] = &elastic.ReadError{Kind: "ingest pipeline", Name: name, Err: err}
			}
			return nil
		})
	}

	if len(plan.Policies) > 0 {
		group.Go(func() error {
			policies, err := client.ListPolicies(groupCtx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				state.policyListErr = &elastic.ReadError{Kind: "agent policy list", Name: "agent_policies", Err: err}
				return nil
			}
			for _, p := range policies {
				state.policiesByName[p.Name] = p
			}
			return nil
		})
	}

	// Workers only record results; they never return errors.
	_ = group.Wait()

	logging.Debug("Reconciler", "Prefetched remote state: %d templates, %d pipelines, %d policies",
		len(state.templates), len(state.pipelines), len(state.policiesByName))

	return state
}
