package dependency

import (
	"fmt"

	"fleetsync/internal/config"
)

// Plan is a validated, ordered application plan for one run. Application
// order is component templates, then ingest pipelines, then policies;
// inside each phase the declared document order is kept. Policies never
// depend on each other, so policy-to-policy ordering carries no meaning
// beyond determinism.
type Plan struct {
	ComponentTemplates []string
	IngestPipelines    []string
	Policies           []string
}

// UnresolvedDependencyError reports a bundle dependency that no declared
// foundational asset satisfies.
type UnresolvedDependencyError struct {
	Bundle string
	Asset  string
}

// Error implements the error interface.
func (e *UnresolvedDependencyError) Error() string {
	return fmt.Sprintf("bundle %q depends on ingest pipeline %q which is not declared in foundational_assets", e.Bundle, e.Asset)
}

// UnknownBundleReferenceError reports a policy referencing a bundle key
// that integration_definitions does not contain.
type UnknownBundleReferenceError struct {
	Policy string
	Bundle string
}

// Error implements the error interface.
func (e *UnknownBundleReferenceError) Error() string {
	return fmt.Sprintf("policy %q references unknown bundle %q", e.Policy, e.Bundle)
}

// Resolve validates referential integrity across the whole definition and
// produces the ordered application plan.
//
// The dependency model is deliberately two-level: bundles depend on
// foundational assets only, never on other bundles, so resolution is a
// membership check per edge rather than a topological sort. Resolution
// never partially succeeds; the first violation aborts before any remote
// call is made.
func Resolve(def *config.Definition) (*Plan, error) {
	pipelines := make(map[string]bool, len(def.FoundationalAssets.IngestPipelines))
	for _, name := range def.FoundationalAssets.IngestPipelines {
		pipelines[name] = true
	}

	// Every bundle referenced by a policy must exist, and every dependency
	// of a referenced bundle must name a declared pipeline.
	for _, policyName := range def.PolicyNames() {
		policy := def.AgentPolicies[policyName]
		for _, bundleKey := range policy.Integrations {
			bundle, ok := def.IntegrationDefinitions[bundleKey]
			if !ok {
				return nil, &UnknownBundleReferenceError{Policy: policyName, Bundle: bundleKey}
			}
			for _, dep := range bundle.Dependencies.IngestPipelines {
				if !pipelines[dep] {
					return nil, &UnresolvedDependencyError{Bundle: bundleKey, Asset: dep}
				}
			}
		}
	}

	// Unreferenced bundles are validated too: a broken dependency is a
	// definition defect whether or not a policy currently uses the bundle.
	for key, bundle := range def.IntegrationDefinitions {
		for _, dep := range bundle.Dependencies.IngestPipelines {
			if !pipelines[dep] {
				return nil, &UnresolvedDependencyError{Bundle: key, Asset: dep}
			}
		}
	}

	plan := &Plan{
		ComponentTemplates: append([]string(nil), def.FoundationalAssets.ComponentTemplates...),
		IngestPipelines:    append([]string(nil), def.FoundationalAssets.IngestPipelines...),
		Policies:           def.PolicyNames(),
	}
	return plan, nil
}

// PipelineDependencies returns the set of pipeline names the given policy
// transitively requires through its bundles. The reconciler uses this to
// skip policies whose foundational assets failed to apply.
func PipelineDependencies(def *config.Definition, policyName string) []string {
	policy, ok := def.AgentPolicies[policyName]
	if !ok {
		return nil
	}

	seen := make(map[string]bool)
	var deps []string
	for _, bundleKey := range policy.Integrations {
		bundle, ok := def.IntegrationDefinitions[bundleKey]
		if !ok {
			continue
		}
		for _, dep := range bundle.Dependencies.IngestPipelines {
			if !seen[dep] {
				seen[dep] = true
				deps = append(deps, dep)
			}
		}
	}
	return deps
}
