package assembler

import (
	"fmt"

	"fleetsync/internal/config"
	"fleetsync/internal/elastic"
	"fleetsync/internal/fragment"
	"fleetsync/pkg/logging"
)

// defaultNamespace is the Fleet namespace assembled policies are written
// into.
const defaultNamespace = "default"

// AssembledPolicy is the complete target document for one named policy,
// built fresh each run from the definition and the fragment store. It is
// never partially mutated after assembly.
type AssembledPolicy struct {
	// Name is the policy name, the identity key against the remote system.
	Name string

	// Description is the human description from the definition.
	Description string

	// Document is the composite policy document sent to the remote API:
	// name, description, namespace and the ordered package_policies array.
	Document elastic.Document

	// Provenance records which bundle contributed each package_policies
	// entry, in order, for diagnostics and plan rendering.
	Provenance []Provenance
}

// Provenance ties one assembled integration entry to its source.
type Provenance struct {
	// Bundle is the integration definition key.
	Bundle string

	// Fragment is the fragment file the bundle references.
	Fragment string

	// Integration is the type+name identity of the contributed entry.
	Integration string
}

// DuplicateIntegrationError reports two bundles contributing integrations
// with the same type+name identity to one policy. Later entries must not
// silently overwrite earlier ones, so assembly of that policy fails;
// other policies are unaffected.
type DuplicateIntegrationError struct {
	Policy      string
	Integration string
	FirstBundle string
	OtherBundle string
}

// Error implements the error interface.
func (e *DuplicateIntegrationError) Error() string {
	return fmt.Sprintf("policy %q: bundles %q and %q both contribute integration %q",
		e.Policy, e.FirstBundle, e.OtherBundle, e.Integration)
}

// integrationIdentity derives the type+name pair of a fragment: the
// integration template type (policy_template) plus the entry name.
func integrationIdentity(doc map[string]interface{}) string {
	name, _ := doc["name"].(string)
	typ, _ := doc["policy_template"].(string)
	return typ + "/" + name
}

// Assemble builds the composite target document for one named policy by
// merging the fragments of its bundles in declared order.
//
// Assembly is pure and deterministic: the same definition and fragment
// set always produce structurally identical output, which the reconciler
// relies on for stable diffing across runs.
func Assemble(policyName string, def *config.Definition, store *fragment.Store) (*AssembledPolicy, error) {
	policy, ok := def.AgentPolicies[policyName]
	if !ok {
		return nil, fmt.Errorf("policy %q not present in definition", policyName)
	}

	description := policy.Description
	if description == "" {
		description = fmt.Sprintf("IaC-managed policy: %s", policyName)
	}

	assembled := &AssembledPolicy{
		Name:        policyName,
		Description: description,
	}

	packagePolicies := make([]interface{}, 0, len(policy.Integrations))
	contributedBy := make(map[string]string)

	for _, bundleKey := range policy.Integrations {
		bundle, ok := def.IntegrationDefinitions[bundleKey]
		if !ok {
			// The dependency resolver validates bundle references before
			// assembly runs; reaching this is a programming error.
			return nil, fmt.Errorf("policy %q references unknown bundle %q", policyName, bundleKey)
		}

		doc, err := store.Get(bundle.Fragment)
		if err != nil {
			return nil, fmt.Errorf("policy %q, bundle %q: %w", policyName, bundleKey, err)
		}

		identity := integrationIdentity(doc)
		if first, dup := contributedBy[identity]; dup {
			return nil, &DuplicateIntegrationError{
				Policy:      policyName,
				Integration: identity,
				FirstBundle: first,
				OtherBundle: bundleKey,
			}
		}
		contributedBy[identity] = bundleKey

		packagePolicies = append(packagePolicies, doc)
		assembled.Provenance = append(assembled.Provenance, Provenance{
			Bundle:      bundleKey,
			Fragment:    bundle.Fragment,
			Integration: identity,
		})
	}

	assembled.Document = elastic.Document{
		"name":             policyName,
		"description":      description,
		"namespace":        defaultNamespace,
		"package_policies": packagePolicies,
	}

	logging.Debug("Assembler", "Assembled policy %q with %d integrations", policyName, len(packagePolicies))
	return assembled, nil
}
