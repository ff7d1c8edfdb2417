package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Definition is the parsed declarative document describing the desired
// state of a Fleet deployment: foundational Elasticsearch assets,
// reusable integration bundle definitions and named agent policies.
//
// A Definition is parsed fresh at the start of every run and is read-only
// thereafter.
type Definition struct {
	// FoundationalAssets lists backend objects that must exist before any
	// policy referencing them is applied.
	FoundationalAssets FoundationalAssets `yaml:"foundational_assets"`

	// IntegrationDefinitions maps bundle key to its definition. Each bundle
	// names exactly one fragment plus optional asset dependencies.
	IntegrationDefinitions map[string]IntegrationDefinition `yaml:"integration_definitions"`

	// AgentPolicies maps policy name to its definition. The policy name is
	// the identity key used against the remote system.
	AgentPolicies map[string]AgentPolicy `yaml:"agent_policies"`

	// Vars is an optional map of template variables available to fragments
	// containing {{ placeholder }} expressions.
	Vars map[string]interface{} `yaml:"vars,omitempty"`

	// policyOrder preserves the declaration order of the agent_policies
	// mapping. Go maps are unordered, but the application order of policies
	// must match the document.
	policyOrder []string
}

// FoundationalAssets holds the ordered sets of component template and
// ingest pipeline names. The declared order is the required application
// order.
type FoundationalAssets struct {
	ComponentTemplates []string `yaml:"component_templates"`
	IngestPipelines    []string `yaml:"ingest_pipelines"`
}

// IntegrationDefinition is a reusable integration bundle: one fragment
// reference plus the assets it depends on.
type IntegrationDefinition struct {
	// Fragment is the name of the fragment file (without extension) under
	// the integration_fragments directory.
	Fragment string `yaml:"fragment"`

	// Dependencies lists assets that must already exist before a policy
	// using this bundle is applied.
	Dependencies Dependencies `yaml:"dependencies,omitempty"`
}

// Dependencies enumerates the foundational assets a bundle requires.
// Only ingest pipelines can currently be depended on.
type Dependencies struct {
	IngestPipelines []string `yaml:"ingest_pipelines,omitempty"`
}

// AgentPolicy is a named policy definition. Integrations is the ordered
// sequence of bundle keys merged into the assembled policy document.
type AgentPolicy struct {
	Description string `yaml:"description"`

	Integrations []string `yaml:"integrations"`

	// DiscoveredAgents is informational output from the discovery path.
	// It is never read during reconciliation and never causes a write.
	DiscoveredAgents []string `yaml:"_discovered_agents,omitempty"`
}

// UnmarshalYAML decodes the definition document and additionally captures
// the declaration order of the agent_policies mapping keys, which a plain
// map decode would lose.
func (d *Definition) UnmarshalYAML(node *yaml.Node) error {
	type plain Definition
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*d = Definition(p)

	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("definition document must be a mapping, got %v", node.Kind)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != "agent_policies" {
			continue
		}
		policies := node.Content[i+1]
		if policies.Kind != yaml.MappingNode {
			break
		}
		for j := 0; j+1 < len(policies.Content); j += 2 {
			d.policyOrder = append(d.policyOrder, policies.Content[j].Value)
		}
	}
	return nil
}

// PolicyNames returns the policy names in document declaration order.
func (d *Definition) PolicyNames() []string {
	names := make([]string, len(d.policyOrder))
	copy(names, d.policyOrder)
	return names
}
