package config

// Validate checks the structural invariants of a parsed definition that
// can be verified without consulting remote state or the fragment store:
// unique names inside each foundational asset list, a fragment reference
// on every bundle, and a non-empty integration list shape on every
// policy. Referential checks across sections (bundle keys, pipeline
// dependencies) belong to the dependency resolver.
func Validate(def *Definition) error {
	seen := make(map[string]bool)
	for _, name := range def.FoundationalAssets.ComponentTemplates {
		if name == "" {
			return &ValidationError{Section: "foundational_assets", Entity: "component_templates", Message: "empty template name"}
		}
		if seen[name] {
			return &ValidationError{Section: "foundational_assets", Entity: name, Message: "duplicate component template name"}
		}
		seen[name] = true
	}

	seen = make(map[string]bool)
	for _, name := range def.FoundationalAssets.IngestPipelines {
		if name == "" {
			return &ValidationError{Section: "foundational_assets", Entity: "ingest_pipelines", Message: "empty pipeline name"}
		}
		if seen[name] {
			return &ValidationError{Section: "foundational_assets", Entity: name, Message: "duplicate ingest pipeline name"}
		}
		seen[name] = true
	}

	for key, bundle := range def.IntegrationDefinitions {
		if key == "" {
			return &ValidationError{Section: "integration_definitions", Entity: key, Message: "empty bundle key"}
		}
		if bundle.Fragment == "" {
			return &ValidationError{Section: "integration_definitions", Entity: key, Message: "bundle is missing a fragment reference"}
		}
	}

	for name, policy := range def.AgentPolicies {
		if name == "" {
			return &ValidationError{Section: "agent_policies", Entity: name, Message: "empty policy name"}
		}
		if len(policy.Integrations) == 0 {
			return &ValidationError{Section: "agent_policies", Entity: name, Message: "policy declares no integrations"}
		}
	}

	return nil
}
