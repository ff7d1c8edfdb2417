// Package config parses and validates the declarative fleet definition
// document.
//
// A state directory contains the definition file plus the JSON assets it
// references:
//
//	<state-dir>/
//	  fleet_definition.yaml
//	  component_templates/<name>.json
//	  pipelines/<name>.json
//	  integration_fragments/<name>.json
//
// The definition document has three main sections:
//
//   - foundational_assets: ordered lists of component template and ingest
//     pipeline names that must exist before anything referencing them
//   - integration_definitions: reusable bundles, each naming one fragment
//     and optional pipeline dependencies
//   - agent_policies: named policies, each an ordered list of bundle keys
//
// Loading is strict: a malformed document is a ParseError and structural
// problems are ValidationErrors, both fatal before any remote call.
// Cross-section referential integrity (policy -> bundle -> pipeline) is
// checked by the dependency resolver, not here.
package config
