package config

import (
	"errors"
	"os"
	"path/filepath"

	"fleetsync/pkg/logging"

	"gopkg.in/yaml.v3"
)

const (
	// DefinitionFileName is the name of the declarative document inside a
	// state directory.
	DefinitionFileName = "fleet_definition.yaml"

	// FragmentsDirName holds one JSON file per integration fragment.
	FragmentsDirName = "integration_fragments"

	// ComponentTemplatesDirName holds one JSON file per component template.
	ComponentTemplatesDirName = "component_templates"

	// PipelinesDirName holds one JSON file per ingest pipeline.
	PipelinesDirName = "pipelines"
)

// Load reads and validates the definition document from the given state
// directory. Any failure is a *ParseError or *ValidationError; both are
// fatal and occur before any remote call.
func Load(stateDir string) (*Definition, error) {
	path := filepath.Join(stateDir, DefinitionFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ParseError{Path: path, Message: "definition file not found"}
		}
		return nil, &ParseError{Path: path, Message: "could not read definition file", Err: err}
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, &ParseError{Path: path, Message: "malformed YAML", Err: err}
	}

	if err := Validate(&def); err != nil {
		return nil, err
	}

	logging.Info("Config", "Loaded definition from %s (%d templates, %d pipelines, %d bundles, %d policies)",
		path,
		len(def.FoundationalAssets.ComponentTemplates),
		len(def.FoundationalAssets.IngestPipelines),
		len(def.IntegrationDefinitions),
		len(def.AgentPolicies))

	return &def, nil
}
