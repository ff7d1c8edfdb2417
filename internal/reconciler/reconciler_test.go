package reconciler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fleetsync/internal/assembler"
	"fleetsync/internal/config"
	"fleetsync/internal/dependency"
	"fleetsync/internal/elastic"
	"fleetsync/internal/fragment"
	"fleetsync/internal/testing/mock"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

// fixture builds a state directory on disk, parses the definition,
// resolves the plan and assembles all policies, mirroring what the CLI
// does before handing over to the reconciler.
type fixture struct {
	def       *config.Definition
	plan      *dependency.Plan
	templates *fragment.Store
	pipelines *fragment.Store
	input     Input
}

func newFixture(t *testing.T, definition string, files map[string]string) *fixture {
	t.Helper()

	stateDir := t.TempDir()
	for _, sub := range []string{config.ComponentTemplatesDirName, config.PipelinesDirName, config.FragmentsDirName} {
		require.NoError(t, os.MkdirAll(filepath.Join(stateDir, sub), 0755))
	}
	for rel, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(stateDir, rel), []byte(content), 0644))
	}

	var def config.Definition
	require.NoError(t, yaml.Unmarshal([]byte(definition), &def))

	plan, err := dependency.Resolve(&def)
	require.NoError(t, err)

	f := &fixture{
		def:       &def,
		plan:      plan,
		templates: fragment.NewStore(filepath.Join(stateDir, config.ComponentTemplatesDirName), def.Vars),
		pipelines: fragment.NewStore(filepath.Join(stateDir, config.PipelinesDirName), def.Vars),
	}

	store := fragment.NewStore(filepath.Join(stateDir, config.FragmentsDirName), def.Vars)
	assembled := make(map[string]*assembler.AssembledPolicy)
	assemblyErrs := make(map[string]error)
	for _, name := range plan.Policies {
		ap, err := assembler.Assemble(name, &def, store)
		if err != nil {
			assemblyErrs[name] = err
			continue
		}
		assembled[name] = ap
	}

	f.input = Input{
		Plan:           plan,
		Definition:     &def,
		Templates:      f.templates,
		Pipelines:      f.pipelines,
		Assembled:      assembled,
		AssemblyErrors: assemblyErrs,
	}
	return f
}

func (f *fixture) run(t *testing.T, client elastic.Client, mode Mode) *Report {
	t.Helper()
	in := f.input
	in.Mode = mode
	return New(client).Run(context.Background(), in)
}

// outcomeByName indexes a report for assertions.
func outcomeByName(report *Report) map[string]Operation {
	out := make(map[string]Operation)
	for _, op := range report.Operations {
		out[string(op.Kind)+"/"+op.Name] = op
	}
	return out
}

const cheeseDefinition = `
foundational_assets:
  component_templates:
    - logs-base
  ingest_pipelines:
    - cheese-log-parser
integration_definitions:
  system:
    fragment: system-1
  cheese_logs:
    fragment: custom_logs-cheese-1
    dependencies:
      ingest_pipelines:
        - cheese-log-parser
agent_policies:
  Cheese App Servers:
    description: cheese servers
    integrations:
      - system
      - cheese_logs
  Plain Servers:
    description: plain servers
    integrations:
      - system
`

var cheeseFiles = map[string]string{
	"component_templates/logs-base.json":              `{"template": {"mappings": {"properties": {"msg": {"type": "text"}}}}}`,
	"pipelines/cheese-log-parser.json":                `{"description": "parses cheese logs", "processors": []}`,
	"integration_fragments/system-1.json":             `{"name": "system", "policy_template": "system", "vars": {}}`,
	"integration_fragments/custom_logs-cheese-1.json": `{"name": "custom_logs", "policy_template": "logs", "vars": {"pipeline": "cheese-log-parser"}}`,
}

func TestApplyFreshRemote(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()

	report := f.run(t, client, ModeApply)

	require.False(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeCreated, ops["ComponentTemplate/logs-base"].Outcome)
	assert.Equal(t, OutcomeCreated, ops["IngestPipeline/cheese-log-parser"].Outcome)
	assert.Equal(t, OutcomeCreated, ops["AgentPolicy/Cheese App Servers"].Outcome)
	assert.Equal(t, OutcomeCreated, ops["AgentPolicy/Plain Servers"].Outcome)

	// Created policies carry the remotely allocated id.
	assert.NotEmpty(t, ops["AgentPolicy/Cheese App Servers"].RemoteID)

	// Writes happen strictly in phase order: template, pipeline, policies.
	writes := client.WriteCalls()
	require.Len(t, writes, 4)
	assert.Equal(t, "PutComponentTemplate", writes[0].Method)
	assert.Equal(t, "PutIngestPipeline", writes[1].Method)
	assert.Equal(t, "CreatePolicy", writes[2].Method)
	assert.Equal(t, "CreatePolicy", writes[3].Method)

	// The assembled policy landed with its integrations in declared order.
	stored, ok := client.PolicyByName("Cheese App Servers")
	require.True(t, ok)
	entries := stored.Document["package_policies"].([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "system", entries[0].(map[string]interface{})["name"])
	assert.Equal(t, "custom_logs", entries[1].(map[string]interface{})["name"])
}

func TestApplyIdempotent(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()

	first := f.run(t, client, ModeApply)
	require.False(t, first.Failed())
	writesAfterFirst := len(client.WriteCalls())

	second := f.run(t, client, ModeApply)
	require.False(t, second.Failed())

	for _, op := range second.Operations {
		assert.Equal(t, OutcomeNoOp, op.Outcome, "second run should no-op %s %q", op.Kind, op.Name)
	}
	assert.Len(t, client.WriteCalls(), writesAfterFirst, "second run must not write")
}

func TestPlanModeWritesNothing(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()
	client.SeedPolicy("Plain Servers", elastic.Document{"description": "stale"})

	report := f.run(t, client, ModePlan)

	require.False(t, report.Failed())
	assert.Empty(t, client.WriteCalls())

	ops := outcomeByName(report)
	assert.Equal(t, OutcomePlanned, ops["ComponentTemplate/logs-base"].Outcome)
	assert.Equal(t, ActionCreate, ops["ComponentTemplate/logs-base"].Action)
	assert.Equal(t, OutcomePlanned, ops["AgentPolicy/Cheese App Servers"].Outcome)
	assert.Equal(t, ActionCreate, ops["AgentPolicy/Cheese App Servers"].Action)
	assert.Equal(t, OutcomePlanned, ops["AgentPolicy/Plain Servers"].Outcome)
	assert.Equal(t, ActionUpdate, ops["AgentPolicy/Plain Servers"].Action)
}

func TestDriftTriggersUpdate(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()

	first := f.run(t, client, ModeApply)
	require.False(t, first.Failed())

	// Out-of-band edits: pipeline content changed, policy integrations
	// emptied.
	client.Pipelines["cheese-log-parser"] = elastic.Document{"description": "tampered", "processors": []interface{}{}}
	tampered, ok := client.PolicyByName("Cheese App Servers")
	require.True(t, ok)
	tampered.Document["package_policies"] = []interface{}{}
	client.Policies[tampered.ID] = tampered

	second := f.run(t, client, ModeApply)
	require.False(t, second.Failed())

	ops := outcomeByName(second)
	assert.Equal(t, OutcomeUpdated, ops["IngestPipeline/cheese-log-parser"].Outcome)
	assert.Equal(t, OutcomeUpdated, ops["AgentPolicy/Cheese App Servers"].Outcome)
	assert.Equal(t, OutcomeNoOp, ops["ComponentTemplate/logs-base"].Outcome)
	assert.Equal(t, OutcomeNoOp, ops["AgentPolicy/Plain Servers"].Outcome)

	// Convergence: the integrations list was replaced wholesale.
	restored, ok := client.PolicyByName("Cheese App Servers")
	require.True(t, ok)
	assert.Len(t, restored.Document["package_policies"].([]interface{}), 2)
}

func TestPipelineFailureSkipsDependentPolicy(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()
	client.FailWrites["cheese-log-parser"] = errors.New("cluster unavailable")

	report := f.run(t, client, ModeApply)

	require.True(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeFailed, ops["IngestPipeline/cheese-log-parser"].Outcome)
	assert.Contains(t, ops["IngestPipeline/cheese-log-parser"].Reason, "cluster unavailable")

	// The dependent policy is skipped, the independent one still applies.
	assert.Equal(t, OutcomeSkipped, ops["AgentPolicy/Cheese App Servers"].Outcome)
	assert.Contains(t, ops["AgentPolicy/Cheese App Servers"].Reason, "cheese-log-parser")
	assert.Equal(t, OutcomeCreated, ops["AgentPolicy/Plain Servers"].Outcome)
}

func TestPhaseFailureAbortsRemainderOfPhase(t *testing.T) {
	definition := `
foundational_assets:
  ingest_pipelines:
    - first-pipeline
    - second-pipeline
integration_definitions:
  system:
    fragment: system-1
agent_policies:
  Plain Servers:
    integrations: [system]
`
	f := newFixture(t, definition, map[string]string{
		"pipelines/first-pipeline.json":       `{"description": "one", "processors": []}`,
		"pipelines/second-pipeline.json":      `{"description": "two", "processors": []}`,
		"integration_fragments/system-1.json": `{"name": "system", "policy_template": "system"}`,
	})
	client := mock.NewClient()
	client.FailWrites["first-pipeline"] = errors.New("boom")

	report := f.run(t, client, ModeApply)

	require.True(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeFailed, ops["IngestPipeline/first-pipeline"].Outcome)
	assert.Equal(t, OutcomeSkipped, ops["IngestPipeline/second-pipeline"].Outcome)
	assert.Equal(t, "earlier failure in phase", ops["IngestPipeline/second-pipeline"].Reason)

	// The policy does not depend on either pipeline and still applies.
	assert.Equal(t, OutcomeCreated, ops["AgentPolicy/Plain Servers"].Outcome)
}

func TestNeverDeletes(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()
	retiredID := client.SeedPolicy("Retired Policy", elastic.Document{"description": "not in the definition"})
	client.Templates["abandoned-template"] = elastic.Document{"template": map[string]interface{}{}}

	report := f.run(t, client, ModeApply)

	require.False(t, report.Failed())
	_, stillThere := client.Policies[retiredID]
	assert.True(t, stillThere, "undeclared remote policy must be left untouched")
	assert.Contains(t, client.Templates, "abandoned-template")

	for _, op := range report.Operations {
		assert.NotEqual(t, "Retired Policy", op.Name)
	}
}

func TestAssemblyErrorFailsOnlyThatPolicy(t *testing.T) {
	definition := `
foundational_assets: {}
integration_definitions:
  one:
    fragment: frag-a
  two:
    fragment: frag-b
  system:
    fragment: system-1
agent_policies:
  Doubled:
    integrations: [one, two]
  Plain Servers:
    integrations: [system]
`
	f := newFixture(t, definition, map[string]string{
		"integration_fragments/frag-a.json":   `{"name": "system", "policy_template": "system"}`,
		"integration_fragments/frag-b.json":   `{"name": "system", "policy_template": "system"}`,
		"integration_fragments/system-1.json": `{"name": "system", "policy_template": "system"}`,
	})
	client := mock.NewClient()

	report := f.run(t, client, ModeApply)

	require.True(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeFailed, ops["AgentPolicy/Doubled"].Outcome)
	assert.Contains(t, ops["AgentPolicy/Doubled"].Reason, "both contribute")
	assert.Equal(t, OutcomeCreated, ops["AgentPolicy/Plain Servers"].Outcome)

	// No remote write happened for the failed policy.
	for _, call := range client.WriteCalls() {
		assert.NotEqual(t, "Doubled", call.Name)
	}
}

func TestMissingLocalAssetFileIsSkipped(t *testing.T) {
	files := map[string]string{}
	for rel, content := range cheeseFiles {
		files[rel] = content
	}
	delete(files, "component_templates/logs-base.json")

	f := newFixture(t, cheeseDefinition, files)
	client := mock.NewClient()

	report := f.run(t, client, ModeApply)

	require.False(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeSkipped, ops["ComponentTemplate/logs-base"].Outcome)
	assert.Contains(t, ops["ComponentTemplate/logs-base"].Reason, "local source file")

	// The rest of the run proceeds normally.
	assert.Equal(t, OutcomeCreated, ops["IngestPipeline/cheese-log-parser"].Outcome)
}

func TestMissingPipelineFileSkipsDependentPolicy(t *testing.T) {
	files := map[string]string{}
	for rel, content := range cheeseFiles {
		files[rel] = content
	}
	delete(files, "pipelines/cheese-log-parser.json")

	f := newFixture(t, cheeseDefinition, files)
	client := mock.NewClient()

	report := f.run(t, client, ModeApply)

	require.False(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeSkipped, ops["IngestPipeline/cheese-log-parser"].Outcome)

	// A skipped pipeline was never applied and may not exist remotely, so
	// the policy depending on it must not be created.
	assert.Equal(t, OutcomeSkipped, ops["AgentPolicy/Cheese App Servers"].Outcome)
	assert.Contains(t, ops["AgentPolicy/Cheese App Servers"].Reason, "cheese-log-parser")
	_, created := client.PolicyByName("Cheese App Servers")
	assert.False(t, created)

	// The independent policy still applies.
	assert.Equal(t, OutcomeCreated, ops["AgentPolicy/Plain Servers"].Outcome)
}

func TestPolicyListReadFailure(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()
	client.FailReads["agent_policies"] = errors.New("kibana unreachable")

	report := f.run(t, client, ModeApply)

	require.True(t, report.Failed())
	ops := outcomeByName(report)

	// Foundational assets are unaffected by the policy list failure.
	assert.Equal(t, OutcomeCreated, ops["ComponentTemplate/logs-base"].Outcome)
	assert.Equal(t, OutcomeCreated, ops["IngestPipeline/cheese-log-parser"].Outcome)

	assert.Equal(t, OutcomeFailed, ops["AgentPolicy/Cheese App Servers"].Outcome)
	assert.Contains(t, ops["AgentPolicy/Cheese App Servers"].Reason, "kibana unreachable")
	assert.Equal(t, OutcomeFailed, ops["AgentPolicy/Plain Servers"].Outcome)
}

func TestReadFailureMarksAssetFailed(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()
	client.FailReads["cheese-log-parser"] = errors.New("timeout awaiting response")

	report := f.run(t, client, ModeApply)

	require.True(t, report.Failed())
	ops := outcomeByName(report)
	assert.Equal(t, OutcomeFailed, ops["IngestPipeline/cheese-log-parser"].Outcome)
	assert.Contains(t, ops["IngestPipeline/cheese-log-parser"].Reason, "timeout")

	// A timed-out read is treated like any other failed call: the
	// dependent policy is skipped.
	assert.Equal(t, OutcomeSkipped, ops["AgentPolicy/Cheese App Servers"].Outcome)
}

func TestReportCounts(t *testing.T) {
	f := newFixture(t, cheeseDefinition, cheeseFiles)
	client := mock.NewClient()

	report := f.run(t, client, ModeApply)

	counts := report.Counts()
	assert.Equal(t, 4, counts[OutcomeCreated])
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, ModeApply, report.Mode)
}
