package discover

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"fleetsync/internal/config"
	"fleetsync/internal/elastic"
	"fleetsync/pkg/logging"

	"github.com/gowebpki/jcs"
	"gopkg.in/yaml.v3"
)

// fragmentKeys are the package policy fields that survive into an
// exported fragment. Everything else (ids, revisions, timestamps,
// enrichment added by the backend) is noise that would defeat
// deduplication.
var fragmentKeys = []string{"name", "version", "policy_template", "vars"}

// trailingCounter strips the "-<n>" suffix fragment filenames get when
// several distinct fragments share a base name.
var trailingCounter = regexp.MustCompile(`-[0-9]+$`)

// Discoverer exports the live state of a deployment into the
// declarative directory layout, producing a starting point for managing
// an existing deployment as code. The export is best effort and lossy:
// managed objects are skipped and only the fragment fields that matter
// for reconciliation are kept.
type Discoverer struct {
	client elastic.Client
}

// New creates a discoverer over the given remote state client.
func New(client elastic.Client) *Discoverer {
	return &Discoverer{client: client}
}

// Result summarizes one discovery run.
type Result struct {
	ComponentTemplates int
	IngestPipelines    int
	Fragments          int
	Policies           int
	Agents             int

	// DefinitionPath is where the generated definition was written.
	DefinitionPath string
}

// policyState is the intermediate record kept per live policy while
// fragments are extracted.
type policyState struct {
	id          string
	name        string
	description string
	fragments   []string
}

// Run exports the deployment state into outDir: asset JSON files,
// deduplicated integration fragments and a generated
// fleet_definition.yaml tying them together.
//
// Failures listing component templates or ingest pipelines degrade to
// an empty export of that asset type; failures listing policies or
// agents abort the run, since the generated definition would be
// useless without them.
func (d *Discoverer) Run(ctx context.Context, outDir string) (*Result, error) {
	for _, sub := range []string{
		config.ComponentTemplatesDirName,
		config.PipelinesDirName,
		config.FragmentsDirName,
	} {
		if err := os.MkdirAll(filepath.Join(outDir, sub), 0755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}

	result := &Result{}

	templates, err := d.dumpComponentTemplates(ctx, outDir)
	if err != nil {
		logging.Warn("Discover", "Skipping component templates: %v", err)
	}
	result.ComponentTemplates = len(templates)

	pipelines, err := d.dumpIngestPipelines(ctx, outDir)
	if err != nil {
		logging.Warn("Discover", "Skipping ingest pipelines: %v", err)
	}
	result.IngestPipelines = len(pipelines)

	policies, fragmentFiles, err := d.extractFragments(ctx, outDir)
	if err != nil {
		return nil, err
	}
	result.Fragments = len(fragmentFiles)

	definitions := buildIntegrationDefinitions(fragmentFiles)

	agents, err := d.client.ListAgents(ctx)
	if err != nil {
		return nil, &elastic.ReadError{Kind: "agent list", Name: "agents", Err: err}
	}
	result.Agents = len(agents)

	agentPolicies := buildAgentPolicies(policies, definitions, agents)
	result.Policies = len(agentPolicies)

	def := &config.Definition{
		FoundationalAssets: config.FoundationalAssets{
			ComponentTemplates: templates,
			IngestPipelines:    pipelines,
		},
		IntegrationDefinitions: definitions,
		AgentPolicies:          agentPolicies,
	}

	path := filepath.Join(outDir, config.DefinitionFileName)
	if err := writeDefinition(path, def); err != nil {
		return nil, err
	}
	result.DefinitionPath = path

	logging.Info("Discover", "Exported %d templates, %d pipelines, %d fragments, %d policies to %s",
		result.ComponentTemplates, result.IngestPipelines, result.Fragments, result.Policies, outDir)
	return result, nil
}

// dumpComponentTemplates saves every non-managed component template and
// returns their names sorted.
func (d *Discoverer) dumpComponentTemplates(ctx context.Context, outDir string) ([]string, error) {
	templates, err := d.client.ListComponentTemplates(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(templates))
	for name, doc := range templates {
		if isManaged(doc) {
			continue
		}
		path := filepath.Join(outDir, config.ComponentTemplatesDirName, name+".json")
		if err := writeJSON(path, doc); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	logging.Debug("Discover", "Saved %d non-managed component templates", len(names))
	return names, nil
}

// dumpIngestPipelines saves every non-managed ingest pipeline and
// returns their names sorted.
func (d *Discoverer) dumpIngestPipelines(ctx context.Context, outDir string) ([]string, error) {
	pipelines, err := d.client.ListIngestPipelines(ctx)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(pipelines))
	for name, doc := range pipelines {
		if isManaged(doc) {
			continue
		}
		path := filepath.Join(outDir, config.PipelinesDirName, name+".json")
		if err := writeJSON(path, doc); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	sort.Strings(names)
	logging.Debug("Discover", "Saved %d non-managed ingest pipelines", len(names))
	return names, nil
}

// extractFragments walks every live policy's integrations, writes each
// distinct fragment once and returns the per-policy state plus the
// written fragments by filename.
func (d *Discoverer) extractFragments(ctx context.Context, outDir string) ([]policyState, map[string]elastic.Document, error) {
	policies, err := d.client.ListPolicies(ctx)
	if err != nil {
		return nil, nil, &elastic.ReadError{Kind: "agent policy list", Name: "agent_policies", Err: err}
	}

	fragDir := filepath.Join(outDir, config.FragmentsDirName)
	seenHashes := make(map[string]string)
	nameCounters := make(map[string]int)
	fragments := make(map[string]elastic.Document)
	states := make([]policyState, 0, len(policies))

	for _, policy := range policies {
		state := policyState{id: policy.ID, name: policy.Name}
		if desc, ok := policy.Document["description"].(string); ok {
			state.description = desc
		}

		for _, entry := range packagePolicies(policy.Document) {
			baseName, _ := entry["name"].(string)
			if baseName == "" {
				continue
			}

			fragment := cleanFragment(entry)
			hash, err := fragmentHash(fragment)
			if err != nil {
				return nil, nil, fmt.Errorf("hashing fragment %q of policy %q: %w", baseName, policy.Name, err)
			}

			filename, ok := seenHashes[hash]
			if !ok {
				filename = fragmentFilename(baseName, fragment, nameCounters)
				if err := writeJSON(filepath.Join(fragDir, filename+".json"), fragment); err != nil {
					return nil, nil, err
				}
				seenHashes[hash] = filename
				fragments[filename] = fragment
			}
			state.fragments = append(state.fragments, filename)
		}

		states = append(states, state)
	}

	logging.Debug("Discover", "Extracted %d unique integration fragments from %d policies", len(fragments), len(states))
	return states, fragments, nil
}

// packagePolicies returns the policy document's package_policies
// entries as documents, skipping malformed elements.
func packagePolicies(doc elastic.Document) []elastic.Document {
	raw, _ := doc["package_policies"].([]interface{})
	entries := make([]elastic.Document, 0, len(raw))
	for _, item := range raw {
		if entry, ok := item.(elastic.Document); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// cleanFragment reduces a live package policy entry to the portable
// fragment fields. Vars is always present so fragments hash stably.
func cleanFragment(entry elastic.Document) elastic.Document {
	fragment := make(elastic.Document, len(fragmentKeys))
	for _, key := range fragmentKeys {
		if value, ok := entry[key]; ok {
			fragment[key] = value
		}
	}
	if _, ok := fragment["vars"]; !ok {
		fragment["vars"] = map[string]interface{}{}
	}
	return fragment
}

// fragmentHash returns the SHA-256 of the fragment's canonical JSON
// form, the identity used for deduplication.
func fragmentHash(fragment elastic.Document) (string, error) {
	raw, err := json.Marshal(fragment)
	if err != nil {
		return "", err
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// fragmentFilename picks a stable descriptive filename for a new
// fragment. Custom log integrations embed their log id so several
// custom_logs fragments stay tellable apart; colliding names get a
// numeric suffix.
func fragmentFilename(baseName string, fragment elastic.Document, counters map[string]int) string {
	descriptive := baseName
	if baseName == "custom_logs" {
		if vars, ok := fragment["vars"].(map[string]interface{}); ok {
			if id, ok := vars["id"].(string); ok && id != "" {
				descriptive = baseName + "-" + strings.ReplaceAll(id, ".", "_")
			}
		}
	}

	counters[descriptive]++
	if counters[descriptive] > 1 {
		return fmt.Sprintf("%s-%d", descriptive, counters[descriptive])
	}
	return descriptive
}

// buildIntegrationDefinitions derives the integration_definitions block
// from the extracted fragments. The bundle key is the fragment filename
// with the custom_logs prefix and any numeric suffix stripped; a
// fragment whose vars name an ingest pipeline becomes a bundle
// depending on that pipeline.
func buildIntegrationDefinitions(fragments map[string]elastic.Document) map[string]config.IntegrationDefinition {
	definitions := make(map[string]config.IntegrationDefinition, len(fragments))
	for filename, fragment := range fragments {
		key := strings.TrimPrefix(filename, "custom_logs-")
		key = trailingCounter.ReplaceAllString(key, "")

		definition := config.IntegrationDefinition{Fragment: filename}
		if vars, ok := fragment["vars"].(map[string]interface{}); ok {
			if pipeline, ok := vars["pipeline"].(string); ok && pipeline != "" {
				definition.Dependencies = config.Dependencies{IngestPipelines: []string{pipeline}}
			}
		}
		definitions[key] = definition
	}
	return definitions
}

// buildAgentPolicies groups live policies by their set of integration
// bundles: policies carrying the same bundles collapse into one
// definition, named after the first policy seen with that signature.
// Enrolled agent hostnames are attached informationally.
func buildAgentPolicies(policies []policyState, definitions map[string]config.IntegrationDefinition, agents []elastic.Document) map[string]config.AgentPolicy {
	fragmentToBundle := make(map[string]string, len(definitions))
	for key, definition := range definitions {
		fragmentToBundle[definition.Fragment] = key
	}

	type group struct {
		name         string
		description  string
		integrations []string
		agents       map[string]bool
	}

	groups := make(map[string]*group)
	idToSignature := make(map[string]string, len(policies))

	for _, policy := range policies {
		if len(policy.fragments) == 0 {
			continue
		}

		bundles := make([]string, 0, len(policy.fragments))
		for _, fragment := range policy.fragments {
			if key, ok := fragmentToBundle[fragment]; ok {
				bundles = append(bundles, key)
			} else {
				bundles = append(bundles, fragment)
			}
		}
		sort.Strings(bundles)

		sum := sha256.Sum256([]byte(strings.Join(bundles, " ")))
		signature := hex.EncodeToString(sum[:])
		idToSignature[policy.id] = signature

		if _, ok := groups[signature]; !ok {
			groups[signature] = &group{
				name:         policy.name,
				description:  policy.description,
				integrations: bundles,
				agents:       make(map[string]bool),
			}
		}
	}

	// Agents reference their policy by id.
	for _, agent := range agents {
		policyID, _ := agent["policy_id"].(string)
		signature, ok := idToSignature[policyID]
		if !ok {
			continue
		}
		g, ok := groups[signature]
		if !ok {
			continue
		}
		g.agents[agentHostname(agent)] = true
	}

	result := make(map[string]config.AgentPolicy, len(groups))
	for _, g := range groups {
		policy := config.AgentPolicy{
			Description:  g.description,
			Integrations: g.integrations,
		}
		if len(g.agents) > 0 {
			hostnames := make([]string, 0, len(g.agents))
			for hostname := range g.agents {
				hostnames = append(hostnames, hostname)
			}
			sort.Strings(hostnames)
			policy.DiscoveredAgents = hostnames
		}
		result[g.name] = policy
	}
	return result
}

// agentHostname extracts the agent's hostname, falling back to its id.
func agentHostname(agent elastic.Document) string {
	if meta, ok := agent["local_metadata"].(map[string]interface{}); ok {
		if host, ok := meta["host"].(map[string]interface{}); ok {
			if hostname, ok := host["hostname"].(string); ok && hostname != "" {
				return hostname
			}
		}
	}
	id, _ := agent["id"].(string)
	return id
}

// isManaged reports whether the object is marked as managed by the
// stack and must not be exported.
func isManaged(doc elastic.Document) bool {
	meta, ok := doc["_meta"].(map[string]interface{})
	if !ok {
		return false
	}
	managed, ok := meta["managed"].(bool)
	return ok && managed
}

// writeJSON writes a document as indented JSON.
func writeJSON(path string, doc elastic.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return os.WriteFile(path, append(data, '\n'), 0644)
}

// writeDefinition writes the generated definition document.
func writeDefinition(path string, def *config.Definition) error {
	data, err := yaml.Marshal(def)
	if err != nil {
		return fmt.Errorf("encoding definition: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
