package mock

import (
	"context"
	"fmt"
	"sync"

	"fleetsync/internal/elastic"
)

// Call records one operation performed against the fake client, in
// order. Tests assert on the sequence to verify ordering and the
// absence of writes in plan mode.
type Call struct {
	// Method is the Client method name, e.g. "PutIngestPipeline".
	Method string

	// Name is the object name or id the call targeted.
	Name string
}

// Client is an in-memory implementation of elastic.Client backing the
// reconciler and discovery tests. It holds remote state in maps, records
// every call, and supports per-object failure injection.
type Client struct {
	mu sync.Mutex

	// Remote state, keyed by object name (policies additionally by id).
	Templates map[string]elastic.Document
	Pipelines map[string]elastic.Document
	Policies  map[string]elastic.Policy // keyed by id
	Agents    []elastic.Document

	// FailReads and FailWrites inject an error for the named object.
	// The special key "*" fails every call of that direction.
	FailReads  map[string]error
	FailWrites map[string]error

	// Calls is the ordered record of every operation.
	Calls []Call

	nextID int
}

// NewClient creates an empty fake remote deployment.
func NewClient() *Client {
	return &Client{
		Templates:  make(map[string]elastic.Document),
		Pipelines:  make(map[string]elastic.Document),
		Policies:   make(map[string]elastic.Policy),
		FailReads:  make(map[string]error),
		FailWrites: make(map[string]error),
	}
}

func (c *Client) record(method, name string) {
	c.Calls = append(c.Calls, Call{Method: method, Name: name})
}

func (c *Client) readFailure(name string) error {
	if err, ok := c.FailReads[name]; ok {
		return err
	}
	return c.FailReads["*"]
}

func (c *Client) writeFailure(name string) error {
	if err, ok := c.FailWrites[name]; ok {
		return err
	}
	return c.FailWrites["*"]
}

// WriteCalls returns the subset of recorded calls that mutate state.
func (c *Client) WriteCalls() []Call {
	c.mu.Lock()
	defer c.mu.Unlock()
	var writes []Call
	for _, call := range c.Calls {
		switch call.Method {
		case "PutComponentTemplate", "PutIngestPipeline", "CreatePolicy", "UpdatePolicy":
			writes = append(writes, call)
		}
	}
	return writes
}

// PolicyByName finds a stored policy by its name.
func (c *Client) PolicyByName(name string) (elastic.Policy, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.Policies {
		if p.Name == name {
			return p, true
		}
	}
	return elastic.Policy{}, false
}

// SeedPolicy stores a policy with a generated id and returns the id.
func (c *Client) SeedPolicy(name string, doc elastic.Document) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	id := fmt.Sprintf("policy-%d", c.nextID)
	if doc == nil {
		doc = elastic.Document{}
	}
	doc["id"] = id
	doc["name"] = name
	c.Policies[id] = elastic.Policy{ID: id, Name: name, Document: doc}
	return id
}

// GetComponentTemplate implements elastic.Client.
func (c *Client) GetComponentTemplate(ctx context.Context, name string) (elastic.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("GetComponentTemplate", name)
	if err := c.readFailure(name); err != nil {
		return nil, err
	}
	doc, ok := c.Templates[name]
	if !ok {
		return nil, elastic.ErrNotFound
	}
	return doc, nil
}

// PutComponentTemplate implements elastic.Client.
func (c *Client) PutComponentTemplate(ctx context.Context, name string, doc elastic.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("PutComponentTemplate", name)
	if err := c.writeFailure(name); err != nil {
		return err
	}
	c.Templates[name] = doc
	return nil
}

// GetIngestPipeline implements elastic.Client.
func (c *Client) GetIngestPipeline(ctx context.Context, name string) (elastic.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("GetIngestPipeline", name)
	if err := c.readFailure(name); err != nil {
		return nil, err
	}
	doc, ok := c.Pipelines[name]
	if !ok {
		return nil, elastic.ErrNotFound
	}
	return doc, nil
}

// PutIngestPipeline implements elastic.Client.
func (c *Client) PutIngestPipeline(ctx context.Context, name string, doc elastic.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("PutIngestPipeline", name)
	if err := c.writeFailure(name); err != nil {
		return err
	}
	c.Pipelines[name] = doc
	return nil
}

// ListPolicies implements elastic.Client.
func (c *Client) ListPolicies(ctx context.Context) ([]elastic.Policy, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("ListPolicies", "")
	if err := c.readFailure("agent_policies"); err != nil {
		return nil, err
	}
	policies := make([]elastic.Policy, 0, len(c.Policies))
	for _, p := range c.Policies {
		policies = append(policies, p)
	}
	return policies, nil
}

// CreatePolicy implements elastic.Client.
func (c *Client) CreatePolicy(ctx context.Context, doc elastic.Document) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, _ := doc["name"].(string)
	c.record("CreatePolicy", name)
	if err := c.writeFailure(name); err != nil {
		return "", err
	}
	c.nextID++
	id := fmt.Sprintf("policy-%d", c.nextID)
	stored := make(elastic.Document, len(doc)+1)
	for k, v := range doc {
		stored[k] = v
	}
	stored["id"] = id
	c.Policies[id] = elastic.Policy{ID: id, Name: name, Document: stored}
	return id, nil
}

// UpdatePolicy implements elastic.Client.
func (c *Client) UpdatePolicy(ctx context.Context, id string, doc elastic.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("UpdatePolicy", id)
	existing, ok := c.Policies[id]
	if !ok {
		return fmt.Errorf("policy %s does not exist", id)
	}
	if err := c.writeFailure(existing.Name); err != nil {
		return err
	}
	name, _ := doc["name"].(string)
	stored := make(elastic.Document, len(doc)+2)
	for k, v := range doc {
		stored[k] = v
	}
	stored["id"] = id
	stored["revision"] = float64(existing.Revision + 1)
	c.Policies[id] = elastic.Policy{ID: id, Name: name, Revision: existing.Revision + 1, Document: stored}
	return nil
}

// ListComponentTemplates implements elastic.Client.
func (c *Client) ListComponentTemplates(ctx context.Context) (map[string]elastic.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("ListComponentTemplates", "")
	if err := c.readFailure("_component_template"); err != nil {
		return nil, err
	}
	out := make(map[string]elastic.Document, len(c.Templates))
	for name, doc := range c.Templates {
		out[name] = doc
	}
	return out, nil
}

// ListIngestPipelines implements elastic.Client.
func (c *Client) ListIngestPipelines(ctx context.Context) (map[string]elastic.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("ListIngestPipelines", "")
	if err := c.readFailure("_ingest/pipeline"); err != nil {
		return nil, err
	}
	out := make(map[string]elastic.Document, len(c.Pipelines))
	for name, doc := range c.Pipelines {
		out[name] = doc
	}
	return out, nil
}

// ListAgents implements elastic.Client.
func (c *Client) ListAgents(ctx context.Context) ([]elastic.Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.record("ListAgents", "")
	if err := c.readFailure("agents"); err != nil {
		return nil, err
	}
	return append([]elastic.Document(nil), c.Agents...), nil
}
