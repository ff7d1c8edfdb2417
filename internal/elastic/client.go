package elastic

import (
	"context"
	"errors"
	"fmt"
)

// Document is an opaque JSON-compatible tree as exchanged with the remote
// APIs.
type Document = map[string]interface{}

// ErrNotFound is returned by Get operations when the remote system holds
// no object with the requested name.
var ErrNotFound = errors.New("object not found")

// Policy is one entry from the remote agent policy list: the opaque id
// allocated by the remote system, the identity name, and the full current
// document when the listing was requested with content.
type Policy struct {
	ID       string
	Name     string
	Revision int
	Document Document
}

// Client is the narrow capability surface the reconciler and discovery
// use to read and mutate remote state. Implementations own transport
// concerns: authentication headers, per-call timeouts and any retry
// policy. The reconciler layer performs no retries of its own.
//
// All operations take a context for cancellation; a timed-out call is
// indistinguishable from any other failed call at this interface.
type Client interface {
	// GetComponentTemplate fetches one component template by name.
	// Returns ErrNotFound (possibly wrapped) if absent.
	GetComponentTemplate(ctx context.Context, name string) (Document, error)

	// PutComponentTemplate creates or replaces a component template.
	PutComponentTemplate(ctx context.Context, name string, doc Document) error

	// GetIngestPipeline fetches one ingest pipeline by name.
	// Returns ErrNotFound (possibly wrapped) if absent.
	GetIngestPipeline(ctx context.Context, name string) (Document, error)

	// PutIngestPipeline creates or replaces an ingest pipeline.
	PutIngestPipeline(ctx context.Context, name string, doc Document) error

	// ListPolicies returns all agent policies with their full documents.
	// One call per run: the result is the reconciler's view of current
	// remote policy state.
	ListPolicies(ctx context.Context) ([]Policy, error)

	// CreatePolicy creates a new agent policy and returns the id the
	// remote system allocated for it.
	CreatePolicy(ctx context.Context, doc Document) (string, error)

	// UpdatePolicy replaces the policy with the given remote id.
	UpdatePolicy(ctx context.Context, id string, doc Document) error

	// ListComponentTemplates returns all component templates by name.
	// Used by the discovery path only.
	ListComponentTemplates(ctx context.Context) (map[string]Document, error)

	// ListIngestPipelines returns all ingest pipelines by name.
	// Used by the discovery path only.
	ListIngestPipelines(ctx context.Context) (map[string]Document, error)

	// ListAgents returns all enrolled agents. Used by the discovery path
	// only; reconciliation never reads agent state.
	ListAgents(ctx context.Context) ([]Document, error)
}

// ReadError wraps a failed remote read with the object it was for.
type ReadError struct {
	Kind string
	Name string
	Err  error
}

// Error implements the error interface.
func (e *ReadError) Error() string {
	return fmt.Sprintf("reading %s %q: %v", e.Kind, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ReadError) Unwrap() error { return e.Err }

// WriteError wraps a failed remote write with the object and operation.
type WriteError struct {
	Kind      string
	Name      string
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s %q: %v", e.Operation, e.Kind, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *WriteError) Unwrap() error { return e.Err }
