// Package elastic is the remote state client: the narrow capability
// interface through which the reconciler and the discovery path read and
// mutate live deployment state.
//
// Component templates and ingest pipelines live in Elasticsearch; agent
// policies and agents live behind the Kibana Fleet API. The Client
// interface hides that split so the reconciler deals only in named
// objects. An in-memory fake (internal/testing/mock) implements the same
// contract for tests.
//
// The package also owns the canonicalization step used to decide whether
// a remote document already matches the desired one: remote documents are
// projected onto the desired document's shape and compared as RFC 8785
// canonical JSON. See Project and Equivalent.
package elastic
