// Package dependency validates referential integrity across a fleet
// definition and computes the ordered application plan for a run.
//
// # Dependency model
//
// The graph is intentionally shallow. Only one kind of edge exists:
// an integration bundle may depend on ingest pipelines declared in
// foundational_assets. Bundles never depend on other bundles and
// policies never depend on other policies, so resolution is a two-level
// membership check instead of a full topological sort. If the model is
// ever extended with bundle-to-bundle edges, this package should grow an
// explicit directed graph with cycle detection rather than more nested
// checks.
//
// # Plan ordering
//
// The produced Plan applies component templates first, then ingest
// pipelines, then policies, each phase in document declaration order.
// That ordering is a correctness requirement: a policy must never be
// created or updated before the pipelines its bundles reference exist.
//
// # Failure behaviour
//
// Resolve never partially succeeds. The first unknown bundle reference
// or unresolved dependency aborts the run before any remote call, with
// an error naming the offending policy or bundle and the missing entity.
package dependency
