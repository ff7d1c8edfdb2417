// Package reconciler compares assembled desired state against a snapshot
// of remote state and issues the minimal set of create and update
// operations, in dependency order.
//
// # Run model
//
// Each run is self-contained: remote state is fetched once at the start
// (reads for independent objects run concurrently), operations execute
// sequentially in the resolved plan order, and nothing is cached across
// runs. Recomputing from scratch every run is the chosen strategy for
// tolerating out-of-band edits, at the cost of an extra round of reads.
//
// # Ordering and failure behaviour
//
// Operations run in three phases: component templates, ingest pipelines,
// agent policies. A failed write aborts the remainder of its own phase;
// later phases still run. Policies never depend on each other, so one
// policy failing never blocks another; a policy is skipped only when an
// ingest pipeline it depends on could not be brought into the desired
// state. Aborting mid-run leaves already-applied operations committed;
// the remote store offers no multi-object transactions.
//
// # Convergence
//
// The reconciler never deletes. Objects removed from the definition are
// left untouched remotely. Updates replace content wholesale rather than
// patching, so manual out-of-band edits converge back to the declared
// state. Running twice in immediate succession with no intervening
// remote change produces all no-ops on the second run.
//
// # Plan mode
//
// In plan mode the same reads and comparisons run, but no write is
// executed; pending operations are recorded in the report for rendering.
package reconciler
