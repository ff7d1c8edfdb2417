// Package mock provides an in-memory fake of the remote state client for
// testing the reconciler and discovery paths without a live deployment.
//
// The fake implements the exact elastic.Client contract: absence is
// reported as elastic.ErrNotFound, policy ids are allocated on create,
// and updates bump a revision field the way the real API does. Every
// call is recorded in order so tests can assert on sequencing and on the
// absence of writes in plan mode, and failures can be injected per
// object name to exercise the reconciler's phase-abort and
// dependency-skip behaviour.
package mock
