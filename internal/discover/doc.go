// Package discover exports the live state of an Elastic Fleet
// deployment into the declarative directory layout consumed by apply
// and plan.
//
// Discovery is the inverse of reconciliation and is deliberately
// lossy: managed objects are skipped, package policy entries are
// reduced to the fields reconciliation compares, and identical
// integrations across policies collapse into one shared fragment.
// The generated fleet_definition.yaml is a reviewed starting point,
// not a faithful backup.
package discover
