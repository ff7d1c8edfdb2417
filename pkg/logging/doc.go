// Package logging provides a structured logging system for fleetsync with
// unified log handling and level filtering.
//
// The package is a thin wrapper around Go's standard slog package. All log
// entries carry a subsystem identifier so that output from the different
// stages of a run (config loading, dependency resolution, reconciliation,
// remote calls) can be filtered and categorised.
//
// # Usage
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Config", "Loaded definition from %s", path)
//	logging.Debug("Reconciler", "Prefetched %d remote objects", n)
//	logging.Error("ElasticClient", err, "PUT %s failed", name)
//
// # Subsystem Organization
//
//   - **Config**: Definition document loading and validation
//   - **FragmentStore**: Integration fragment lookup
//   - **Assembler**: Policy assembly
//   - **Reconciler**: Diffing and apply/plan execution
//   - **DefinitionWatcher**: State directory change detection
//   - **ElasticClient**: Remote Elasticsearch and Kibana calls
//   - **Discover**: Live-state export
//
// # Thread Safety
//
// The logging system is fully thread-safe; concurrent logging from multiple
// goroutines is supported without additional synchronisation.
package logging
