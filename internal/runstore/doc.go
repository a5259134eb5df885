// Package runstore persists assembly run history in SQLite.
//
// Each run gets one row keyed by its run id. The Store implements the
// assembler's Reporter through Store.Reporter, so rows follow the run state
// machine as it advances: the current stage while the run is active, then
// done with the published asset or failed with the stage and classification
// of the error. ResetInterrupted marks runs left active by a crashed process.
//
// Schema changes bump schemaVersion in schema.go; users delete runs.db to
// adopt the new schema.
package runstore
