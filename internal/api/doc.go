// Package api defines wire-format types and converters for the HTTP API and
// the CLI's JSON output. It translates run store rows and assembly results
// into transport-friendly DTOs so consumers never couple to internal types.
//
// # Key Types
//
// Run: transport representation of one run history row.
//
// SubmitResponse: outcome of a synchronous assembly request, either the
// published asset or the failing stage with an error classification.
//
// ServiceStatus: serve runtime state with run counts, dependencies and
// preflight checks.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Stages are exposed as lowercase strings and
// timestamps use RFC3339 with milliseconds.
package api
