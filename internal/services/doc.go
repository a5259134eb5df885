// Package services defines shared utilities consumed by the assembly stages
// and the surfaces that drive them.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, stage names, sentence indexes, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper, and Classify, which turns
//     a marked error into the classification stored on run records.
//
// Use these helpers when wiring new stage logic so error handling and
// observability stay uniform across the pipeline.
package services
