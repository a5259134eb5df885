// Package staging owns the per-run scratch workspaces under paths.staging_dir.
//
// Acquire creates a fresh run-<id> directory that no other run can share, and
// Release removes it with everything inside. Callers defer Release right after
// Acquire so success, failure, cancellation and panics all reclaim the space.
// CleanStale sweeps workspaces abandoned by processes that died mid-run.
package staging
