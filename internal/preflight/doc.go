// Package preflight provides readiness checks for the filesystem paths and
// services reelsmith depends on.
//
// These checks run in two contexts:
//   - The serve command runs RunAll at startup and reports the results on
//     GET /api/status.
//   - The CLI "reelsmith deps" command prints them next to the binary checks.
//
// Each optional check is gated by its config toggle.
package preflight
