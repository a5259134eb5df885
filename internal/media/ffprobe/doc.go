// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect runs ffprobe and decodes streams and container metadata. The
// assembly pipeline uses DurationSeconds to bound trims and PrimaryVideo to
// report source geometry; InspectWith accepts a fake runner in tests.
package ffprobe
