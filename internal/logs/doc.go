// Package logs reads the reelsmith log file for the CLI.
//
// It returns the last N lines with bounded memory, reads forward from a byte
// offset, and polls for appended lines in follow mode. MatchRun narrows output
// to the lines of a single run for both the console and JSON log formats.
package logs
