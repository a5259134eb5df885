// Package daemon coordinates the long-running reelsmith service.
//
// It wires configuration, the run store, the assembler, the HTTP API and the
// optional Kafka intake into a single lifecycle, with flock-based locking to
// prevent two services from sharing one staging directory. On start it marks
// runs left active by a previous process as failed and sweeps their abandoned
// scratch workspaces.
//
// Keep orchestration here: pipeline stages live in assembly while the daemon
// focuses on startup, shutdown, and status.
package daemon
