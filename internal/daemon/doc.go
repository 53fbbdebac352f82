// Package daemon coordinates the long-running reelforge process.
//
// It wires configuration, queue storage, the workflow manager, and the HTTP
// API server into a single lifecycle with flock-based locking to prevent
// multiple instances. Start verifies required binaries before accepting work,
// requeues jobs interrupted by a previous shutdown, and sweeps staging
// directories left behind by finished jobs. The daemon exposes queue
// maintenance helpers, owns the submit and cancel write paths used by the
// API, and emits dependency health summaries for the status surfaces.
//
// Keep orchestration logic here: individual workflow stages live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
