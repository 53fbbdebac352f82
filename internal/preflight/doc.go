// Package preflight provides readiness checks for the external services,
// binaries, and filesystem paths that reelforge depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup. Failed service checks are logged
//     as warnings; a missing required binary refuses startup outright, since
//     every job would fail at assembly anyway.
//   - The CLI "reelforge status" command uses the FromConfig variants to
//     display service health alongside queue state.
//
// Service checks are gated on their API keys -- unconfigured services are
// skipped rather than reported as failures.
package preflight
