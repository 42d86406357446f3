// Package daemon coordinates the long-running screendescribe process.
//
// It wires configuration, the workflow orchestrator, the scheduler and the
// run history into a single lifecycle with flock-based locking to prevent
// multiple instances. The daemon pauses and resumes the scheduler on request,
// runs manual triggers, applies reloaded configuration, and caches health
// and preflight results so status polls stay cheap.
//
// Keep orchestration logic here: individual workflow steps live in their own
// packages while the daemon focuses on startup, shutdown and coordination.
package daemon
