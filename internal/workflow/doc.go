// Package workflow runs the capture, infer and log steps as one guarded run.
//
// The Orchestrator owns a single run slot. A trigger that finds the slot
// taken is dropped with an AlreadyRunning result rather than queued, so at
// most one run body executes at a time no matter how many schedulers or
// manual callers fire. Step failures never escape as errors or panics: they
// become Failure results, bump the status store's error count, and are
// recorded to history and notifications on a best-effort basis.
package workflow
