// Package preflight provides readiness checks for the filesystem paths and
// external services screendescribe depends on.
//
// These checks run in two contexts:
//   - `run-scheduled` and `run-once` call RunAll at startup and refuse to
//     start when a required check fails.
//   - The daemon's status endpoint caches RunAll output so `screendescribe
//     status` can show it without probing the inference server on every poll.
package preflight
