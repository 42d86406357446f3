// Package notifications pushes workflow events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// the orchestrator can publish unconditionally. Events are enumerated so
// message formatting lives here and not in workflow code.
package notifications
