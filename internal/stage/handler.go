package stage

import "context"

// Step names used in results, logs, spans, and history rows.
const (
	Capture = "capture"
	Infer   = "infer"
	Log     = "log"
)

// Checker is implemented by collaborators that can report their readiness.
type Checker interface {
	HealthCheck(context.Context) Health
}
