package workflow

import "time"

// Outcome tags a Result.
type Outcome string

const (
	Success        Outcome = "success"
	Failure        Outcome = "failure"
	AlreadyRunning Outcome = "already_running"
	Closed         Outcome = "closed"
)

// Trigger names what started a run.
type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Result describes the end of one trigger.
//
// Success carries Description. Failure carries Stage and Err, where Err is a
// *StageError. AlreadyRunning and Closed carry only Err, and neither touches
// the status store.
type Result struct {
	Outcome     Outcome   `json:"outcome"`
	Description string    `json:"description,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Err         error     `json:"-"`
	RunID       string    `json:"run_id,omitempty"`
	Trigger     Trigger   `json:"trigger,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// Ran reports whether the trigger executed a run body.
func (r Result) Ran() bool {
	return r.Outcome == Success || r.Outcome == Failure
}

// ErrorMessage returns the error text, or an empty string.
func (r Result) ErrorMessage() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// Duration reports how long the run body took.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
