package workflow

import (
	"errors"
	"fmt"

	"screendescribe/internal/stage"
)

var (
	// ErrCapture marks failures of the screenshot step.
	ErrCapture = errors.New("capture failed")
	// ErrInfer marks failures of the description step.
	ErrInfer = errors.New("inference failed")
	// ErrLog marks failures of the tracking-file step.
	ErrLog = errors.New("log write failed")
	// ErrAlreadyRunning is returned when a trigger finds the run slot taken.
	ErrAlreadyRunning = errors.New("workflow already running")
	// ErrClosed is returned for triggers issued after Close.
	ErrClosed = errors.New("workflow closed")
	// ErrEmptyDescription is reported when the describer returns only whitespace.
	ErrEmptyDescription = errors.New("empty description")
)

// StageError attributes a run failure to one step.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("%s step failed", e.Stage)
	}
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

// Unwrap exposes both the step marker and the underlying cause so callers can
// match either with errors.Is.
func (e *StageError) Unwrap() []error {
	if e == nil {
		return nil
	}
	errs := make([]error, 0, 2)
	if marker := stageMarker(e.Stage); marker != nil {
		errs = append(errs, marker)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func stageMarker(name string) error {
	switch name {
	case stage.Capture:
		return ErrCapture
	case stage.Infer:
		return ErrInfer
	case stage.Log:
		return ErrLog
	default:
		return nil
	}
}
