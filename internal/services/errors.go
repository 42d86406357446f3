package services

import (
	"errors"
	"strings"
)

// Failure classes. Every error produced by a collaborator matches exactly one
// of these with errors.Is.
var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
)

// Error is a classified collaborator failure.
type Error struct {
	Kind   error
	Stage  string
	Op     string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	b.WriteString(": ")
	wrote := false
	for _, part := range []string{e.Stage, e.Op, e.Detail} {
		if part = strings.TrimSpace(part); part == "" {
			continue
		}
		if wrote {
			b.WriteString(": ")
		}
		b.WriteString(part)
		wrote = true
	}
	if !wrote {
		b.WriteString("service failure")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the class and the underlying cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Wrap classifies err as kind, recording the step and operation that failed.
// A nil kind is treated as ErrTransient. err may be nil.
func Wrap(kind error, stage, op, detail string, err error) error {
	if kind == nil {
		kind = ErrTransient
	}
	return &Error{Kind: kind, Stage: stage, Op: op, Detail: detail, Err: err}
}

// Retryable reports whether err is worth another attempt within the same run.
func Retryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrTimeout)
}
