// Package deps reports whether the external programs screendescribe shells
// out to are installed.
package deps

import (
	"os/exec"
	"strings"
)

// Requirement is an external program the workflow runs.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status is the outcome of looking a Requirement up on PATH. Detail holds
// the resolved path when it differs from Command, or why the lookup failed.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional,omitempty"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// CaptureRequirement describes the screenshot program from capture.command.
// Flags after the program name are not checked.
func CaptureRequirement(command []string) Requirement {
	req := Requirement{Name: "Screenshot command", Description: "Required for the capture step"}
	if len(command) > 0 {
		req.Command = command[0]
	}
	return req
}

// CheckBinaries looks up every requirement, preserving order.
func CheckBinaries(requirements []Requirement) []Status {
	out := make([]Status, len(requirements))
	for i, req := range requirements {
		out[i] = check(req)
	}
	return out
}

func check(req Requirement) Status {
	st := Status{
		Name:        req.Name,
		Command:     strings.TrimSpace(req.Command),
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if st.Command == "" {
		st.Detail = "command not configured"
		return st
	}
	path, err := exec.LookPath(st.Command)
	switch {
	case err != nil:
		st.Detail = "binary \"" + st.Command + "\" not found"
	case path == st.Command:
		st.Available = true
	default:
		st.Available = true
		st.Detail = path
	}
	return st
}

// MissingRequired filters statuses down to unavailable, non-optional entries.
func MissingRequired(statuses []Status) []Status {
	var missing []Status
	for _, st := range statuses {
		if !st.Optional && !st.Available {
			missing = append(missing, st)
		}
	}
	return missing
}
