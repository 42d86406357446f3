package preflight

import (
	"context"
	"path/filepath"

	"screendescribe/internal/config"
	"screendescribe/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string `json:"name"`
	Passed   bool   `json:"passed"`
	Detail   string `json:"detail,omitempty"`
	Advisory bool   `json:"advisory,omitempty"`
}

// Option adjusts RunAll.
type Option func(*runOptions)

type runOptions struct {
	skipInference bool
}

// SkipInference omits the network check against the inference endpoint.
func SkipInference() Option {
	return func(o *runOptions) { o.skipInference = true }
}

// RunAll executes all preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config, opts ...Option) []Result {
	if cfg == nil {
		return nil
	}
	var o runOptions
	for _, opt := range opts {
		opt(&o)
	}

	trackingDir := filepath.Dir(cfg.Tracking.OutputFile)
	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Tracking directory", trackingDir),
		CheckFreeSpace("Tracking free space", trackingDir, uint64(cfg.Tracking.MinFreeMiB)<<20),
	}
	results = append(results, FromDeps(deps.CheckBinaries([]deps.Requirement{
		deps.CaptureRequirement(cfg.Capture.Command),
	}))...)
	if !o.skipInference {
		// An unreachable endpoint is reported but does not block startup;
		// each run retries on its own.
		inference := CheckInference(ctx, cfg.Inference)
		inference.Advisory = true
		results = append(results, inference)
	}
	results = append(results, CheckNotifications(cfg))
	return results
}

// Failed returns the results that did not pass and are not advisory.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed && !r.Advisory {
			failed = append(failed, r)
		}
	}
	return failed
}

// FromDeps converts dependency statuses into results. Optional
// dependencies become advisory.
func FromDeps(statuses []deps.Status) []Result {
	results := make([]Result, 0, len(statuses))
	for _, s := range statuses {
		detail := s.Command
		if s.Detail != "" {
			detail = s.Detail
		}
		results = append(results, Result{
			Name:     s.Name,
			Passed:   s.Available,
			Detail:   detail,
			Advisory: s.Optional,
		})
	}
	return results
}
