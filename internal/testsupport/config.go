// Package testsupport builds configs, stub binaries and stores for tests.
package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"screendescribe/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Settle delay is zero and notifications are off.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Tracking.OutputFile = filepath.Join(base, "tracking", "TimeTracking.txt")
	cfgVal.Capture.SettleDelaySeconds = 0
	cfgVal.Capture.TempDir = filepath.Join(base, "tmp")
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}
	for _, opt := range opts {
		opt(builder)
	}
	for _, dir := range []string{cfgVal.Paths.LogDir, cfgVal.Paths.StateDir, cfgVal.Capture.TempDir, filepath.Dir(cfgVal.Tracking.OutputFile)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	return builder.cfg
}

// WithInterval sets the schedule interval.
func WithInterval(seconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Schedule.IntervalSeconds = seconds
	}
}

// WithInferenceURL points inference at a test server's chat completions path.
func WithInferenceURL(serverURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Inference.BaseURL = serverURL + "/v1/chat/completions"
		b.cfg.Inference.RetryAttempts = 1
	}
}

// WithStubbedCapture writes a screenshot stub that copies a tiny PNG header
// into the path passed as its last argument, prepends it to PATH, and sets it
// as the capture command.
func WithStubbedCapture() ConfigOption {
	return func(b *configBuilder) {
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nfor last; do :; done\nprintf '\\211PNG\\r\\n\\032\\n' > \"$last\"\n")
		target := filepath.Join(binDir, "fake-screenshot")
		if err := os.WriteFile(target, script, 0o755); err != nil {
			b.t.Fatalf("write capture stub: %v", err)
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
		b.cfg.Capture.Command = []string{"fake-screenshot"}
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
