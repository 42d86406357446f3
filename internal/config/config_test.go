package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"screendescribe/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("SCREENDESCRIBE_INFERENCE_API_KEY", "env-key")
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "screendescribe", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	wantOutput := filepath.Join(tempHome, "Desktop", "TimeTracking.txt")
	if cfg.Tracking.OutputFile != wantOutput {
		t.Fatalf("unexpected output file: got %q want %q", cfg.Tracking.OutputFile, wantOutput)
	}
	if cfg.Schedule.IntervalSeconds != 1800 {
		t.Fatalf("expected default interval 1800, got %d", cfg.Schedule.IntervalSeconds)
	}
	if cfg.Inference.APIKey != "env-key" {
		t.Fatalf("expected API key from env, got %q", cfg.Inference.APIKey)
	}
	if cfg.Inference.Prompt != config.DefaultPrompt {
		t.Fatal("expected default prompt")
	}
	if cfg.Tracking.PreviewLength != 100 {
		t.Fatalf("expected preview length 100, got %d", cfg.Tracking.PreviewLength)
	}
	if len(cfg.Capture.Command) == 0 {
		t.Fatal("expected a default capture command")
	}
	if cfg.HistoryPath() != filepath.Join(tempHome, ".local", "share", "screendescribe", "history.db") {
		t.Fatalf("unexpected history path %q", cfg.HistoryPath())
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	configPath := filepath.Join(t.TempDir(), "config.toml")
	content := `
[paths]
log_dir = "~/logs"

[schedule]
interval_seconds = 60
run_on_start = true

[capture]
command = ["scrot", "-o"]
settle_delay_seconds = 0

[inference]
base_url = "https://vision.example/v1/chat/completions"
model = "local-vl"
api_key = "file-key"

[tracking]
output_file = "~/work/tracking.txt"
preview_length = 40

[logging]
format = "JSON"
level = "DEBUG"
`
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path %q", resolved)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "logs") {
		t.Fatalf("unexpected log dir %q", cfg.Paths.LogDir)
	}
	if got := cfg.Interval().Seconds(); got != 60 {
		t.Fatalf("unexpected interval %v", got)
	}
	if !cfg.Schedule.RunOnStart {
		t.Fatal("expected run_on_start")
	}
	if strings.Join(cfg.Capture.Command, " ") != "scrot -o" {
		t.Fatalf("unexpected capture command %v", cfg.Capture.Command)
	}
	if cfg.Inference.APIKey != "file-key" {
		t.Fatalf("unexpected api key %q", cfg.Inference.APIKey)
	}
	if cfg.Tracking.PreviewLength != 40 {
		t.Fatalf("unexpected preview length %d", cfg.Tracking.PreviewLength)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected lowercased logging settings, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
	if cfg.SocketPath() != filepath.Join(tempHome, "logs", "screendescribe.sock") {
		t.Fatalf("unexpected socket path %q", cfg.SocketPath())
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"zero interval", func(c *config.Config) { c.Schedule.IntervalSeconds = 0 }, "interval_seconds"},
		{"negative interval", func(c *config.Config) { c.Schedule.IntervalSeconds = -5 }, "interval_seconds"},
		{"empty capture", func(c *config.Config) { c.Capture.Command = nil }, "capture.command"},
		{"bad url", func(c *config.Config) { c.Inference.BaseURL = "ftp://host" }, "base_url"},
		{"temperature", func(c *config.Config) { c.Inference.Temperature = 3 }, "temperature"},
		{"log format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"log level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"otlp endpoint", func(c *config.Config) {
			c.Tracing.Enabled = true
			c.Tracing.Exporter = "otlp"
		}, "tracing.endpoint"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadRejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(configPath, []byte("[schedule]\ninterval_seconds = 0\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, _, err := config.Load(configPath); err == nil {
		t.Fatal("expected zero interval to be rejected")
	}
}

func TestSampleConfigParses(t *testing.T) {
	var cfg config.Config
	if err := toml.Unmarshal([]byte(config.SampleConfig()), &cfg); err != nil {
		t.Fatalf("sample config does not parse: %v", err)
	}
	if cfg.Schedule.IntervalSeconds != 1800 {
		t.Fatalf("sample interval drifted from default: %d", cfg.Schedule.IntervalSeconds)
	}
}

func TestCreateSampleHonorsOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path, false); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if string(data) != config.SampleConfig() {
		t.Fatal("sample content mismatch")
	}
	if err := config.CreateSample(path, false); err == nil {
		t.Fatal("expected second CreateSample to fail")
	}
	if err := os.WriteFile(path, []byte("# edited"), 0o644); err != nil {
		t.Fatalf("edit sample: %v", err)
	}
	if err := config.CreateSample(path, true); err != nil {
		t.Fatalf("CreateSample overwrite: %v", err)
	}
	if data, _ := os.ReadFile(path); string(data) != config.SampleConfig() {
		t.Fatal("expected overwrite to restore the sample")
	}
}

func TestEncodeRoundTripsInterval(t *testing.T) {
	cfg := config.Default()
	cfg.Schedule.IntervalSeconds = 90
	text, err := cfg.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(text, "interval_seconds = 90") {
		t.Fatalf("encoded config missing interval:\n%s", text)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[schedule]\ninterval_second = 60\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "interval_second") {
		t.Fatalf("expected unknown key error naming the key, got %v", err)
	}
}

func TestLoadRejectsDirectory(t *testing.T) {
	if _, _, _, err := config.Load(t.TempDir()); err == nil {
		t.Fatal("expected directory config path to fail")
	}
}
