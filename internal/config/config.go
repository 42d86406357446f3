package config

import (
	"path/filepath"
	"time"
)

// Paths contains directory configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	StateDir string `toml:"state_dir"`
}

// Schedule controls how often the workflow runs in scheduled mode.
type Schedule struct {
	IntervalSeconds int  `toml:"interval_seconds"`
	RunOnStart      bool `toml:"run_on_start"`
}

// Capture configures the screenshot command.
type Capture struct {
	// Command is the screenshot program and its flags. The output PNG path is
	// appended as the final argument.
	Command            []string `toml:"command"`
	SettleDelaySeconds int      `toml:"settle_delay_seconds"`
	TimeoutSeconds     int      `toml:"timeout_seconds"`
	TempDir            string   `toml:"temp_dir"`
}

// Inference configures the OpenAI-compatible vision endpoint.
type Inference struct {
	BaseURL          string  `toml:"base_url"`
	APIKey           string  `toml:"api_key"`
	Model            string  `toml:"model"`
	Prompt           string  `toml:"prompt"`
	Temperature      float64 `toml:"temperature"`
	MaxTokens        int     `toml:"max_tokens"`
	FrequencyPenalty float64 `toml:"frequency_penalty"`
	TimeoutSeconds   int     `toml:"timeout_seconds"`
	RetryAttempts    int     `toml:"retry_attempts"`
}

// Tracking configures the append-only time tracking file.
type Tracking struct {
	OutputFile    string `toml:"output_file"`
	PreviewLength int    `toml:"preview_length"`
	MinFreeMiB    int    `toml:"min_free_mib"`

	// HistoryRetentionDays prunes run history older than this many days.
	// Zero keeps every run.
	HistoryRetentionDays int `toml:"history_retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Failures       bool   `toml:"failures"`
	Recovery       bool   `toml:"recovery"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
	BufferSize    int    `toml:"buffer_size"`
}

// Tracing contains configuration for OpenTelemetry span export.
type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	Exporter string `toml:"exporter"`
	Endpoint string `toml:"endpoint"`
	Insecure bool   `toml:"insecure"`
}

// Config encapsulates all configuration values for screendescribe.
//
// Configuration sections by subsystem:
//   - Paths: log and state directories
//   - Schedule: scheduled-mode interval
//   - Capture: screenshot command and settle delay
//   - Inference: vision model endpoint, prompt and sampling parameters
//   - Tracking: output file and status preview length
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, retention and in-memory buffer
//   - Tracing: OpenTelemetry exporter settings
type Config struct {
	Paths         Paths         `toml:"paths"`
	Schedule      Schedule      `toml:"schedule"`
	Capture       Capture       `toml:"capture"`
	Inference     Inference     `toml:"inference"`
	Tracking      Tracking      `toml:"tracking"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
	Tracing       Tracing       `toml:"tracing"`
}

// Interval returns the schedule interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Schedule.IntervalSeconds) * time.Second
}

// SocketPath returns the IPC socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.LogDir, "screendescribe.sock")
}

// LockPath returns the daemon instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "screendescribe.lock")
}

// PIDPath returns the daemon pid file location.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.LogDir, "screendescribe.pid")
}

// HistoryPath returns the run history database location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}
