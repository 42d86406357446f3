package config

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeCapture(); err != nil {
		return err
	}
	c.normalizeInference()
	if err := c.normalizeTracking(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	c.normalizeTracing()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeCapture() error {
	command := make([]string, 0, len(c.Capture.Command))
	for _, part := range c.Capture.Command {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	if len(command) == 0 {
		command = defaultCaptureCommand(runtime.GOOS)
	}
	c.Capture.Command = command
	if c.Capture.SettleDelaySeconds < 0 {
		c.Capture.SettleDelaySeconds = 0
	}
	if c.Capture.TimeoutSeconds <= 0 {
		c.Capture.TimeoutSeconds = defaultCaptureTimeoutSeconds
	}
	if strings.TrimSpace(c.Capture.TempDir) == "" {
		c.Capture.TempDir = os.TempDir()
	}
	var err error
	if c.Capture.TempDir, err = expandPath(c.Capture.TempDir); err != nil {
		return fmt.Errorf("capture.temp_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeInference() {
	c.Inference.BaseURL = strings.TrimSpace(c.Inference.BaseURL)
	if c.Inference.BaseURL == "" {
		c.Inference.BaseURL = defaultInferenceBaseURL
	}
	c.Inference.APIKey = strings.TrimSpace(c.Inference.APIKey)
	if c.Inference.APIKey == "" {
		if value, ok := os.LookupEnv("SCREENDESCRIBE_INFERENCE_API_KEY"); ok {
			c.Inference.APIKey = strings.TrimSpace(value)
		}
	}
	c.Inference.Model = strings.TrimSpace(c.Inference.Model)
	if c.Inference.Model == "" {
		c.Inference.Model = defaultInferenceModel
	}
	c.Inference.Prompt = strings.TrimSpace(c.Inference.Prompt)
	if c.Inference.Prompt == "" {
		c.Inference.Prompt = DefaultPrompt
	}
	if c.Inference.MaxTokens <= 0 {
		c.Inference.MaxTokens = defaultInferenceMaxTokens
	}
	if c.Inference.TimeoutSeconds <= 0 {
		c.Inference.TimeoutSeconds = defaultInferenceTimeoutSeconds
	}
	if c.Inference.RetryAttempts <= 0 {
		c.Inference.RetryAttempts = 1
	}
}

func (c *Config) normalizeTracking() error {
	var err error
	if strings.TrimSpace(c.Tracking.OutputFile) == "" {
		c.Tracking.OutputFile = defaultTrackingOutputFile
	}
	if c.Tracking.OutputFile, err = expandPath(c.Tracking.OutputFile); err != nil {
		return fmt.Errorf("tracking.output_file: %w", err)
	}
	if c.Tracking.PreviewLength <= 0 {
		c.Tracking.PreviewLength = defaultPreviewLength
	}
	if c.Tracking.MinFreeMiB < 0 {
		c.Tracking.MinFreeMiB = 0
	}
	if c.Tracking.HistoryRetentionDays < 0 {
		c.Tracking.HistoryRetentionDays = 0
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SCREENDESCRIBE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level

	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
	if c.Logging.BufferSize <= 0 {
		c.Logging.BufferSize = defaultLogBufferSize
	}
}

func (c *Config) normalizeTracing() {
	exporter := strings.ToLower(strings.TrimSpace(c.Tracing.Exporter))
	if exporter == "" {
		exporter = defaultTracingExporter
	}
	c.Tracing.Exporter = exporter
	c.Tracing.Endpoint = strings.TrimSpace(c.Tracing.Endpoint)
}
