package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSchedule(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateInference(); err != nil {
		return err
	}
	if err := c.validateTracking(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateTracing(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSchedule() error {
	if c.Schedule.IntervalSeconds <= 0 {
		return errors.New("schedule.interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if len(c.Capture.Command) == 0 {
		return errors.New("capture.command must name a screenshot program")
	}
	return nil
}

func (c *Config) validateInference() error {
	parsed, err := url.Parse(c.Inference.BaseURL)
	if err != nil {
		return fmt.Errorf("inference.base_url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("inference.base_url must be an http(s) URL, got %q", c.Inference.BaseURL)
	}
	if c.Inference.Temperature < 0 || c.Inference.Temperature > 2 {
		return errors.New("inference.temperature must be between 0 and 2")
	}
	return nil
}

func (c *Config) validateTracking() error {
	if strings.TrimSpace(c.Tracking.OutputFile) == "" {
		return errors.New("tracking.output_file must be set")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}
	switch c.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if c.Tracing.Endpoint == "" {
			return errors.New("tracing.endpoint must be set when tracing.exporter is otlp")
		}
	default:
		return fmt.Errorf("tracing.exporter: unsupported value %q", c.Tracing.Exporter)
	}
	return nil
}
