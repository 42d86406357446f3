package capture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"screendescribe/internal/config"
	"screendescribe/internal/logging"
	"screendescribe/internal/services"
	"screendescribe/internal/stage"
)

// Image is an in-memory screenshot.
type Image struct {
	Data       []byte
	MIMEType   string
	CapturedAt time.Time
}

// Size returns the encoded image size in bytes.
func (i Image) Size() int {
	return len(i.Data)
}

// CommandCapturer runs a screenshot program with the output path appended.
type CommandCapturer struct {
	command []string
	settle  time.Duration
	timeout time.Duration
	tempDir string
	logger  *slog.Logger
	sleep   func(context.Context, time.Duration) error
	now     func() time.Time
}

// Option customizes a CommandCapturer.
type Option func(*CommandCapturer)

// WithSleeper overrides how the settle delay is awaited (useful for tests).
func WithSleeper(sleep func(context.Context, time.Duration) error) Option {
	return func(c *CommandCapturer) {
		if sleep != nil {
			c.sleep = sleep
		}
	}
}

// WithClock overrides the capture timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *CommandCapturer) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCommandCapturer validates that the screenshot program exists and
// returns a capturer for it. A missing binary is a configuration error so the
// process fails at startup instead of on the first tick.
func NewCommandCapturer(cfg config.Capture, logger *slog.Logger, opts ...Option) (*CommandCapturer, error) {
	if len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, services.Wrap(services.ErrConfiguration, stage.Capture, "init", "capture.command is empty", nil)
	}
	if _, err := exec.LookPath(cfg.Command[0]); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, stage.Capture, "init",
			fmt.Sprintf("screenshot program %q not found", cfg.Command[0]), err)
	}
	c := &CommandCapturer{
		command: append([]string(nil), cfg.Command...),
		settle:  time.Duration(cfg.SettleDelaySeconds) * time.Second,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		tempDir: cfg.TempDir,
		logger:  logging.NewComponentLogger(logger, "capture"),
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Capture waits for the settle delay, runs the screenshot command and
// returns the resulting PNG.
func (c *CommandCapturer) Capture(ctx context.Context) (Image, error) {
	if c.settle > 0 {
		if err := c.sleep(ctx, c.settle); err != nil {
			return Image{}, fmt.Errorf("settle delay: %w", err)
		}
	}

	file, err := os.CreateTemp(c.tempDir, "screendescribe-*.png")
	if err != nil {
		return Image{}, services.Wrap(services.ErrTransient, stage.Capture, "temp file", "", err)
	}
	path := file.Name()
	_ = file.Close()
	// Some tools refuse to overwrite, so hand them a path that does not exist yet.
	_ = os.Remove(path)
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			c.logger.Warn("temporary screenshot not removed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldEventType, "capture_cleanup_failed"),
				logging.String(logging.FieldImpact, "a screenshot remains in the temp directory"),
			)
		}
	}()

	runCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), c.command[1:]...), path)
	cmd := exec.CommandContext(runCtx, c.command[0], args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	started := time.Now()
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return Image{}, services.Wrap(services.ErrTimeout, stage.Capture, c.command[0], fmt.Sprintf("timed out after %s", c.timeout), err)
		}
		return Image{}, services.Wrap(services.ErrExternalTool, stage.Capture, c.command[0], detail, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Image{}, services.Wrap(services.ErrExternalTool, stage.Capture, c.command[0], "no screenshot written", err)
	}
	if len(data) == 0 {
		return Image{}, services.Wrap(services.ErrExternalTool, stage.Capture, c.command[0], "screenshot file is empty", nil)
	}

	c.logger.Debug("screenshot captured",
		logging.Int("size_bytes", len(data)),
		logging.Duration("capture_duration", time.Since(started)),
	)
	return Image{Data: data, MIMEType: "image/png", CapturedAt: c.now()}, nil
}

// HealthCheck reports whether the screenshot program is still on PATH.
func (c *CommandCapturer) HealthCheck(context.Context) stage.Health {
	if _, err := exec.LookPath(c.command[0]); err != nil {
		return stage.Unhealthy(stage.Capture, fmt.Sprintf("%s not found", c.command[0]))
	}
	return stage.Healthy(stage.Capture)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
