package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"screendescribe/internal/config"
)

// Options configures New.
type Options struct {
	// Level is debug, info, warn or error. Anything else means info.
	Level string
	// Format is "console" (default) or "json".
	Format string
	// OutputPaths lists files to append to; "stdout" and "stderr" are
	// recognised. Empty means stdout.
	OutputPaths []string
	// Development adds source locations at every level.
	Development bool
	// Stream receives a copy of every record that passes the level filter.
	Stream *StreamHub
}

// New builds a logger from opts.
func New(opts Options) (*slog.Logger, error) {
	handler, err := buildHandler(opts)
	if err != nil {
		return nil, err
	}
	return slog.New(withStream(handler, opts.Stream)), nil
}

func buildHandler(opts Options) (slog.Handler, error) {
	level := ParseLevel(opts.Level)
	out, err := openOutputs(opts.OutputPaths)
	if err != nil {
		return nil, err
	}
	addSource := opts.Development || level == slog.LevelDebug
	switch format := strings.ToLower(strings.TrimSpace(opts.Format)); format {
	case "", "console":
		return newConsoleHandler(out, level, addSource), nil
	case "json":
		return newJSONHandler(out, level, addSource), nil
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}
}

// NewFromConfig builds the logger described by cfg.Logging, writing JSON
// lines to screendescribe.log in the log directory when one is configured.
func NewFromConfig(cfg *config.Config, stream *StreamHub) (*slog.Logger, error) {
	path := ""
	if cfg != nil && cfg.Paths.LogDir != "" {
		path = filepath.Join(cfg.Paths.LogDir, "screendescribe.log")
	}
	return NewWithFile(cfg, stream, path)
}

// NewWithFile logs to stdout in the configured format and, when logPath is
// not empty, also appends JSON lines to logPath. Both sinks share one level.
func NewWithFile(cfg *config.Config, stream *StreamHub, logPath string) (*slog.Logger, error) {
	opts := Options{Level: "info", Format: "console"}
	if cfg != nil {
		opts.Level, opts.Format = cfg.Logging.Level, cfg.Logging.Format
	}
	console, err := buildHandler(opts)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(logPath) == "" {
		return slog.New(withStream(console, stream)), nil
	}
	file, err := buildHandler(Options{Level: opts.Level, Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		return nil, err
	}
	return slog.New(withStream(tee(console, file), stream)), nil
}

// ParseLevel maps a config level name onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

func openOutputs(paths []string) (io.Writer, error) {
	var writers []io.Writer
	seen := make(map[string]bool, len(paths))
	for _, raw := range paths {
		path := strings.TrimSpace(raw)
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		w, err := openOutput(path)
		if err != nil {
			return nil, err
		}
		writers = append(writers, w)
	}
	switch len(writers) {
	case 0:
		return os.Stdout, nil
	case 1:
		return writers[0], nil
	}
	return io.MultiWriter(writers...), nil
}

func openOutput(path string) (io.Writer, error) {
	switch path {
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return file, nil
}
