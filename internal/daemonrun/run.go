package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"screendescribe/internal/config"
	"screendescribe/internal/daemon"
	"screendescribe/internal/ipc"
	"screendescribe/internal/logging"
	"screendescribe/internal/preflight"
	"screendescribe/internal/tracing"
	"screendescribe/internal/workflow"
)

const (
	logPointerName  = "screendescribe.log"
	shutdownTimeout = 10 * time.Second
)

// ErrPreflightFailed is returned when a gating startup check fails.
var ErrPreflightFailed = errors.New("preflight checks failed")

// Options configures daemon process runtime behavior.
type Options struct {
	// IntervalOverride replaces schedule.interval_seconds when positive,
	// including on config reloads.
	IntervalOverride int
	// ConfigPath is watched for edits when ConfigExists is set.
	ConfigPath   string
	ConfigExists bool
	Version      string
}

// Run starts the scheduled daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	applyOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("screendescribe-%s.log", stamp))
	logHub := logging.NewStreamHub(cfg.Logging.BufferSize)
	logger, err := logging.NewWithFile(cfg, logHub, logPath)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update %s link: %v\n", logPointerName, err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "screendescribe-*.log", Exclude: []string{logPath}},
	)

	shutdownTracing, err := tracing.Setup(signalCtx, cfg.Tracing, tracing.WithVersion(opts.Version))
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer flushTracing(logger, shutdownTracing)

	if err := runPreflight(signalCtx, logger, cfg); err != nil {
		return err
	}

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return err
	}
	defer p.close()
	pruneHistory(signalCtx, logger, p, cfg.Tracking.HistoryRetentionDays)

	d, err := daemon.New(daemon.Deps{
		Config:       cfg,
		ConfigPath:   opts.ConfigPath,
		Orchestrator: p.orchestrator,
		Status:       p.status,
		History:      p.history,
		Notifier:     p.notifier,
		LogHub:       logHub,
		Logger:       logger,
		LogPath:      logPath,
	})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		return err
	}
	// Shutdown lets a scheduled run in progress finish; only the step timeouts
	// bound that wait. shutdownTimeout applies to any run still holding the
	// workflow slot afterwards.
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := d.Close(ctx); err != nil {
			logging.WarnWithContext(logger, "daemon shutdown timed out waiting for the current run", "daemon_shutdown_incomplete",
				logging.Error(err),
				logging.Duration("timeout", shutdownTimeout),
				logging.String(logging.FieldImpact, "the run stops when the process exits and is missing from history"),
			)
		}
	}()

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ipcServer, err := ipc.NewServer(signalCtx, cfg.SocketPath(), d, logger)
	if err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer ipcServer.Close()
	ipcServer.Serve()

	if opts.ConfigExists && strings.TrimSpace(opts.ConfigPath) != "" {
		go func() {
			err := daemon.WatchConfig(signalCtx, opts.ConfigPath, logger, func(next *config.Config) error {
				applyOverrides(next, opts)
				return d.ApplyConfig(next)
			})
			if err != nil {
				logging.WarnWithContext(logger, "config watcher unavailable", "config_watch_unavailable",
					logging.Error(err),
					logging.String(logging.FieldImpact, "config edits need a restart"),
				)
			}
		}()
	}

	logger.Info("screendescribe running",
		logging.String(logging.FieldEventType, "daemon_ready"),
		logging.String("socket", cfg.SocketPath()),
		logging.String("tracking_file", cfg.Tracking.OutputFile),
		logging.Duration("interval", cfg.Interval()),
	)
	<-signalCtx.Done()
	logger.Info("screendescribe shutting down", logging.String(logging.FieldEventType, "daemon_shutdown"))
	return nil
}

// RunOnce performs a single capture, describe and log run without the
// scheduler or IPC server.
func RunOnce(ctx context.Context, cfg *config.Config, opts Options) (workflow.Result, error) {
	if cfg == nil {
		return workflow.Result{}, fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return workflow.Result{}, err
	}
	logger, err := logging.NewWithFile(cfg, nil, "")
	if err != nil {
		return workflow.Result{}, fmt.Errorf("init logger: %w", err)
	}

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing, tracing.WithVersion(opts.Version))
	if err != nil {
		return workflow.Result{}, fmt.Errorf("init tracing: %w", err)
	}
	defer flushTracing(logger, shutdownTracing)

	p, err := buildPipeline(cfg, logger)
	if err != nil {
		return workflow.Result{}, err
	}
	defer p.close()

	result := p.orchestrator.TriggerOnce(ctx)
	if err := p.orchestrator.Close(ctx); err != nil {
		logger.Debug("orchestrator close", logging.Error(err))
	}
	return result, nil
}

func applyOverrides(cfg *config.Config, opts Options) {
	if opts.IntervalOverride > 0 {
		cfg.Schedule.IntervalSeconds = opts.IntervalOverride
	}
}

func runPreflight(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	results := preflight.RunAll(ctx, cfg)
	for _, r := range results {
		attrs := []logging.Attr{
			logging.String("check", r.Name),
			logging.String("detail", r.Detail),
		}
		switch {
		case r.Passed:
			logger.Debug("preflight passed", logging.Args(attrs...)...)
		case r.Advisory:
			logging.WarnWithContext(logger, "preflight advisory", "preflight_advisory",
				append(attrs, logging.String(logging.FieldImpact, "runs may fail until this is resolved"))...)
		default:
			logging.ErrorWithContext(logger, "preflight failed", "preflight_failed",
				append(attrs, logging.String(logging.FieldErrorHint, "run screendescribe status for the full report"))...)
		}
	}
	if failed := preflight.Failed(results); len(failed) > 0 {
		names := make([]string, 0, len(failed))
		for _, r := range failed {
			names = append(names, r.Name)
		}
		return fmt.Errorf("%w: %s", ErrPreflightFailed, strings.Join(names, ", "))
	}
	return nil
}

func pruneHistory(ctx context.Context, logger *slog.Logger, p *pipeline, retentionDays int) {
	if retentionDays <= 0 || p.history == nil {
		return
	}
	removed, err := p.history.Prune(ctx, time.Now().AddDate(0, 0, -retentionDays))
	if err != nil {
		logging.WarnWithContext(logger, "history prune failed", "history_prune_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "old runs remain in the history database"),
		)
		return
	}
	if removed > 0 {
		logger.Info("pruned run history",
			logging.String(logging.FieldEventType, "history_pruned"),
			logging.Int64("removed", removed),
			logging.Int("retention_days", retentionDays),
		)
	}
}

func flushTracing(logger *slog.Logger, shutdown tracing.ShutdownFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Debug("tracing shutdown", logging.Error(err))
	}
}

func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, logPointerName)
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// ReadPID returns the pid recorded by a running daemon.
func ReadPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}
