package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	gocache "github.com/patrickmn/go-cache"

	"screendescribe/internal/config"
	"screendescribe/internal/history"
	"screendescribe/internal/logging"
	"screendescribe/internal/notifications"
	"screendescribe/internal/preflight"
	"screendescribe/internal/scheduler"
	"screendescribe/internal/stage"
	"screendescribe/internal/status"
	"screendescribe/internal/workflow"
)

const (
	defaultHealthTTL = time.Minute
	cacheKeyHealth   = "health"
	cacheKeyChecks   = "preflight"
)

// ErrAlreadyRunning is returned when another daemon holds the instance lock.
var ErrAlreadyRunning = errors.New("another screendescribe daemon instance is already running")

// Deps bundles what the daemon coordinates. Config, Orchestrator and Status
// are required.
type Deps struct {
	Config       *config.Config
	ConfigPath   string
	Orchestrator *workflow.Orchestrator
	Status       *status.Store
	History      *history.Store
	Notifier     notifications.Service
	LogHub       *logging.StreamHub
	Logger       *slog.Logger
	LogPath      string
}

// Option customizes a Daemon.
type Option func(*Daemon)

// WithTickerFactory injects the scheduler's ticker, typically in tests.
func WithTickerFactory(factory scheduler.TickerFactory) Option {
	return func(d *Daemon) { d.tickerFactory = factory }
}

// WithPreflight replaces the preflight runner used for status output.
func WithPreflight(run func(context.Context, *config.Config) []preflight.Result) Option {
	return func(d *Daemon) {
		if run != nil {
			d.runPreflight = run
		}
	}
}

// WithHealthTTL sets how long health and preflight results are cached.
func WithHealthTTL(ttl time.Duration) Option {
	return func(d *Daemon) {
		if ttl > 0 {
			d.healthTTL = ttl
		}
	}
}

// Daemon owns the scheduler and the instance lock for one process.
type Daemon struct {
	cfg        *config.Config
	configPath string
	orch       *workflow.Orchestrator
	store      *status.Store
	history    *history.Store
	notifier   notifications.Service
	logHub     *logging.StreamHub
	logger     *slog.Logger
	logPath    string

	lockPath string
	lock     *flock.Flock

	tickerFactory scheduler.TickerFactory
	runPreflight  func(context.Context, *config.Config) []preflight.Result
	healthTTL     time.Duration
	cache         *gocache.Cache

	mu        sync.Mutex
	ctx       context.Context
	sched     *scheduler.Scheduler
	started   bool
	paused    bool
	startedAt time.Time
	wg        sync.WaitGroup
}

// Status represents daemon runtime information.
type Status struct {
	Snapshot         status.Snapshot
	SchedulerRunning bool
	Paused           bool
	IntervalSeconds  int
	NextRunAt        *time.Time
	StartedAt        time.Time
	PID              int
	ConfigPath       string
	LockPath         string
	LogPath          string
	HistoryPath      string
	Health           []stage.Health
	Preflight        []preflight.Result
}

// New constructs a daemon. Nothing runs until Start.
func New(deps Deps, opts ...Option) (*Daemon, error) {
	if deps.Config == nil || deps.Orchestrator == nil || deps.Status == nil {
		return nil, errors.New("daemon requires config, orchestrator, and status store")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(deps.Config)
	}
	lockPath := deps.Config.LockPath()
	d := &Daemon{
		cfg:        deps.Config,
		configPath: deps.ConfigPath,
		orch:       deps.Orchestrator,
		store:      deps.Status,
		history:    deps.History,
		notifier:   notifier,
		logHub:     deps.LogHub,
		logger:     logging.NewComponentLogger(logger, "daemon"),
		logPath:    deps.LogPath,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
		runPreflight: func(ctx context.Context, cfg *config.Config) []preflight.Result {
			return preflight.RunAll(ctx, cfg)
		},
		healthTTL: defaultHealthTTL,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.cache = gocache.New(d.healthTTL, 2*d.healthTTL)
	return d, nil
}

// Start acquires the instance lock and arms the scheduler.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}

	sched, err := d.newScheduler(d.cfg)
	if err != nil {
		_ = d.lock.Unlock()
		return err
	}
	if err := sched.Start(ctx); err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}

	d.ctx = ctx
	d.sched = sched
	d.started = true
	d.paused = false
	d.startedAt = time.Now()
	d.logger.Info("screendescribe daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath),
		logging.Int("interval_seconds", d.cfg.Schedule.IntervalSeconds),
	)

	if d.cfg.Schedule.RunOnStart {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.orch.RunScheduled(context.WithoutCancel(ctx))
		}()
	}
	return nil
}

// Pause stops scheduled runs without exiting. A run already in progress
// finishes first. It reports whether the scheduler was running.
func (d *Daemon) Pause() bool {
	d.mu.Lock()
	sched := d.sched
	wasRunning := d.started && !d.paused && sched != nil && sched.IsRunning()
	if d.started {
		d.paused = true
	}
	d.mu.Unlock()

	if sched == nil {
		return false
	}
	sched.Stop()
	if wasRunning {
		d.logger.Info("scheduler paused", logging.String(logging.FieldEventType, "scheduler_paused"))
	}
	return wasRunning
}

// Resume re-arms the scheduler after Pause. The next run happens one full
// interval later.
func (d *Daemon) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.sched == nil {
		return errors.New("daemon not running")
	}
	if err := d.sched.Start(d.ctx); err != nil {
		return fmt.Errorf("resume scheduler: %w", err)
	}
	if d.paused {
		d.logger.Info("scheduler resumed", logging.String(logging.FieldEventType, "scheduler_resumed"))
	}
	d.paused = false
	return nil
}

// Trigger runs the workflow once on the caller's goroutine.
func (d *Daemon) Trigger(ctx context.Context) workflow.Result {
	return d.orch.TriggerOnce(ctx)
}

// ApplyConfig adopts a reloaded configuration. An interval change stops the
// current scheduler and arms a new one; other sections take effect on restart.
func (d *Daemon) ApplyConfig(cfg *config.Config) error {
	if cfg == nil {
		return errors.New("nil config")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	d.mu.Lock()
	previous := d.cfg
	d.cfg = cfg
	d.cache.Flush()
	if restartOnly := changedSections(previous, cfg); len(restartOnly) > 0 {
		logging.WarnWithContext(d.logger, "config changes need a restart", "config_restart_required",
			logging.String("sections", strings.Join(restartOnly, ",")),
			logging.String(logging.FieldImpact, "changes apply after the daemon restarts"),
			logging.String(logging.FieldErrorHint, "restart screendescribe run-scheduled"),
		)
	}
	if previous.Schedule.IntervalSeconds == cfg.Schedule.IntervalSeconds || !d.started {
		d.mu.Unlock()
		return nil
	}
	sched, err := d.newScheduler(cfg)
	if err != nil {
		d.mu.Unlock()
		return err
	}
	old := d.sched
	d.sched = sched
	d.mu.Unlock()

	// Closing waits for an in-flight scheduled run, so it happens unlocked.
	if old != nil {
		old.Close()
	}

	// Pause, Resume or another reload may have run meanwhile; the daemon's
	// state decides whether the new scheduler is armed.
	d.mu.Lock()
	defer d.mu.Unlock()
	armed := d.started && !d.paused && d.sched == sched
	if armed {
		if err := sched.Start(d.ctx); err != nil {
			return fmt.Errorf("restart scheduler: %w", err)
		}
	}
	d.logger.Info("schedule interval updated",
		logging.String(logging.FieldEventType, "interval_changed"),
		logging.Int("previous_seconds", previous.Schedule.IntervalSeconds),
		logging.Int("interval_seconds", cfg.Schedule.IntervalSeconds),
		logging.Bool("scheduler_running", armed),
	)
	return nil
}

// Config returns the active configuration.
func (d *Daemon) Config() *config.Config {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	cfg := d.cfg
	sched := d.sched
	st := Status{
		Paused:          d.paused,
		IntervalSeconds: cfg.Schedule.IntervalSeconds,
		StartedAt:       d.startedAt,
		PID:             os.Getpid(),
		ConfigPath:      d.configPath,
		LockPath:        d.lockPath,
		LogPath:         d.logPath,
	}
	d.mu.Unlock()

	st.Snapshot = d.store.Get()
	if sched != nil {
		st.SchedulerRunning = sched.IsRunning()
		if next, ok := sched.NextTickAt(); ok {
			st.NextRunAt = &next
		}
	}
	if d.history != nil {
		st.HistoryPath = d.history.Path()
	}
	st.Health = d.cachedHealth(ctx)
	st.Preflight = d.cachedPreflight(ctx, cfg)
	return st
}

// LogTail returns up to limit recent log events at or above level.
func (d *Daemon) LogTail(limit int, level string) []logging.LogEvent {
	if d.logHub == nil {
		return nil
	}
	events, _ := d.logHub.Tail(limit, level)
	return events
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// History returns recent runs, newest first.
func (d *Daemon) History(ctx context.Context, limit int) ([]history.Run, error) {
	if d.history == nil {
		return nil, errors.New("run history unavailable")
	}
	return d.history.Recent(ctx, limit)
}

// TestNotification sends a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	cfg := d.Config()
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Close stops the scheduler, waits for the in-flight run, and releases the lock.
func (d *Daemon) Close(ctx context.Context) error {
	d.mu.Lock()
	sched := d.sched
	started := d.started
	d.started = false
	d.sched = nil
	d.mu.Unlock()

	if sched != nil {
		sched.Close()
	}
	d.wg.Wait()
	err := d.orch.Close(ctx)
	if started {
		if unlockErr := d.lock.Unlock(); unlockErr != nil {
			d.logger.Warn("failed to release daemon lock",
				logging.Error(unlockErr),
				logging.String(logging.FieldEventType, "daemon_unlock_failed"),
				logging.String(logging.FieldImpact, "a stale lock may block the next start"),
				logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"),
			)
		}
		d.logger.Info("screendescribe daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
	}
	return err
}

func (d *Daemon) newScheduler(cfg *config.Config) (*scheduler.Scheduler, error) {
	var opts []scheduler.Option
	if d.tickerFactory != nil {
		opts = append(opts, scheduler.WithTickerFactory(d.tickerFactory))
	}
	sched, err := scheduler.New(scheduler.Config{IntervalSeconds: cfg.Schedule.IntervalSeconds}, d.orch, d.logger, opts...)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	return sched, nil
}

func (d *Daemon) cachedHealth(ctx context.Context) []stage.Health {
	if cached, ok := d.cache.Get(cacheKeyHealth); ok {
		return cached.([]stage.Health)
	}
	health := d.orch.HealthCheck(ctx)
	d.cache.SetDefault(cacheKeyHealth, health)
	return health
}

func (d *Daemon) cachedPreflight(ctx context.Context, cfg *config.Config) []preflight.Result {
	if cached, ok := d.cache.Get(cacheKeyChecks); ok {
		return cached.([]preflight.Result)
	}
	results := d.runPreflight(ctx, cfg)
	d.cache.SetDefault(cacheKeyChecks, results)
	return results
}

// changedSections names config sections that differ but only apply on restart.
func changedSections(previous, next *config.Config) []string {
	var changed []string
	pairs := []struct {
		name string
		a, b any
	}{
		{"paths", previous.Paths, next.Paths},
		{"capture", previous.Capture, next.Capture},
		{"inference", previous.Inference, next.Inference},
		{"tracking", previous.Tracking, next.Tracking},
		{"notifications", previous.Notifications, next.Notifications},
		{"logging", previous.Logging, next.Logging},
		{"tracing", previous.Tracing, next.Tracing},
	}
	for _, p := range pairs {
		if !reflect.DeepEqual(p.a, p.b) {
			changed = append(changed, p.name)
		}
	}
	if previous.Schedule.RunOnStart != next.Schedule.RunOnStart {
		changed = append(changed, "schedule.run_on_start")
	}
	return changed
}
