package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"screendescribe/internal/logging"
)

// ErrClosed is returned by Start after Close.
var ErrClosed = errors.New("scheduler closed")

// Config controls the tick period. It is fixed for the scheduler's lifetime.
type Config struct {
	IntervalSeconds int
}

// Interval returns the tick period.
func (c Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

// Validate rejects non-positive intervals.
func (c Config) Validate() error {
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("interval_seconds must be positive, got %d", c.IntervalSeconds)
	}
	return nil
}

// Runner executes one scheduled run.
type Runner interface {
	RunScheduled(ctx context.Context)
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTickerFactory replaces the real ticker, typically with a manual one in tests.
func WithTickerFactory(factory TickerFactory) Option {
	return func(s *Scheduler) {
		if factory != nil {
			s.newTicker = factory
		}
	}
}

// WithClock overrides the time source used for NextTickAt.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPeriod overrides the tick period derived from Config. Tests use it to
// run sub-second intervals.
func WithPeriod(period time.Duration) Option {
	return func(s *Scheduler) {
		if period > 0 {
			s.period = period
		}
	}
}

// Scheduler drives a Runner from a repeating ticker.
type Scheduler struct {
	cfg       Config
	period    time.Duration
	runner    Runner
	logger    *slog.Logger
	newTicker TickerFactory
	now       func() time.Time

	mu       sync.Mutex
	running  bool
	closed   bool
	cancel   context.CancelFunc
	done     chan struct{}
	nextTick time.Time
}

// New constructs a stopped scheduler.
func New(cfg Config, runner Runner, logger *slog.Logger, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if runner == nil {
		return nil, errors.New("scheduler: runner required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Scheduler{
		cfg:       cfg,
		period:    cfg.Interval(),
		runner:    runner,
		logger:    logging.NewComponentLogger(logger, "scheduler"),
		newTicker: NewRealTicker,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Config returns the configuration the scheduler was built with.
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Start arms the ticker. It is a no-op when already running. The first tick
// fires one full period after Start.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if s.running {
		return nil
	}

	loopCtx, cancel := context.WithCancel(ctx)
	ticker := s.newTicker(s.period)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.running = true
	s.nextTick = s.now().Add(s.period)

	go s.loop(loopCtx, ticker, done)

	s.logger.Info("scheduler started",
		logging.String(logging.FieldEventType, "scheduler_start"),
		logging.Duration("interval", s.period),
		logging.Time("next_tick", s.nextTick),
	)
	return nil
}

// Stop disarms the ticker and waits for the loop to exit, including any run
// in progress. It is idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.cancel = nil
	s.done = nil
	s.nextTick = time.Time{}
	s.mu.Unlock()

	cancel()
	<-done
	s.logger.Info("scheduler stopped", logging.String(logging.FieldEventType, "scheduler_stop"))
}

// Close stops the scheduler permanently.
func (s *Scheduler) Close() {
	s.Stop()
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}

// IsRunning reports whether the ticker is armed.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextTickAt returns the expected time of the next tick, or false when stopped.
func (s *Scheduler) NextTickAt() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}, false
	}
	return s.nextTick, true
}

func (s *Scheduler) loop(ctx context.Context, ticker Ticker, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			// A tick and a stop can be ready together; stop wins.
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			s.nextTick = s.now().Add(s.period)
			s.mu.Unlock()
			s.fire(context.WithoutCancel(ctx))
		}
	}
}

func (s *Scheduler) fire(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled run panicked",
				logging.String(logging.FieldEventType, "scheduler_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
				logging.String(logging.FieldErrorHint, "report this crash; the scheduler keeps running"),
			)
		}
	}()
	s.logger.Debug("tick", logging.String(logging.FieldEventType, "scheduler_tick"))
	s.runner.RunScheduled(ctx)
}
