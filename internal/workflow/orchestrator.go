package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"screendescribe/internal/capture"
	"screendescribe/internal/history"
	"screendescribe/internal/logging"
	"screendescribe/internal/notifications"
	"screendescribe/internal/services"
	"screendescribe/internal/stage"
	"screendescribe/internal/status"
	"screendescribe/internal/textutil"
	"screendescribe/internal/tracing"
)

// DefaultPreviewLength bounds the status preview in runes.
const DefaultPreviewLength = 100

// Capturer grabs the current screen.
type Capturer interface {
	Capture(ctx context.Context) (capture.Image, error)
}

// Describer turns a screenshot into a short activity description.
type Describer interface {
	Describe(ctx context.Context, img capture.Image) (string, error)
}

// Appender persists one timestamped description.
type Appender interface {
	Append(ctx context.Context, description string, at time.Time) error
}

// HistoryRecorder stores finished runs.
type HistoryRecorder interface {
	Append(ctx context.Context, run history.Run) error
}

// Deps bundles the collaborators an Orchestrator drives. Capturer, Describer,
// Appender and Status are required.
type Deps struct {
	Capturer  Capturer
	Describer Describer
	Appender  Appender
	Status    *status.Store
	Logger    *slog.Logger
	Notifier  notifications.Service
	History   HistoryRecorder
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock overrides the time source used for run timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRunIDGenerator overrides run id generation.
func WithRunIDGenerator(next func() string) Option {
	return func(o *Orchestrator) {
		if next != nil {
			o.newRunID = next
		}
	}
}

// WithTracer overrides the tracer used for run and step spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithPreviewLength sets the status preview limit in runes.
func WithPreviewLength(limit int) Option {
	return func(o *Orchestrator) {
		if limit > 0 {
			o.previewLength = limit
		}
	}
}

// Orchestrator runs capture, infer and log in order under a single-flight guard.
type Orchestrator struct {
	capturer  Capturer
	describer Describer
	appender  Appender
	status    *status.Store
	logger    *slog.Logger
	notifier  notifications.Service
	history   HistoryRecorder

	now           func() time.Time
	newRunID      func() string
	tracer        trace.Tracer
	previewLength int

	slot    *runSlot
	closed  atomic.Bool
	closeMu sync.Mutex
	stopped bool

	// consecutiveFailures is only touched while the run slot is held.
	consecutiveFailures int
}

// New constructs an Orchestrator.
func New(deps Deps, opts ...Option) (*Orchestrator, error) {
	switch {
	case deps.Capturer == nil:
		return nil, errors.New("workflow: capturer required")
	case deps.Describer == nil:
		return nil, errors.New("workflow: describer required")
	case deps.Appender == nil:
		return nil, errors.New("workflow: appender required")
	case deps.Status == nil:
		return nil, errors.New("workflow: status store required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewService(nil)
	}
	o := &Orchestrator{
		capturer:      deps.Capturer,
		describer:     deps.Describer,
		appender:      deps.Appender,
		status:        deps.Status,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		notifier:      notifier,
		history:       deps.History,
		now:           time.Now,
		newRunID:      uuid.NewString,
		tracer:        tracing.Tracer("workflow"),
		previewLength: DefaultPreviewLength,
		slot:          newRunSlot(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Status returns the store the orchestrator reports into.
func (o *Orchestrator) Status() *status.Store {
	return o.status
}

// RunScheduled executes one scheduled run. Busy and closed outcomes are
// logged and dropped.
func (o *Orchestrator) RunScheduled(ctx context.Context) {
	o.execute(ctx, TriggerScheduled)
}

// TriggerOnce runs the workflow on the caller's goroutine. When a run is
// already in flight it returns AlreadyRunning immediately without touching
// the status store.
func (o *Orchestrator) TriggerOnce(ctx context.Context) Result {
	return o.execute(ctx, TriggerManual)
}

// Close waits for any in-flight run to finish, marks the store stopped and
// rejects later triggers with Closed.
func (o *Orchestrator) Close(ctx context.Context) error {
	o.closed.Store(true)
	o.closeMu.Lock()
	defer o.closeMu.Unlock()
	if o.stopped {
		return nil
	}
	if o.slot.tryAcquire() == busy {
		if err := o.slot.acquire(ctx); err != nil {
			return fmt.Errorf("wait for in-flight run: %w", err)
		}
	}
	// The slot stays held so nothing can start after this point.
	o.stopped = true
	o.status.Set(status.Stopped)
	o.logger.Info("workflow closed", logging.String(logging.FieldEventType, "workflow_closed"))
	return nil
}

// HealthCheck reports readiness of every collaborator that can describe it.
func (o *Orchestrator) HealthCheck(ctx context.Context) []stage.Health {
	steps := []struct {
		name string
		impl any
	}{
		{stage.Capture, o.capturer},
		{stage.Infer, o.describer},
		{stage.Log, o.appender},
	}
	results := make([]stage.Health, 0, len(steps))
	for _, step := range steps {
		checker, ok := step.impl.(stage.Checker)
		if !ok {
			results = append(results, stage.Healthy(step.name))
			continue
		}
		health := checker.HealthCheck(ctx)
		if strings.TrimSpace(health.Name) == "" {
			health.Name = step.name
		}
		results = append(results, health)
	}
	return results
}

func (o *Orchestrator) execute(ctx context.Context, trigger Trigger) Result {
	logger := o.logger.With(logging.String(logging.FieldTrigger, string(trigger)))
	if o.closed.Load() {
		logger.Debug("trigger ignored after close", logging.String(logging.FieldEventType, "trigger_closed"))
		return Result{Outcome: Closed, Trigger: trigger, Err: ErrClosed}
	}
	if o.slot.tryAcquire() == busy {
		logger.Info("run already in progress; trigger dropped",
			logging.String(logging.FieldEventType, "trigger_dropped"),
		)
		return Result{Outcome: AlreadyRunning, Trigger: trigger, Err: ErrAlreadyRunning}
	}
	defer o.slot.release()
	if o.closed.Load() {
		return Result{Outcome: Closed, Trigger: trigger, Err: ErrClosed}
	}

	runID := o.newRunID()
	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithTrigger(ctx, string(trigger))
	ctx, span := o.tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("run.trigger", string(trigger)),
	))
	defer span.End()
	runLogger := logging.WithContext(ctx, o.logger)

	result := Result{RunID: runID, Trigger: trigger, StartedAt: o.now()}
	o.status.MarkRunning(runID)
	runLogger.Info("run started", logging.String(logging.FieldEventType, "run_start"))

	description, stepErr := o.runSteps(ctx, runLogger)
	result.FinishedAt = o.now()

	if stepErr != nil {
		result.Outcome = Failure
		result.Stage = stepErr.Stage
		result.Err = stepErr
		o.status.RecordFailure(stepErr, result.FinishedAt)
		span.RecordError(stepErr)
		span.SetStatus(codes.Error, stepErr.Error())
		o.consecutiveFailures++
		runLogger.Error("run failed",
			logging.String(logging.FieldEventType, "run_failed"),
			logging.String(logging.FieldStage, stepErr.Stage),
			logging.Error(stepErr.Err),
			logging.String(logging.FieldErrorHint, failureHint(stepErr.Stage)),
			logging.Int("consecutive_failures", o.consecutiveFailures),
			logging.Duration("run_duration", result.Duration()),
		)
		o.notify(ctx, runLogger, notifications.EventRunFailed, notifications.Payload{
			"stage":  stepErr.Stage,
			"error":  errorText(stepErr.Err),
			"run_id": runID,
		})
	} else {
		result.Outcome = Success
		result.Description = description
		o.status.RecordSuccess(textutil.Preview(description, o.previewLength), result.FinishedAt)
		span.SetStatus(codes.Ok, "")
		runLogger.Info("run completed",
			logging.String(logging.FieldEventType, "run_complete"),
			logging.String("preview", textutil.Preview(description, o.previewLength)),
			logging.Duration("run_duration", result.Duration()),
		)
		if o.consecutiveFailures > 0 {
			o.notify(ctx, runLogger, notifications.EventRunRecovered, notifications.Payload{
				"failures":    o.consecutiveFailures,
				"description": textutil.Preview(description, o.previewLength),
			})
		}
		o.consecutiveFailures = 0
	}

	o.recordHistory(ctx, runLogger, result)
	return result
}

func (o *Orchestrator) runSteps(ctx context.Context, logger *slog.Logger) (string, *StageError) {
	var img capture.Image
	if err := o.step(ctx, logger, stage.Capture, func(ctx context.Context) error {
		var err error
		img, err = o.capturer.Capture(ctx)
		return err
	}); err != nil {
		return "", &StageError{Stage: stage.Capture, Err: err}
	}

	var description string
	if err := o.step(ctx, logger, stage.Infer, func(ctx context.Context) error {
		var err error
		description, err = o.describer.Describe(ctx, img)
		if err == nil && strings.TrimSpace(description) == "" {
			err = ErrEmptyDescription
		}
		return err
	}); err != nil {
		return "", &StageError{Stage: stage.Infer, Err: err}
	}
	description = strings.TrimSpace(description)

	if err := o.step(ctx, logger, stage.Log, func(ctx context.Context) error {
		return o.appender.Append(ctx, description, o.now())
	}); err != nil {
		return "", &StageError{Stage: stage.Log, Err: err}
	}
	return description, nil
}

// step runs fn inside a child span and converts a panic into an error.
func (o *Orchestrator) step(ctx context.Context, logger *slog.Logger, name string, fn func(context.Context) error) (err error) {
	ctx = services.WithStage(ctx, name)
	ctx, span := o.tracer.Start(ctx, "workflow."+name)
	defer span.End()
	stepLogger := logger.With(logging.String(logging.FieldStage, name))
	started := time.Now()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		stepLogger.Debug("step completed",
			logging.String(logging.FieldEventType, "step_complete"),
			logging.Duration("step_duration", time.Since(started)),
		)
	}()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			stepLogger.Error("step panicked",
				logging.String(logging.FieldEventType, "step_panic"),
				logging.String("panic", fmt.Sprint(r)),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	stepLogger.Debug("step started", logging.String(logging.FieldEventType, "step_start"))
	return fn(ctx)
}

func (o *Orchestrator) notify(ctx context.Context, logger *slog.Logger, event notifications.Event, payload notifications.Payload) {
	if err := o.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logger, "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check ntfy topic and network connectivity"),
			logging.String(logging.FieldImpact, "run outcome was not pushed"),
		)
	}
}

func (o *Orchestrator) recordHistory(ctx context.Context, logger *slog.Logger, result Result) {
	if o.history == nil {
		return
	}
	run := history.Run{
		ID:          result.RunID,
		Trigger:     string(result.Trigger),
		Outcome:     string(result.Outcome),
		Stage:       result.Stage,
		Description: result.Description,
		StartedAt:   result.StartedAt,
		FinishedAt:  result.FinishedAt,
	}
	var stageErr *StageError
	if errors.As(result.Err, &stageErr) {
		run.Error = errorText(stageErr.Err)
	}
	if err := o.history.Append(context.WithoutCancel(ctx), run); err != nil {
		logging.WarnWithContext(logger, "history append failed", "history_append_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check state_dir permissions and disk space"),
			logging.String(logging.FieldImpact, "run missing from history output"),
		)
	}
}

func failureHint(name string) string {
	switch name {
	case stage.Capture:
		return "check the capture command and screen recording permission"
	case stage.Infer:
		return "check that the inference server is running and the model is loaded"
	case stage.Log:
		return "check tracking.output_file permissions and free space"
	default:
		return "check logs for details"
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
