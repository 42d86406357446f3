package workflow_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stretchr/testify/require"

	"screendescribe/internal/capture"
	"screendescribe/internal/history"
	"screendescribe/internal/notifications"
	"screendescribe/internal/stage"
	"screendescribe/internal/status"
	"screendescribe/internal/tracing"
	"screendescribe/internal/workflow"
)

// overlapTracker flags re-entrant use across all three steps.
type overlapTracker struct {
	inFlight  atomic.Int32
	reentered atomic.Bool
}

func (p *overlapTracker) enter() {
	if p.inFlight.Add(1) > 1 {
		p.reentered.Store(true)
	}
}

func (p *overlapTracker) exit() { p.inFlight.Add(-1) }

type fakeCapturer struct {
	steps *overlapTracker
	calls atomic.Int32
	err   error
	panic any
	block chan struct{}
	ready chan struct{}
}

func (f *fakeCapturer) Capture(ctx context.Context) (capture.Image, error) {
	f.steps.enter()
	defer f.steps.exit()
	f.calls.Add(1)
	if f.ready != nil {
		f.ready <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.panic != nil {
		panic(f.panic)
	}
	if f.err != nil {
		return capture.Image{}, f.err
	}
	return capture.Image{Data: []byte("png"), MIMEType: "image/png", CapturedAt: time.Now()}, nil
}

type fakeDescriber struct {
	steps       *overlapTracker
	calls       atomic.Int32
	description string
	err         error
	panic       any
	outcomes    func(call int) error
}

func (f *fakeDescriber) Describe(ctx context.Context, img capture.Image) (string, error) {
	f.steps.enter()
	defer f.steps.exit()
	call := int(f.calls.Add(1))
	if f.panic != nil {
		panic(f.panic)
	}
	if f.outcomes != nil {
		if err := f.outcomes(call); err != nil {
			return "", err
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.description, nil
}

type fakeAppender struct {
	steps *overlapTracker
	mu    sync.Mutex
	lines []string
	err   error
}

func (f *fakeAppender) Append(ctx context.Context, description string, at time.Time) error {
	f.steps.enter()
	defer f.steps.exit()
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	f.lines = append(f.lines, description)
	f.mu.Unlock()
	return nil
}

func (f *fakeAppender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lines)
}

func (f *fakeAppender) HealthCheck(context.Context) stage.Health {
	return stage.Unhealthy(stage.Log, "read-only")
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notifications.Event
	err    error
}

func (n *recordingNotifier) Publish(_ context.Context, event notifications.Event, _ notifications.Payload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

func (n *recordingNotifier) snapshot() []notifications.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifications.Event(nil), n.events...)
}

type memoryHistory struct {
	mu   sync.Mutex
	runs []history.Run
	err  error
}

func (h *memoryHistory) Append(_ context.Context, run history.Run) error {
	if h.err != nil {
		return h.err
	}
	h.mu.Lock()
	h.runs = append(h.runs, run)
	h.mu.Unlock()
	return nil
}

type harness struct {
	steps     *overlapTracker
	capturer  *fakeCapturer
	describer *fakeDescriber
	appender  *fakeAppender
	notifier  *recordingNotifier
	history   *memoryHistory
	store     *status.Store
	orch      *workflow.Orchestrator
}

func newHarness(t require.TestingT, opts ...workflow.Option) *harness {
	p := &overlapTracker{}
	h := &harness{
		steps:     p,
		capturer:  &fakeCapturer{steps: p},
		describer: &fakeDescriber{steps: p, description: "Editing Go code in a terminal"},
		appender:  &fakeAppender{steps: p},
		notifier:  &recordingNotifier{},
		history:   &memoryHistory{},
		store:     status.NewStore(),
	}
	var seq atomic.Int64
	base := []workflow.Option{
		workflow.WithTracer(tracing.Noop()),
		workflow.WithRunIDGenerator(func() string { return fmt.Sprintf("run-%d", seq.Add(1)) }),
	}
	orch, err := workflow.New(workflow.Deps{
		Capturer:  h.capturer,
		Describer: h.describer,
		Appender:  h.appender,
		Status:    h.store,
		Notifier:  h.notifier,
		History:   h.history,
	}, append(base, opts...)...)
	require.NoError(t, err)
	h.orch = orch
	return h
}

var errModelNotFound = errors.New("model not found")
