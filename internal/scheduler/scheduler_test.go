package scheduler_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendescribe/internal/capture"
	"screendescribe/internal/scheduler"
	"screendescribe/internal/status"
	"screendescribe/internal/tracing"
	"screendescribe/internal/workflow"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }

func (m *manualTicker) Stop() { m.stopped.Store(true) }

// tick delivers one tick and reports whether the loop received it.
func (m *manualTicker) tick(timeout time.Duration) bool {
	select {
	case m.ch <- time.Now():
		return true
	case <-time.After(timeout):
		return false
	}
}

type tickerSource struct {
	mu      sync.Mutex
	tickers []*manualTicker
	periods []time.Duration
}

func (s *tickerSource) factory(period time.Duration) scheduler.Ticker {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTicker{ch: make(chan time.Time)}
	s.tickers = append(s.tickers, t)
	s.periods = append(s.periods, period)
	return t
}

func (s *tickerSource) last() *manualTicker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tickers[len(s.tickers)-1]
}

type countingRunner struct {
	runs    atomic.Int32
	ran     chan struct{}
	block   chan struct{}
	panicOn int32
}

func newCountingRunner() *countingRunner {
	return &countingRunner{ran: make(chan struct{}, 16)}
}

func (r *countingRunner) RunScheduled(ctx context.Context) {
	n := r.runs.Add(1)
	defer func() { r.ran <- struct{}{} }()
	if r.block != nil {
		<-r.block
	}
	if n == r.panicOn {
		panic("runner exploded")
	}
}

func (r *countingRunner) waitRun(t *testing.T) {
	t.Helper()
	select {
	case <-r.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for run")
	}
}

func TestNewRejectsNonPositiveInterval(t *testing.T) {
	for _, interval := range []int{0, -5} {
		_, err := scheduler.New(scheduler.Config{IntervalSeconds: interval}, newCountingRunner(), nil)
		require.Error(t, err, "interval %d", interval)
	}
}

func TestStartArmsTickerOnceWithConfiguredPeriod(t *testing.T) {
	src := &tickerSource{}
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1800}, newCountingRunner(), nil, scheduler.WithTickerFactory(src.factory))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())
	assert.Len(t, src.tickers, 1)
	assert.Equal(t, 1800*time.Second, src.periods[0])

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.True(t, src.tickers[0].stopped.Load())
	s.Stop()
}

func TestEachTickRunsOnce(t *testing.T) {
	src := &tickerSource{}
	runner := newCountingRunner()
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, runner, nil, scheduler.WithTickerFactory(src.factory))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	ticker := src.last()
	for range 3 {
		require.True(t, ticker.tick(time.Second))
		runner.waitRun(t)
	}
	assert.Equal(t, int32(3), runner.runs.Load())
}

func TestNoTicksAfterStop(t *testing.T) {
	runner := newCountingRunner()
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, runner, nil, scheduler.WithPeriod(10*time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	runner.waitRun(t)
	s.Stop()

	after := runner.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, after, runner.runs.Load())
}

func TestStopWaitsForRunInProgress(t *testing.T) {
	src := &tickerSource{}
	runner := newCountingRunner()
	runner.block = make(chan struct{})
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, runner, nil, scheduler.WithTickerFactory(src.factory))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	require.True(t, src.last().tick(time.Second))

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("stop returned before the run finished")
	case <-time.After(50 * time.Millisecond):
	}
	close(runner.block)
	<-stopped
	assert.False(t, src.last().tick(20*time.Millisecond))
}

func TestRestartAfterStop(t *testing.T) {
	src := &tickerSource{}
	runner := newCountingRunner()
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, runner, nil, scheduler.WithTickerFactory(src.factory))
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.Len(t, src.tickers, 2)
	require.True(t, src.last().tick(time.Second))
	runner.waitRun(t)
}

func TestCloseRejectsStart(t *testing.T) {
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, newCountingRunner(), nil, scheduler.WithTickerFactory((&tickerSource{}).factory))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	s.Close()
	assert.False(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(context.Background()), scheduler.ErrClosed)
}

func TestRunnerPanicDoesNotStopLoop(t *testing.T) {
	src := &tickerSource{}
	runner := newCountingRunner()
	runner.panicOn = 1
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, runner, nil, scheduler.WithTickerFactory(src.factory))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	require.True(t, src.last().tick(time.Second))
	runner.waitRun(t)
	require.True(t, src.last().tick(time.Second))
	runner.waitRun(t)
	assert.Equal(t, int32(2), runner.runs.Load())
	assert.True(t, s.IsRunning())
}

func TestNextTickAt(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 60}, newCountingRunner(), nil,
		scheduler.WithTickerFactory((&tickerSource{}).factory),
		scheduler.WithClock(func() time.Time { return now }),
	)
	require.NoError(t, err)

	_, ok := s.NextTickAt()
	assert.False(t, ok)

	require.NoError(t, s.Start(context.Background()))
	next, ok := s.NextTickAt()
	require.True(t, ok)
	assert.Equal(t, now.Add(time.Minute), next)
	s.Stop()
}

type okCapturer struct{}

func (okCapturer) Capture(context.Context) (capture.Image, error) {
	return capture.Image{Data: []byte{1}, MIMEType: "image/png"}, nil
}

type describer struct{ err error }

func (d describer) Describe(context.Context, capture.Image) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return "Reading documentation", nil
}

type signalRunner struct {
	inner scheduler.Runner
	ran   chan struct{}
}

func (r signalRunner) RunScheduled(ctx context.Context) {
	r.inner.RunScheduled(ctx)
	r.ran <- struct{}{}
}

type discardAppender struct{}

func (discardAppender) Append(context.Context, string, time.Time) error { return nil }

func runTicks(t *testing.T, d describer, ticks int) status.Snapshot {
	t.Helper()
	store := status.NewStore()
	orch, err := workflow.New(workflow.Deps{
		Capturer:  okCapturer{},
		Describer: d,
		Appender:  discardAppender{},
		Status:    store,
	}, workflow.WithTracer(tracing.Noop()))
	require.NoError(t, err)

	src := &tickerSource{}
	runner := signalRunner{inner: orch, ran: make(chan struct{}, ticks)}
	s, err := scheduler.New(scheduler.Config{IntervalSeconds: 1}, runner, nil, scheduler.WithTickerFactory(src.factory))
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))
	for range ticks {
		require.True(t, src.last().tick(time.Second))
		<-runner.ran
	}
	s.Stop()
	return store.Get()
}

func TestThreeSuccessfulTicks(t *testing.T) {
	snap := runTicks(t, describer{}, 3)
	assert.Equal(t, 3, snap.SuccessCount)
	assert.Zero(t, snap.ErrorCount)
	assert.Equal(t, status.Idle, snap.Status)
	require.NotNil(t, snap.LastResultPreview)
	assert.Equal(t, "Reading documentation", *snap.LastResultPreview)
}

func TestThreeFailingTicks(t *testing.T) {
	snap := runTicks(t, describer{err: assert.AnError}, 3)
	assert.Equal(t, 3, snap.ErrorCount)
	assert.Equal(t, status.Error, snap.Status)
	assert.Nil(t, snap.LastResultPreview)
}
