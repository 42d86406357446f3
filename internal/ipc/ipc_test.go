package ipc_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendescribe/internal/capture"
	"screendescribe/internal/config"
	"screendescribe/internal/daemon"
	"screendescribe/internal/ipc"
	"screendescribe/internal/logging"
	"screendescribe/internal/preflight"
	"screendescribe/internal/scheduler"
	"screendescribe/internal/stage"
	"screendescribe/internal/status"
	"screendescribe/internal/testsupport"
	"screendescribe/internal/tracing"
	"screendescribe/internal/workflow"
)

type stubCapturer struct{}

func (stubCapturer) Capture(context.Context) (capture.Image, error) {
	return capture.Image{Data: []byte("png"), MIMEType: "image/png", CapturedAt: time.Now()}, nil
}

type stubDescriber struct{}

func (stubDescriber) Describe(context.Context, capture.Image) (string, error) {
	return "Writing design notes", nil
}

func (stubDescriber) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(stage.Infer)
}

type stubAppender struct{}

func (stubAppender) Append(context.Context, string, time.Time) error { return nil }

type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }

func (idleTicker) Stop() {}

// waitingCapturer honors ctx and holds each capture until release closes.
type waitingCapturer struct {
	entered chan struct{}
	release chan struct{}
}

func (c *waitingCapturer) Capture(ctx context.Context) (capture.Image, error) {
	c.entered <- struct{}{}
	select {
	case <-ctx.Done():
		return capture.Image{}, ctx.Err()
	case <-c.release:
	}
	return capture.Image{Data: []byte("png"), MIMEType: "image/png", CapturedAt: time.Now()}, nil
}

type serverFixture struct {
	cfg    *config.Config
	client *ipc.Client
	// cancel ends the context the server was built with.
	cancel context.CancelFunc
}

func startServer(t *testing.T, capturer workflow.Capturer) *serverFixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := status.NewStore()
	hub := logging.NewStreamHub(32)
	logger, err := logging.New(logging.Options{Level: "info", Format: "json", OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "ipc-test.log")}, Stream: hub})
	require.NoError(t, err)

	runs := testsupport.MustOpenHistory(t, cfg)
	orch, err := workflow.New(workflow.Deps{
		Capturer:  capturer,
		Describer: stubDescriber{},
		Appender:  stubAppender{},
		Status:    store,
		History:   runs,
		Logger:    logger,
	}, workflow.WithTracer(tracing.Noop()))
	require.NoError(t, err)

	d, err := daemon.New(daemon.Deps{
		Config:       cfg,
		Orchestrator: orch,
		Status:       store,
		History:      runs,
		LogHub:       hub,
		Logger:       logger,
		LogPath:      filepath.Join(cfg.Paths.LogDir, "screendescribe.log"),
	},
		daemon.WithTickerFactory(func(time.Duration) scheduler.Ticker { return idleTicker{ch: make(chan time.Time)} }),
		daemon.WithPreflight(func(context.Context, *config.Config) []preflight.Result {
			return []preflight.Result{{Name: "Capture command", Passed: true, Detail: "fake-screenshot"}}
		}),
	)
	require.NoError(t, err)
	require.NoError(t, d.Start(context.Background()))
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	client, err := ipc.Dial(cfg.SocketPath())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return &serverFixture{cfg: cfg, client: client, cancel: cancel}
}

func TestIPCServerClient(t *testing.T) {
	f := startServer(t, stubCapturer{})
	cfg, client := f.cfg, f.client

	st, err := client.Status()
	require.NoError(t, err)
	assert.True(t, st.SchedulerRunning)
	assert.Equal(t, status.Idle, st.Snapshot.Status)
	assert.Equal(t, cfg.Schedule.IntervalSeconds, st.IntervalSeconds)
	require.Len(t, st.StageHealth, 3)
	require.Len(t, st.Preflight, 1)
	assert.Equal(t, "fake-screenshot", st.Preflight[0].Detail)

	trig, err := client.Trigger()
	require.NoError(t, err)
	assert.Equal(t, "success", trig.Outcome)
	assert.Equal(t, "Writing design notes", trig.Description)
	assert.NotEmpty(t, trig.RunID)

	st, err = client.Status()
	require.NoError(t, err)
	require.NotNil(t, st.Snapshot.LastResultPreview)
	assert.Equal(t, "Writing design notes", *st.Snapshot.LastResultPreview)
	assert.Equal(t, 1, st.Snapshot.SuccessCount)

	hist, err := client.History(5)
	require.NoError(t, err)
	require.Len(t, hist.Runs, 1)
	assert.Equal(t, trig.RunID, hist.Runs[0].ID)

	stop, err := client.Stop()
	require.NoError(t, err)
	assert.True(t, stop.Stopped)
	st, err = client.Status()
	require.NoError(t, err)
	assert.True(t, st.Paused)
	assert.False(t, st.SchedulerRunning)

	start, err := client.Start()
	require.NoError(t, err)
	assert.True(t, start.Started)

	tail, err := client.LogTail(ipc.LogTailRequest{Limit: 50})
	require.NoError(t, err)
	assert.NotEmpty(t, tail.Events)
	assert.Equal(t, filepath.Join(cfg.Paths.LogDir, "screendescribe.log"), tail.LogPath)

	note, err := client.TestNotification()
	require.NoError(t, err)
	assert.False(t, note.Sent)
}

func TestTriggerSurvivesServerContextCancel(t *testing.T) {
	capturer := &waitingCapturer{entered: make(chan struct{}, 1), release: make(chan struct{})}
	f := startServer(t, capturer)

	type reply struct {
		resp *ipc.TriggerResponse
		err  error
	}
	replies := make(chan reply, 1)
	go func() {
		resp, err := f.client.Trigger()
		replies <- reply{resp, err}
	}()

	<-capturer.entered
	f.cancel()
	time.Sleep(50 * time.Millisecond)
	close(capturer.release)

	got := <-replies
	require.NoError(t, got.err)
	assert.Equal(t, "success", got.resp.Outcome)
	assert.Empty(t, got.resp.Error)

	st, err := f.client.Status()
	require.NoError(t, err)
	assert.Zero(t, st.Snapshot.ErrorCount)
	assert.Equal(t, 1, st.Snapshot.SuccessCount)
}

func TestDialFailsWhenDaemonOffline(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := ipc.Dial(cfg.SocketPath())
	require.Error(t, err)
}
