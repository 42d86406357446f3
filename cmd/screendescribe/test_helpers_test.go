package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"screendescribe/internal/capture"
	"screendescribe/internal/config"
	"screendescribe/internal/daemon"
	"screendescribe/internal/history"
	"screendescribe/internal/ipc"
	"screendescribe/internal/logging"
	"screendescribe/internal/preflight"
	"screendescribe/internal/scheduler"
	"screendescribe/internal/status"
	"screendescribe/internal/testsupport"
	"screendescribe/internal/tracing"
	"screendescribe/internal/workflow"
)

type fakeCapturer struct{}

func (fakeCapturer) Capture(context.Context) (capture.Image, error) {
	return capture.Image{Data: []byte("png"), MIMEType: "image/png", CapturedAt: time.Now()}, nil
}

type fakeDescriber struct{ description string }

func (f fakeDescriber) Describe(context.Context, capture.Image) (string, error) {
	return f.description, nil
}

type fakeAppender struct{}

func (fakeAppender) Append(context.Context, string, time.Time) error { return nil }

type idleTicker struct{ ch chan time.Time }

func (t idleTicker) C() <-chan time.Time { return t.ch }

func (idleTicker) Stop() {}

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	history    *history.Store
	daemon     *daemon.Daemon
	hub        *logging.StreamHub
}

// writeTestConfig persists cfg so commands can load it with --config.
func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	encoded, err := cfg.Encode()
	if err != nil {
		t.Fatalf("encode config: %v", err)
	}
	if err := os.WriteFile(path, []byte(encoded), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// setupCLITestEnv starts a daemon with fake workflow steps and an IPC server
// on the config's socket.
func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	cfg := testsupport.NewConfig(t, testsupport.WithStubbedCapture())
	env := &cliTestEnv{
		cfg:        cfg,
		configPath: writeTestConfig(t, cfg),
		history:    testsupport.MustOpenHistory(t, cfg),
		hub:        logging.NewStreamHub(64),
	}
	logger, err := logging.New(logging.Options{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.Paths.LogDir, "cli-test.log")},
		Stream:      env.hub,
	})
	if err != nil {
		t.Fatalf("logging.New: %v", err)
	}

	store := status.NewStore()
	orch, err := workflow.New(workflow.Deps{
		Capturer:  fakeCapturer{},
		Describer: fakeDescriber{description: "Updating the release checklist"},
		Appender:  fakeAppender{},
		Status:    store,
		History:   env.history,
		Logger:    logger,
	}, workflow.WithTracer(tracing.Noop()))
	if err != nil {
		t.Fatalf("workflow.New: %v", err)
	}

	d, err := daemon.New(daemon.Deps{
		Config:       cfg,
		Orchestrator: orch,
		Status:       store,
		History:      env.history,
		LogHub:       env.hub,
		Logger:       logger,
	},
		daemon.WithTickerFactory(func(time.Duration) scheduler.Ticker { return idleTicker{ch: make(chan time.Time)} }),
		daemon.WithPreflight(func(context.Context, *config.Config) []preflight.Result {
			return []preflight.Result{{Name: "Screenshot command", Passed: true, Detail: "fake-screenshot"}}
		}),
	)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(func() { _ = d.Close(context.Background()) })

	srv, err := ipc.NewServer(ctx, cfg.SocketPath(), d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI IPC test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	env.daemon = d
	return env
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return runCLI(t, append([]string{"--config", e.configPath}, args...)...)
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SetContext(context.Background())
	err := cmd.Execute()
	return out.String(), err
}
