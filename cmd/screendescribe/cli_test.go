package main

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"screendescribe/internal/history"
	"screendescribe/internal/ipc"
	"screendescribe/internal/testsupport"
)

func TestRootPrintsHelp(t *testing.T) {
	out, err := runCLI(t)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, name := range []string{"run-once", "run-scheduled", "status", "trigger", "pause", "resume", "logs", "history", "config"} {
		if !strings.Contains(out, name) {
			t.Fatalf("help missing %q:\n%s", name, out)
		}
	}
}

func TestTriggerPrintsDescription(t *testing.T) {
	env := setupCLITestEnv(t)
	out, err := env.run(t, "trigger")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if strings.TrimSpace(out) != "Updating the release checklist" {
		t.Fatalf("unexpected trigger output %q", out)
	}
}

func TestPauseResumeAndStatus(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "pause")
	if err != nil || !strings.Contains(out, "paused") {
		t.Fatalf("pause: %v %q", err, out)
	}
	out, err = env.run(t, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "[WARN] Paused") || !strings.Contains(out, "Running (pid") {
		t.Fatalf("status missing paused scheduler:\n%s", out)
	}

	out, err = env.run(t, "resume")
	if err != nil || !strings.Contains(out, "resumed") {
		t.Fatalf("resume: %v %q", err, out)
	}

	out, err = env.run(t, "status", "--json")
	if err != nil {
		t.Fatalf("status --json: %v", err)
	}
	var resp ipc.StatusResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode status json: %v\n%s", err, out)
	}
	if !resp.SchedulerRunning || resp.Paused {
		t.Fatalf("expected armed scheduler, got %+v", resp)
	}
}

func TestHistoryListsRuns(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "trigger"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	out, err := env.run(t, "history", "--limit", "5")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "manual") || !strings.Contains(out, "success") {
		t.Fatalf("history table missing run:\n%s", out)
	}
}

func TestHistoryWithoutDaemonReadsDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	store := testsupport.MustOpenHistory(t, cfg)
	now := time.Now().UTC()
	if err := store.Append(context.Background(), history.Run{
		ID: "r1", Trigger: "scheduled", Outcome: "failure", Stage: "capture",
		Error: "screen recording denied", StartedAt: now.Add(-time.Second), FinishedAt: now,
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	out, err := runCLI(t, "--config", path, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if !strings.Contains(out, "capture: screen recording denied") {
		t.Fatalf("expected failure detail:\n%s", out)
	}
}

func TestLogsFromDaemonBuffer(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, err := env.run(t, "trigger"); err != nil {
		t.Fatalf("trigger: %v", err)
	}
	out, err := env.run(t, "logs", "--limit", "100")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if strings.TrimSpace(out) == "" {
		t.Fatal("expected log output")
	}
}

func TestStatusWithoutDaemon(t *testing.T) {
	server := testsupport.NewInferenceServer(t, "unused")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedCapture(), testsupport.WithInferenceURL(server.URL))
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, "--config", path, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "Not running") || !strings.Contains(out, "Stopped") {
		t.Fatalf("expected offline status:\n%s", out)
	}
}

func TestTriggerWithoutDaemonFails(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	_, err := runCLI(t, "--config", path, "trigger")
	if err == nil || !strings.Contains(err.Error(), "run-scheduled") {
		t.Fatalf("expected hint to start the daemon, got %v", err)
	}
}

func TestRunOnceSucceedsWithStubs(t *testing.T) {
	server := testsupport.NewInferenceServer(t, "Answering support email")
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedCapture(), testsupport.WithInferenceURL(server.URL))
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, "--config", path, "run-once")
	if err != nil {
		t.Fatalf("run-once: %v", err)
	}
	if !strings.Contains(out, "Answering support email") {
		t.Fatalf("unexpected output %q", out)
	}
	lines := testsupport.ReadLines(t, cfg.Tracking.OutputFile)
	if len(lines) != 1 {
		t.Fatalf("expected one tracking line, got %v", lines)
	}
}

func TestRunOnceHandsRunToDaemon(t *testing.T) {
	env := setupCLITestEnv(t)

	out, err := env.run(t, "run-once")
	if err != nil {
		t.Fatalf("run-once: %v", err)
	}
	if strings.TrimSpace(out) != "Updating the release checklist" {
		t.Fatalf("unexpected run-once output %q", out)
	}
	if got := env.daemon.Status(context.Background()).Snapshot.SuccessCount; got != 1 {
		t.Fatalf("expected the daemon to record the run, success count %d", got)
	}
	runs, err := env.history.Recent(context.Background(), 5)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(runs) != 1 || runs[0].Trigger != "manual" {
		t.Fatalf("expected one manual run in daemon history, got %+v", runs)
	}
}

func TestRunOnceReportsFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedCapture())
	cfg.Inference.BaseURL = "http://127.0.0.1:1/v1/chat/completions"
	cfg.Inference.RetryAttempts = 1
	path := writeTestConfig(t, cfg)

	out, err := runCLI(t, "--config", path, "run-once")
	if !errors.Is(err, errRunFailed) {
		t.Fatalf("expected errRunFailed, got %v", err)
	}
	if !strings.Contains(out, "failed during infer") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestRunScheduledRejectsBadInterval(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	path := writeTestConfig(t, cfg)
	_, err := runCLI(t, "--config", path, "run-scheduled", "--interval", "0")
	if err == nil || !strings.Contains(err.Error(), "--interval") {
		t.Fatalf("expected interval error, got %v", err)
	}
}
