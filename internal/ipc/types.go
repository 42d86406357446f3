package ipc

import (
	"time"

	"screendescribe/internal/history"
	"screendescribe/internal/logging"
	"screendescribe/internal/preflight"
	"screendescribe/internal/stage"
	"screendescribe/internal/status"
)

// StartRequest resumes scheduled runs.
type StartRequest struct{}

// StartResponse indicates whether the scheduler is armed.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest pauses scheduled runs.
type StopRequest struct{}

// StopResponse reports whether the scheduler was running before the pause.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse combines the status snapshot with scheduler and health data.
type StatusResponse struct {
	Snapshot         status.Snapshot    `json:"snapshot"`
	SchedulerRunning bool               `json:"scheduler_running"`
	Paused           bool               `json:"paused"`
	IntervalSeconds  int                `json:"interval_seconds"`
	NextRunAt        *time.Time         `json:"next_run_at,omitempty"`
	StartedAt        time.Time          `json:"started_at"`
	PID              int                `json:"pid"`
	ConfigPath       string             `json:"config_path,omitempty"`
	LockPath         string             `json:"lock_path"`
	LogPath          string             `json:"log_path,omitempty"`
	HistoryPath      string             `json:"history_path,omitempty"`
	StageHealth      []stage.Health     `json:"stage_health,omitempty"`
	Preflight        []preflight.Result `json:"preflight,omitempty"`
}

// TriggerRequest runs the workflow once.
type TriggerRequest struct{}

// TriggerResponse reports the outcome of a manual trigger.
type TriggerResponse struct {
	Outcome     string    `json:"outcome"`
	RunID       string    `json:"run_id,omitempty"`
	Description string    `json:"description,omitempty"`
	Stage       string    `json:"stage,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	FinishedAt  time.Time `json:"finished_at,omitzero"`
}

// LogTailRequest fetches the most recent buffered log events.
type LogTailRequest struct {
	Limit int    `json:"limit"`
	Level string `json:"level"`
}

// LogTailResponse returns log events oldest first.
type LogTailResponse struct {
	Events  []logging.LogEvent `json:"events"`
	LogPath string             `json:"log_path,omitempty"`
}

// HistoryRequest fetches recent runs.
type HistoryRequest struct {
	Limit int `json:"limit"`
}

// HistoryResponse lists runs newest first.
type HistoryResponse struct {
	Runs []history.Run `json:"runs"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
