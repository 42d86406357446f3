// Package daemonctl holds CLI-side helpers for talking to a running daemon and
// for building status output when none is running.
package daemonctl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"screendescribe/internal/config"
	"screendescribe/internal/history"
	"screendescribe/internal/ipc"
	"screendescribe/internal/preflight"
	"screendescribe/internal/status"
)

// ErrDaemonUnavailable is returned when no daemon answers on the socket.
var ErrDaemonUnavailable = errors.New("screendescribe daemon is not running")

// Connect dials the daemon, mapping a missing or refused socket to
// ErrDaemonUnavailable.
func Connect(socketPath string) (*ipc.Client, error) {
	client, err := ipc.Dial(socketPath)
	if err != nil {
		if IsDaemonUnavailable(err) {
			return nil, fmt.Errorf("%w (socket %s)", ErrDaemonUnavailable, socketPath)
		}
		return nil, err
	}
	return client, nil
}

// IsDaemonUnavailable reports whether err means nothing is listening.
func IsDaemonUnavailable(err error) bool {
	return errors.Is(err, ErrDaemonUnavailable) ||
		errors.Is(err, os.ErrNotExist) ||
		errors.Is(err, syscall.ENOENT) ||
		errors.Is(err, syscall.ECONNREFUSED)
}

// Snapshot is status output plus whether it came from a live daemon.
type Snapshot struct {
	Status  *ipc.StatusResponse
	Running bool
}

// BuildStatusSnapshot asks the daemon for status. When the daemon is offline
// it reports the stopped state, the newest recorded run, and local preflight
// checks instead.
func BuildStatusSnapshot(ctx context.Context, socketPath string, cfg *config.Config) (Snapshot, error) {
	if cfg == nil {
		return Snapshot{}, errors.New("configuration not available")
	}

	client, err := Connect(socketPath)
	if err == nil {
		defer client.Close()
		resp, statusErr := client.Status()
		if statusErr != nil {
			return Snapshot{}, fmt.Errorf("query daemon status: %w", statusErr)
		}
		return Snapshot{Status: resp, Running: true}, nil
	}
	if !IsDaemonUnavailable(err) {
		return Snapshot{}, err
	}

	resp := &ipc.StatusResponse{
		Snapshot:        status.Snapshot{Status: status.Stopped},
		IntervalSeconds: cfg.Schedule.IntervalSeconds,
		LockPath:        cfg.LockPath(),
		HistoryPath:     cfg.HistoryPath(),
	}
	if pid, alive := StalePID(cfg.PIDPath()); pid > 0 && alive {
		resp.PID = pid
	}
	applyLastRun(ctx, cfg, resp)
	resp.Preflight = preflight.RunAll(ctx, cfg)
	return Snapshot{Status: resp}, nil
}

// StalePID returns the pid recorded in path and whether that process exists.
func StalePID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	err = unix.Kill(pid, 0)
	return pid, err == nil || errors.Is(err, unix.EPERM)
}

func applyLastRun(ctx context.Context, cfg *config.Config, resp *ipc.StatusResponse) {
	if _, err := os.Stat(cfg.HistoryPath()); err != nil {
		return
	}
	queryCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	store, err := history.Open(cfg.HistoryPath())
	if err != nil {
		return
	}
	defer store.Close()

	runs, err := store.Recent(queryCtx, 1)
	if err != nil || len(runs) == 0 {
		return
	}
	last := runs[0]
	finished := last.FinishedAt
	resp.Snapshot.LastRunAt = &finished
	resp.Snapshot.LastRunID = last.ID
	if last.Outcome == "success" {
		preview := last.Description
		resp.Snapshot.LastResultPreview = &preview
	} else {
		resp.Snapshot.LastError = last.Error
	}
	if counts, err := store.Counts(queryCtx); err == nil {
		resp.Snapshot.SuccessCount = counts["success"]
		resp.Snapshot.ErrorCount = counts["failure"]
	}
}
