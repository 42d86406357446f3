package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"screendescribe/internal/ipc"
	"screendescribe/internal/preflight"
	"screendescribe/internal/stage"
	"screendescribe/internal/status"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 20
	statusIndent     = "  "
)

func renderStatus(resp *ipc.StatusResponse, running, colorize bool) []string {
	var lines []string
	lines = append(lines, renderSectionHeader("Daemon", colorize)...)
	if running {
		lines = append(lines, renderStatusLine("Daemon", statusOK, fmt.Sprintf("Running (pid %d)", resp.PID), colorize))
		switch {
		case resp.Paused:
			lines = append(lines, renderStatusLine("Scheduler", statusWarn, "Paused", colorize))
		case resp.SchedulerRunning:
			lines = append(lines, renderStatusLine("Scheduler", statusOK, "Armed", colorize))
		default:
			lines = append(lines, renderStatusLine("Scheduler", statusWarn, "Not running", colorize))
		}
	} else {
		lines = append(lines, renderStatusLine("Daemon", statusInfo, "Not running", colorize))
	}
	lines = append(lines, renderStatusLine("Interval", statusInfo, formatInterval(resp.IntervalSeconds), colorize))
	if resp.NextRunAt != nil {
		lines = append(lines, renderStatusLine("Next run", statusInfo, formatWhen(*resp.NextRunAt), colorize))
	}

	lines = append(lines, "")
	lines = append(lines, renderSectionHeader("Last run", colorize)...)
	lines = append(lines, snapshotLines(resp.Snapshot, colorize)...)

	if len(resp.StageHealth) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Steps", colorize)...)
		lines = append(lines, healthLines(resp.StageHealth, colorize)...)
	}
	if len(resp.Preflight) > 0 {
		lines = append(lines, "")
		lines = append(lines, renderSectionHeader("Checks", colorize)...)
		lines = append(lines, preflightLines(resp.Preflight, colorize)...)
	}
	return lines
}

func snapshotLines(snap status.Snapshot, colorize bool) []string {
	kind := statusInfo
	switch snap.Status {
	case status.Idle:
		kind = statusOK
	case status.Error:
		kind = statusError
	case status.Running:
		kind = statusInfo
	}
	lines := []string{renderStatusLine("Status", kind, snap.Status.String(), colorize)}
	if snap.LastRunAt != nil {
		lines = append(lines, renderStatusLine("Last run", statusInfo, formatWhen(*snap.LastRunAt), colorize))
	} else {
		lines = append(lines, renderStatusLine("Last run", statusInfo, "never", colorize))
	}
	if snap.LastResultPreview != nil {
		lines = append(lines, renderStatusLine("Last result", statusInfo, *snap.LastResultPreview, colorize))
	}
	if snap.LastError != "" {
		lines = append(lines, renderStatusLine("Last error", statusError, snap.LastError, colorize))
	}
	countKind := statusOK
	if snap.ErrorCount > 0 {
		countKind = statusWarn
	}
	lines = append(lines, renderStatusLine("Runs", countKind,
		fmt.Sprintf("%d succeeded, %d failed", snap.SuccessCount, snap.ErrorCount), colorize))
	return lines
}

func healthLines(health []stage.Health, colorize bool) []string {
	lines := make([]string, 0, len(health))
	for _, h := range health {
		kind, msg := statusOK, "Ready"
		if !h.Ready {
			kind, msg = statusError, "Not ready"
		}
		if h.Detail != "" {
			msg += " (" + h.Detail + ")"
		}
		lines = append(lines, renderStatusLine(h.Name, kind, msg, colorize))
	}
	return lines
}

func preflightLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		kind := statusOK
		switch {
		case r.Passed:
		case r.Advisory:
			kind = statusWarn
		default:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

func formatInterval(seconds int) string {
	if seconds <= 0 {
		return "not set"
	}
	return (time.Duration(seconds) * time.Second).String()
}

func formatWhen(t time.Time) string {
	local := t.Local().Format("2006-01-02 15:04:05")
	delta := time.Until(t).Round(time.Second)
	switch {
	case delta > 0:
		return fmt.Sprintf("%s (in %s)", local, delta)
	case delta < 0:
		return fmt.Sprintf("%s (%s ago)", local, -delta)
	default:
		return local
	}
}

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := statusKindLabel(kind)
	if message != "" {
		statusText = fmt.Sprintf("[%s] %s", statusText, message)
	} else {
		statusText = fmt.Sprintf("[%s]", statusText)
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
