package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// RetentionTarget names the files in Dir matching Pattern that are subject to
// pruning. Paths listed in Exclude are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs deletes target files last modified more than retentionDays
// ago and returns the number removed. retentionDays <= 0 disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	if logger == nil {
		logger = NewNop()
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		for _, path := range target.expired(cutoff) {
			if err := os.Remove(path); err != nil {
				WarnWithContext(logger, "could not prune old log file", "log_retention_failed",
					String("path", path),
					Error(err),
					String(FieldErrorHint, "check ownership of the log directory"),
					String(FieldImpact, "the file stays on disk until the next start"),
				)
				continue
			}
			removed++
			logger.Debug("pruned old log file", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}

func (t RetentionTarget) expired(cutoff time.Time) []string {
	if t.Dir == "" {
		return nil
	}
	pattern := t.Pattern
	if pattern == "" {
		pattern = "*"
	}
	matches, err := filepath.Glob(filepath.Join(t.Dir, pattern))
	if err != nil {
		return nil
	}
	keep := make(map[string]bool, len(t.Exclude))
	for _, path := range t.Exclude {
		if abs, err := filepath.Abs(path); err == nil {
			keep[abs] = true
		}
	}
	var out []string
	for _, match := range matches {
		abs, err := filepath.Abs(match)
		if err != nil || keep[abs] {
			continue
		}
		info, err := os.Lstat(abs)
		if err != nil || !info.Mode().IsRegular() || !info.ModTime().Before(cutoff) {
			continue
		}
		out = append(out, abs)
	}
	return out
}
