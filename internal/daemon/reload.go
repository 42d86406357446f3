package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"screendescribe/internal/config"
	"screendescribe/internal/logging"
)

const reloadDebounce = 250 * time.Millisecond

// WatchConfig reloads the config file whenever it changes on disk and hands
// valid results to apply. The parent directory is watched so editors that
// replace the file atomically are still observed. It blocks until ctx ends.
func WatchConfig(ctx context.Context, path string, logger *slog.Logger, apply func(*config.Config) error) error {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "config-watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	target := filepath.Clean(path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	var (
		timer  *time.Timer
		reload <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			reload = timer.C
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logging.WarnWithContext(logger, "config watcher error", "config_watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "config edits may not be picked up until restart"),
			)
		case <-reload:
			reload = nil
			reloadOnce(target, logger, apply)
		}
	}
}

func reloadOnce(path string, logger *slog.Logger, apply func(*config.Config) error) {
	cfg, _, exists, err := config.Load(path)
	if err == nil && !exists {
		err = fmt.Errorf("config file %s no longer exists", path)
	}
	if err == nil {
		err = apply(cfg)
	}
	if err != nil {
		logging.WarnWithContext(logger, "config reload rejected", "config_reload_rejected",
			logging.Error(err),
			logging.String("path", path),
			logging.String(logging.FieldImpact, "previous configuration remains active"),
			logging.String(logging.FieldErrorHint, "fix the config file; it is reloaded on the next save"),
		)
		return
	}
	logger.Info("config reloaded",
		logging.String(logging.FieldEventType, "config_reloaded"),
		logging.String("path", path),
	)
}
