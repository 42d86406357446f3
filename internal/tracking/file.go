package tracking

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"screendescribe/internal/services"
	"screendescribe/internal/stage"
	"screendescribe/internal/textutil"
)

// TimestampLayout is the prefix written before every description.
const TimestampLayout = "2006.01.02 15:04"

const lockRetryDelay = 50 * time.Millisecond

// File is an append-only tracking file.
type File struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFile returns a writer for path. The file and its directory are created
// on first append.
func NewFile(path string) *File {
	return &File{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the tracking file location.
func (f *File) Path() string {
	return f.path
}

// FormatLine renders a tracking entry without the trailing newline.
func FormatLine(description string, at time.Time) string {
	return at.Format(TimestampLayout) + " " + textutil.SingleLine(description)
}

// Append writes one line for description stamped with at.
func (f *File) Append(ctx context.Context, description string, at time.Time) error {
	if strings.TrimSpace(description) == "" {
		return services.Wrap(services.ErrValidation, stage.Log, "append", "description is empty", nil)
	}
	line := FormatLine(description, at) + "\n"

	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return services.Wrap(services.ErrConfiguration, stage.Log, "mkdir", filepath.Dir(f.path), err)
	}
	locked, err := f.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return services.Wrap(services.ErrTimeout, stage.Log, "lock", f.lock.Path(), err)
	}
	if !locked {
		return services.Wrap(services.ErrTransient, stage.Log, "lock", f.lock.Path()+" is held", nil)
	}
	defer func() { _ = f.lock.Unlock() }()

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return services.Wrap(services.ErrConfiguration, stage.Log, "open", f.path, err)
	}
	if _, err := file.WriteString(line); err != nil {
		_ = file.Close()
		return services.Wrap(services.ErrTransient, stage.Log, "write", f.path, err)
	}
	if err := file.Close(); err != nil {
		return services.Wrap(services.ErrTransient, stage.Log, "close", f.path, err)
	}
	return nil
}

// HealthCheck reports whether the tracking directory can be written.
func (f *File) HealthCheck(context.Context) stage.Health {
	dir := filepath.Dir(f.path)
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return stage.Healthy(stage.Log)
	case err != nil:
		return stage.Unhealthy(stage.Log, fmt.Sprintf("stat %s: %v", dir, err))
	case !info.IsDir():
		return stage.Unhealthy(stage.Log, dir+" is not a directory")
	}
	return stage.Healthy(stage.Log)
}
