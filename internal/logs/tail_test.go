package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screendescribe/internal/logs"
)

func appendLine(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString(text)
	require.NoError(t, err)
	require.NoError(t, f.Close())
}

func TestFollowerStartsAtEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screendescribe.log")
	require.NoError(t, os.WriteFile(path, []byte("old\n"), 0o644))

	f, err := logs.NewFollower(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), f.Offset())

	lines, err := f.Next(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, lines)
}

func TestFollowerWaitsForAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screendescribe.log")
	require.NoError(t, os.WriteFile(path, []byte("start\n"), 0o644))
	f, err := logs.NewFollower(path)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		file, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			t.Errorf("open log: %v", err)
			return
		}
		_, _ = file.WriteString("later\npartial")
		_ = file.Close()
	}()

	lines, err := f.Next(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"later"}, lines)

	appendLine(t, path, " done\n")
	lines, err = f.Next(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"partial done"}, lines)
}

func TestFollowerRestartsOnReplacedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "screendescribe.log")
	require.NoError(t, os.WriteFile(path, []byte("first daemon\n"), 0o644))
	f, err := logs.NewFollower(path)
	require.NoError(t, err)

	replacement := filepath.Join(dir, "next.log")
	require.NoError(t, os.WriteFile(replacement, []byte("second daemon\n"), 0o644))
	require.NoError(t, os.Rename(replacement, path))

	lines, err := f.Next(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"second daemon"}, lines)
}

func TestFollowerMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.log")
	f, err := logs.NewFollower(path)
	require.NoError(t, err)

	appendLine(t, path, "created\n")
	lines, err := f.Next(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, []string{"created"}, lines)
}

func TestFollowerHonorsContext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "screendescribe.log")
	f, err := logs.NewFollower(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.Next(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestFollowerRejectsDirectory(t *testing.T) {
	_, err := logs.NewFollower(t.TempDir())
	require.Error(t, err)
}
