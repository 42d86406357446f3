package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const defaultPollInterval = 250 * time.Millisecond

// Follower streams lines appended to a log file. The daemon replaces the
// screendescribe.log pointer on every start, so the follower reopens the path
// whenever the underlying file changes identity or shrinks.
type Follower struct {
	path   string
	poll   time.Duration
	info   os.FileInfo
	offset int64
}

// NewFollower positions a follower at the current end of path. A missing file
// is not an error; lines are picked up once it appears.
func NewFollower(path string) (*Follower, error) {
	f := &Follower{path: path, poll: defaultPollInterval}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return f, nil
	case err != nil:
		return nil, fmt.Errorf("stat log file: %w", err)
	case info.IsDir():
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	f.info = info
	f.offset = info.Size()
	return f, nil
}

// Offset reports the byte position the next read starts from.
func (f *Follower) Offset() int64 { return f.offset }

// Next blocks until new complete lines are available, wait elapses, or ctx is
// done. A timeout returns no lines and no error.
func (f *Follower) Next(ctx context.Context, wait time.Duration) ([]string, error) {
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(f.poll)
	defer ticker.Stop()
	for {
		lines, err := f.read()
		if err != nil || len(lines) > 0 {
			return lines, err
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (f *Follower) read() ([]string, error) {
	info, err := os.Stat(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if f.info == nil || !os.SameFile(f.info, info) || info.Size() < f.offset {
		f.offset = 0
	}
	f.info = info
	if info.Size() == f.offset {
		return nil, nil
	}

	file, err := os.Open(f.path)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(f.offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek log file: %w", err)
	}

	var lines []string
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if errors.Is(err, io.EOF) {
			// A partial trailing line is left for the next read.
			break
		}
		if err != nil {
			return lines, fmt.Errorf("read log file: %w", err)
		}
		f.offset += int64(len(line))
		lines = append(lines, trimNewline(line))
	}
	return lines, nil
}

func trimNewline(line string) string {
	line = line[:len(line)-1]
	if n := len(line); n > 0 && line[n-1] == '\r' {
		line = line[:n-1]
	}
	return line
}
