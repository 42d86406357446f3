package logs

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"screendescribe/internal/logging"
)

// ReadEvents returns up to limit of the newest events in path at or above
// minLevel, oldest first. Lines that are not JSON log records are skipped.
func ReadEvents(path string, limit int, minLevel string) ([]logging.LogEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	ring := make([]logging.LogEvent, limit)
	count, idx := 0, 0
	var seq uint64
	for scanner.Scan() {
		event, ok := ParseEvent(scanner.Bytes())
		if !ok || !logging.LevelAtLeast(event.Level, minLevel) {
			continue
		}
		seq++
		event.Sequence = seq
		ring[idx] = event
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	events := make([]logging.LogEvent, count)
	if count == limit {
		for i := range count {
			events[i] = ring[(idx+i)%limit]
		}
	} else {
		copy(events, ring[:count])
	}
	return events, nil
}

// ParseEvent decodes one JSON log line.
func ParseEvent(line []byte) (logging.LogEvent, bool) {
	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		return logging.LogEvent{}, false
	}
	msg, ok := raw["msg"].(string)
	if !ok {
		return logging.LogEvent{}, false
	}
	event := logging.LogEvent{Message: msg}
	for key, value := range raw {
		text := stringify(value)
		switch key {
		case "msg":
		case "ts", "time":
			if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
				event.Timestamp = ts
			}
		case "level":
			event.Level = strings.ToUpper(text)
		case logging.FieldComponent:
			event.Component = text
		case logging.FieldRunID:
			event.RunID = text
		case logging.FieldStage:
			event.Stage = text
		default:
			if event.Fields == nil {
				event.Fields = make(map[string]string)
			}
			event.Fields[key] = text
		}
	}
	return event, true
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}
