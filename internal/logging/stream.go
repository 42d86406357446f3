package logging

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const defaultStreamCapacity = 512

// LogEvent is one log record as exposed over IPC and parsed back from the
// JSON log file.
type LogEvent struct {
	Sequence  uint64            `json:"seq"`
	Timestamp time.Time         `json:"ts"`
	Level     string            `json:"level"`
	Message   string            `json:"msg"`
	Component string            `json:"component,omitempty"`
	RunID     string            `json:"run_id,omitempty"`
	Stage     string            `json:"stage,omitempty"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// StreamHub keeps the newest log events in a fixed-size ring so the daemon
// can answer `screendescribe logs` without touching disk.
type StreamHub struct {
	mu    sync.Mutex
	ring  []LogEvent
	start int
	count int
	seq   uint64
}

// NewStreamHub returns a hub holding up to capacity events. Non-positive
// capacities fall back to 512.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = defaultStreamCapacity
	}
	return &StreamHub{ring: make([]LogEvent, capacity)}
}

// Publish stores evt, overwriting the oldest event once the ring is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.seq++
	evt.Sequence = h.seq
	slot := (h.start + h.count) % len(h.ring)
	h.ring[slot] = evt
	if h.count < len(h.ring) {
		h.count++
	} else {
		h.start = (h.start + 1) % len(h.ring)
	}
}

// Tail returns up to limit of the newest events at or above minLevel, oldest
// first, plus the last sequence number issued. limit <= 0 means everything
// retained.
func (h *StreamHub) Tail(limit int, minLevel string) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if limit <= 0 || limit > h.count {
		limit = h.count
	}
	threshold := ParseLevel(minLevel)
	if strings.TrimSpace(minLevel) == "" {
		threshold = slog.LevelDebug
	}
	picked := make([]LogEvent, 0, limit)
	for i := h.count - 1; i >= 0 && len(picked) < limit; i-- {
		evt := h.ring[(h.start+i)%len(h.ring)]
		if ParseLevel(evt.Level) >= threshold {
			picked = append(picked, evt)
		}
	}
	for l, r := 0, len(picked)-1; l < r; l, r = l+1, r-1 {
		picked[l], picked[r] = picked[r], picked[l]
	}
	return picked, h.seq
}

// Len reports how many events are retained.
func (h *StreamHub) Len() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// LevelAtLeast reports whether level is at or above minLevel. An empty
// minLevel accepts everything.
func LevelAtLeast(level, minLevel string) bool {
	if strings.TrimSpace(minLevel) == "" {
		return true
	}
	return ParseLevel(level) >= ParseLevel(minLevel)
}

// streamHandler copies each handled record into a StreamHub before passing
// it on.
type streamHandler struct {
	slog.Handler
	hub    *StreamHub
	preset []field
	prefix string
}

func withStream(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{Handler: next, hub: hub}
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	fields := append([]field(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{attr})
		return true
	})
	h.hub.Publish(toEvent(record, lastWins(fields)))
	return h.Handler.Handle(ctx, record)
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &streamHandler{
		Handler: h.Handler.WithAttrs(attrs),
		hub:     h.hub,
		preset:  appendFields(append([]field(nil), h.preset...), h.prefix, attrs),
		prefix:  h.prefix,
	}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &streamHandler{
		Handler: h.Handler.WithGroup(name),
		hub:     h.hub,
		preset:  h.preset,
		prefix:  h.prefix + name + ".",
	}
}

func toEvent(record slog.Record, fields []field) LogEvent {
	evt := LogEvent{
		Timestamp: record.Time,
		Level:     levelName(record.Level),
		Message:   strings.TrimSpace(record.Message),
	}
	for _, f := range fields {
		text := valueText(f.value)
		switch f.key {
		case FieldComponent:
			evt.Component = text
		case FieldRunID:
			evt.RunID = text
		case FieldStage:
			evt.Stage = text
		default:
			if evt.Fields == nil {
				evt.Fields = make(map[string]string, len(fields))
			}
			evt.Fields[f.key] = text
		}
	}
	return evt
}
