package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	consoleTimeLayout = "2006-01-02 15:04:05"
	maxInlineValue    = 120
)

// consoleHandler prints one line per record with fields inline. Warnings and
// errors get their hint and impact on indented lines underneath:
//
//	2026-10-19 09:30:00 WARN  [workflow] run 1f0c9a2e (log): append failed error="disk full"
//	      hint: free space in the log directory
type consoleHandler struct {
	mu        *sync.Mutex
	out       io.Writer
	level     slog.Leveler
	addSource bool
	prefix    string
	preset    []field
}

type field struct {
	key   string
	value slog.Value
}

func newConsoleHandler(w io.Writer, level slog.Leveler, addSource bool) *consoleHandler {
	return &consoleHandler{mu: new(sync.Mutex), out: w, level: level, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.preset = appendFields(append([]field(nil), h.preset...), h.prefix, attrs)
	return &next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.prefix = h.prefix + name + "."
	return &next
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	fields := append([]field(nil), h.preset...)
	record.Attrs(func(attr slog.Attr) bool {
		fields = appendFields(fields, h.prefix, []slog.Attr{attr})
		return true
	})
	fields = lastWins(fields)

	var component, runID, stage, hint, impact string
	inline := fields[:0]
	for _, f := range fields {
		switch f.key {
		case FieldComponent:
			component = valueText(f.value)
		case FieldRunID:
			runID = valueText(f.value)
		case FieldStage:
			stage = valueText(f.value)
		case FieldErrorHint:
			hint = valueText(f.value)
		case FieldImpact:
			impact = valueText(f.value)
		default:
			inline = append(inline, f)
		}
	}

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	var b strings.Builder
	b.WriteString(ts.Local().Format(consoleTimeLayout))
	fmt.Fprintf(&b, " %-5s", levelName(record.Level))
	if component != "" {
		b.WriteString(" [" + component + "]")
	}
	if subject := FormatSubject(runID, stage); subject != "" {
		b.WriteString(" " + subject + ":")
	}
	b.WriteString(" " + strings.TrimSpace(record.Message))
	for _, f := range inline {
		b.WriteString(" " + f.key + "=" + clip(quoteIfNeeded(valueText(f.value))))
	}
	if h.addSource {
		if src := record.Source(); src != nil && src.File != "" {
			fmt.Fprintf(&b, " (%s:%d)", filepath.Base(src.File), src.Line)
		}
	}
	b.WriteByte('\n')
	if record.Level >= slog.LevelWarn {
		if hint != "" {
			b.WriteString("      hint: " + hint + "\n")
		}
		if impact != "" {
			b.WriteString("      impact: " + impact + "\n")
		}
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, b.String())
	return err
}

// FormatSubject renders the run and step a record belongs to, for example
// "run 1f0c9a2e (infer)". Run IDs are shortened to eight characters.
func FormatSubject(runID, stage string) string {
	runID, stage = strings.TrimSpace(runID), strings.TrimSpace(stage)
	if len(runID) > 8 {
		runID = runID[:8]
	}
	var parts []string
	if runID != "" {
		parts = append(parts, "run "+runID)
	}
	if stage != "" {
		parts = append(parts, "("+stage+")")
	}
	return strings.Join(parts, " ")
}

func appendFields(dst []field, prefix string, attrs []slog.Attr) []field {
	for _, attr := range attrs {
		value := attr.Value.Resolve()
		if value.Kind() == slog.KindGroup {
			inner := prefix
			if attr.Key != "" {
				inner += attr.Key + "."
			}
			dst = appendFields(dst, inner, value.Group())
			continue
		}
		if attr.Key == "" {
			continue
		}
		dst = append(dst, field{key: prefix + attr.Key, value: value})
	}
	return dst
}

// lastWins drops earlier duplicates so a call-site attribute overrides one
// attached with Logger.With.
func lastWins(fields []field) []field {
	index := make(map[string]int, len(fields))
	out := make([]field, 0, len(fields))
	for _, f := range fields {
		if i, ok := index[f.key]; ok {
			out[i].value = f.value
			continue
		}
		index[f.key] = len(out)
		out = append(out, f)
	}
	return out
}

func levelName(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}

// valueText renders a resolved slog value without quoting.
func valueText(v slog.Value) string {
	switch v.Kind() {
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().Local().Format(consoleTimeLayout)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return v.String()
}

func quoteIfNeeded(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n\r\"=") {
		return strconv.Quote(s)
	}
	return s
}

func clip(s string) string {
	if r := []rune(s); len(r) > maxInlineValue {
		return string(r[:maxInlineValue]) + "…"
	}
	return s
}
