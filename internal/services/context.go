package services

import "context"

// ctxKey is distinct per stored value so lookups never collide with other
// packages' keys.
type ctxKey int

const (
	runIDKey ctxKey = iota
	stageKey
	triggerKey
	requestIDKey
)

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if value == "" {
		return ctx
	}
	return context.WithValue(ctx, key, value)
}

func lookup(ctx context.Context, key ctxKey) (string, bool) {
	if ctx == nil {
		return "", false
	}
	value, _ := ctx.Value(key).(string)
	return value, value != ""
}

// WithRunID stores the workflow run ID. Empty IDs leave ctx unchanged.
func WithRunID(ctx context.Context, id string) context.Context { return withValue(ctx, runIDKey, id) }

func RunIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, runIDKey) }

// WithStage stores the step (capture, infer, log) currently executing.
func WithStage(ctx context.Context, stage string) context.Context {
	return withValue(ctx, stageKey, stage)
}

func StageFromContext(ctx context.Context) (string, bool) { return lookup(ctx, stageKey) }

// WithTrigger stores whether the run was scheduled or manual.
func WithTrigger(ctx context.Context, trigger string) context.Context {
	return withValue(ctx, triggerKey, trigger)
}

func TriggerFromContext(ctx context.Context) (string, bool) { return lookup(ctx, triggerKey) }

// WithRequestID stores the ID of the IPC request being served.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withValue(ctx, requestIDKey, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) { return lookup(ctx, requestIDKey) }
