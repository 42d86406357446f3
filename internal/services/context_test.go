package services_test

import (
	"context"
	"testing"

	"screendescribe/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithStage(ctx, "infer")
	ctx = services.WithTrigger(ctx, "manual")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "infer" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if trigger, ok := services.TriggerFromContext(ctx); !ok || trigger != "manual" {
		t.Fatalf("unexpected trigger: %v %v", trigger, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}

func TestLookupsOnBareContext(t *testing.T) {
	if _, ok := services.TriggerFromContext(context.Background()); ok {
		t.Fatal("expected no trigger")
	}
	if _, ok := services.RequestIDFromContext(context.Background()); ok {
		t.Fatal("expected no request id")
	}
}
