package services_test

import (
	"context"
	"testing"

	"voiceclip/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithSourceID(ctx, "sermon-01.mp4")
	ctx = services.WithStage(ctx, "detection")
	ctx = services.WithRunID(ctx, "run-1")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.SourceIDFromContext(ctx); !ok || id != "sermon-01.mp4" {
		t.Fatalf("unexpected source id: %v %v", id, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "detection" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if run, ok := services.RunIDFromContext(ctx); !ok || run != "run-1" {
		t.Fatalf("unexpected run id: %v %v", run, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	ctx = services.WithSourceID(ctx, "")
	if _, ok := services.SourceIDFromContext(ctx); ok {
		t.Fatal("expected no source id value")
	}
}
