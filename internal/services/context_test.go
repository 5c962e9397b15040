package services_test

import (
	"context"
	"testing"

	"assetwatch/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithAsset(ctx, "view.vtf")
	ctx = services.WithStage(ctx, "archive")
	ctx = services.WithCycleID(ctx, "cycle-123")

	if name, ok := services.AssetFromContext(ctx); !ok || name != "view.vtf" {
		t.Fatalf("unexpected asset: %v %v", name, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "archive" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if id, ok := services.CycleIDFromContext(ctx); !ok || id != "cycle-123" {
		t.Fatalf("unexpected cycle id: %v %v", id, ok)
	}
}

func TestStageBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
}
