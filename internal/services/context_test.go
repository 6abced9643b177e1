package services_test

import (
	"context"
	"testing"

	"crosslink/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRunID(ctx, "run-42")
	ctx = services.WithTask(ctx, "priority")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RunIDFromContext(ctx); !ok || id != "run-42" {
		t.Fatalf("unexpected run id: %v %v", id, ok)
	}
	if task, ok := services.TaskFromContext(ctx); !ok || task != "priority" {
		t.Fatalf("unexpected task: %v %v", task, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestTaskBlankPreservesContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithTask(ctx, "")
	if _, ok := services.TaskFromContext(ctx); ok {
		t.Fatal("expected no task value")
	}
	ctx = services.WithRunID(ctx, "")
	if _, ok := services.RunIDFromContext(ctx); ok {
		t.Fatal("expected no run id value")
	}
}
