package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func TestMemoryStoreCRUD(t *testing.T) {
	store := NewMemoryStore()
	job := &Job{
		ID:         "job-1",
		ToolName:   "tool",
		ToolCallID: "call-1",
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
		Result:     &models.ToolResult{ToolCallID: "call-1", Content: "ok"},
	}

	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("create: %v", err)
	}
	got, err := store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got == nil || got.ID != "job-1" {
		t.Fatalf("expected job, got %+v", got)
	}
	if got.Result == nil || got.Result.Content != "ok" {
		t.Fatalf("expected result content, got %+v", got.Result)
	}

	job.Status = StatusSucceeded
	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = store.Get(context.Background(), "job-1")
	if got.Status != StatusSucceeded {
		t.Fatalf("expected status %q, got %q", StatusSucceeded, got.Status)
	}
}

func TestMemoryStoreLeaseClaimsOldestQueuedJobOfKind(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Create(ctx, &Job{ID: "reindex-1", Kind: "reindex", Status: StatusQueued, CreatedAt: time.Now()})
	store.Create(ctx, &Job{ID: "other", Kind: "other", Status: StatusQueued, CreatedAt: time.Now()})

	job, err := store.Lease(ctx, "reindex", time.Minute)
	if err != nil {
		t.Fatalf("Lease() error = %v", err)
	}
	if job == nil || job.ID != "reindex-1" {
		t.Fatalf("Lease() = %+v, want reindex-1", job)
	}
	if job.Status != StatusRunning {
		t.Errorf("Status = %q, want %q", job.Status, StatusRunning)
	}

	if again, err := store.Lease(ctx, "reindex", time.Minute); err != nil || again != nil {
		t.Fatalf("second Lease() = %+v, %v, want nil, nil (job already leased)", again, err)
	}
}

func TestMemoryStoreLeaseReclaimsExpiredLease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Create(ctx, &Job{ID: "reindex-1", Kind: "reindex", Status: StatusQueued, CreatedAt: time.Now()})

	if _, err := store.Lease(ctx, "reindex", time.Nanosecond); err != nil {
		t.Fatalf("first Lease() error = %v", err)
	}
	time.Sleep(time.Millisecond)

	// The job is still marked running (its worker died) but the lease
	// has lapsed, so a second worker reclaims it without any requeue.
	again, err := store.Lease(ctx, "reindex", time.Minute)
	if err != nil {
		t.Fatalf("second Lease() error = %v", err)
	}
	if again == nil || again.ID != "reindex-1" {
		t.Fatalf("Lease() after expiry = %+v, want reindex-1 reclaimed", again)
	}
}

func TestMemoryStoreLeaseSkipsLiveLease(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Create(ctx, &Job{ID: "reindex-1", Kind: "reindex", Status: StatusQueued, CreatedAt: time.Now()})

	if _, err := store.Lease(ctx, "reindex", time.Hour); err != nil {
		t.Fatalf("first Lease() error = %v", err)
	}
	if again, err := store.Lease(ctx, "reindex", time.Hour); err != nil || again != nil {
		t.Fatalf("Lease() with live lease = %+v, %v; want nil, nil", again, err)
	}
}
