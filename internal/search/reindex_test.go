package search

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kubiyabot/skill-engine/internal/jobs"
	"github.com/kubiyabot/skill-engine/internal/retry"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

func TestReindexerRunOnceIndexesLeasedJob(t *testing.T) {
	p := newTestPipeline()
	store := jobs.NewMemoryStore()
	source := func(ctx context.Context) ([]models.IndexedDocument, error) {
		return []models.IndexedDocument{
			{ID: "weather/forecast", Skill: "weather", Tool: "forecast", Content: "get the weather forecast"},
		}, nil
	}
	r := NewReindexer(p, store, source, DefaultReindexerConfig())

	if err := r.Enqueue(context.Background(), "job-1"); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}

	job, err := store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if job.Status != jobs.StatusSucceeded {
		t.Fatalf("job status = %q, want %q", job.Status, jobs.StatusSucceeded)
	}

	results, err := p.Search(context.Background(), "weather", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (reindex did not run)", len(results))
	}
}

func TestReindexerRunOnceIsNoOpWithoutQueuedJob(t *testing.T) {
	p := newTestPipeline()
	store := jobs.NewMemoryStore()
	r := NewReindexer(p, store, func(ctx context.Context) ([]models.IndexedDocument, error) { return nil, nil }, DefaultReindexerConfig())

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v, want nil when nothing is queued", err)
	}
}

func TestReindexerRetriesTransientIndexFailures(t *testing.T) {
	p := newTestPipeline()
	store := jobs.NewMemoryStore()

	attempts := 0
	source := func(ctx context.Context) ([]models.IndexedDocument, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("embedding provider unavailable")
		}
		return []models.IndexedDocument{{ID: "a", Skill: "s", Tool: "a", Content: "weather"}}, nil
	}

	cfg := DefaultReindexerConfig()
	cfg.Retry = retry.Config{MaxAttempts: 5, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1}
	r := NewReindexer(p, store, source, cfg)

	r.Enqueue(context.Background(), "job-1")
	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce() error = %v, want success after retries", err)
	}
	if attempts != 3 {
		t.Fatalf("attempts = %d, want 3", attempts)
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusSucceeded {
		t.Fatalf("job status = %q, want %q", job.Status, jobs.StatusSucceeded)
	}
}

func TestReindexerMarksJobFailedAfterExhaustingRetries(t *testing.T) {
	p := newTestPipeline()
	store := jobs.NewMemoryStore()
	source := func(ctx context.Context) ([]models.IndexedDocument, error) {
		return nil, errors.New("permanent failure")
	}
	cfg := DefaultReindexerConfig()
	cfg.Retry = retry.Config{MaxAttempts: 1, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Factor: 1}
	r := NewReindexer(p, store, source, cfg)

	r.Enqueue(context.Background(), "job-1")
	if err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("RunOnce() error = nil, want the exhausted error")
	}

	job, _ := store.Get(context.Background(), "job-1")
	if job.Status != jobs.StatusFailed {
		t.Fatalf("job status = %q, want %q", job.Status, jobs.StatusFailed)
	}
	if job.Error == "" {
		t.Error("expected job.Error to be populated")
	}
}
