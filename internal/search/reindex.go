package search

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/kubiyabot/skill-engine/internal/jobs"
	"github.com/kubiyabot/skill-engine/internal/retry"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// ReindexJobKind is the jobs.Store kind used for re-indexing runs.
const ReindexJobKind = "reindex"

// SourceFunc returns the full set of documents a reindex run should index.
type SourceFunc func(ctx context.Context) ([]models.IndexedDocument, error)

// ReindexerConfig tunes the Reindexer's lease and retry behaviour.
type ReindexerConfig struct {
	LeaseTTL     time.Duration
	PollInterval time.Duration
	Retry        retry.Config
}

// DefaultReindexerConfig returns sane defaults: a two minute lease (long
// enough for a full embedding pass) and a five second poll interval.
func DefaultReindexerConfig() ReindexerConfig {
	return ReindexerConfig{
		LeaseTTL:     2 * time.Minute,
		PollInterval: 5 * time.Second,
		Retry:        retry.DefaultConfig(),
	}
}

// Reindexer drives incremental re-indexing through a leased job queue.
// Enqueue submits a job; a background worker leases and runs one job at a
// time, so concurrent reindex requests against the same store never race
// each other or duplicate work. Embedding-provider failures during a run
// are retried with jittered backoff before the job is marked failed.
type Reindexer struct {
	pipeline *Pipeline
	store    jobs.Store
	source   SourceFunc
	cfg      ReindexerConfig

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewReindexer builds a Reindexer. source is invoked on every leased job to
// produce the documents to index; it typically reads the current skill
// manifest set rather than a fixed snapshot, so a reindex run always picks
// up whatever was true when the job was leased.
func NewReindexer(pipeline *Pipeline, store jobs.Store, source SourceFunc, cfg ReindexerConfig) *Reindexer {
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultReindexerConfig().LeaseTTL
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultReindexerConfig().PollInterval
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry = retry.DefaultConfig()
	}
	return &Reindexer{
		pipeline: pipeline,
		store:    store,
		source:   source,
		cfg:      cfg,
		done:     make(chan struct{}),
	}
}

// Enqueue submits a new reindex job under the given id. Safe to call from
// any goroutine.
func (r *Reindexer) Enqueue(ctx context.Context, id string) error {
	return r.store.Create(ctx, &jobs.Job{
		ID:        id,
		Kind:      ReindexJobKind,
		Status:    jobs.StatusQueued,
		CreatedAt: time.Now(),
	})
}

// Start launches the worker goroutine. Safe to call once; subsequent calls
// are no-ops.
func (r *Reindexer) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	r.started = true
	r.wg.Add(1)
	go r.loop()
}

// Close stops the worker goroutine and waits for it to exit.
func (r *Reindexer) Close() {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if !started {
		return
	}
	close(r.done)
	r.wg.Wait()
}

func (r *Reindexer) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.done:
			return
		case <-ticker.C:
			r.runOnce(context.Background())
		}
	}
}

// RunOnce leases and processes a single queued reindex job, if one is
// available. It returns nil when no job is queued; callers that want to
// drain the queue synchronously (e.g. in tests) can call it in a loop.
func (r *Reindexer) RunOnce(ctx context.Context) error {
	return r.runOnce(ctx)
}

func (r *Reindexer) runOnce(ctx context.Context) error {
	job, err := r.store.Lease(ctx, ReindexJobKind, r.cfg.LeaseTTL)
	if err != nil {
		return fmt.Errorf("reindex: lease: %w", err)
	}
	if job == nil {
		return nil
	}

	result := retry.Do(ctx, r.cfg.Retry, func() error {
		docs, err := r.source(ctx)
		if err != nil {
			return err
		}
		return r.pipeline.Index(ctx, docs)
	})

	job.FinishedAt = time.Now()
	if result.Err != nil {
		job.Status = jobs.StatusFailed
		job.Error = result.Err.Error()
	} else {
		job.Status = jobs.StatusSucceeded
	}
	if err := r.store.Update(ctx, job); err != nil {
		return fmt.Errorf("reindex: update: %w", err)
	}
	return result.Err
}
