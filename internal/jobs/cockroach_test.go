package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func newMockStore(t *testing.T) (sqlmock.Sqlmock, *CockroachStore) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return mock, &CockroachStore{db: db}
}

func jobColumns() []string {
	return []string{
		"id", "tool_name", "tool_call_id", "status", "created_at",
		"started_at", "finished_at", "result", "error_message", "kind", "lease_expires_at",
	}
}

func TestCockroachCreate(t *testing.T) {
	mock, store := newMockStore(t)

	job := &Job{
		ID:         "job-1",
		ToolName:   "get",
		ToolCallID: "call-1",
		Status:     StatusQueued,
		CreatedAt:  time.Now(),
		Kind:       "reindex",
	}
	mock.ExpectExec("INSERT INTO tool_jobs").
		WithArgs(job.ID, job.ToolName, job.ToolCallID, string(job.Status),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), job.Kind, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Create(context.Background(), job); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCockroachGet(t *testing.T) {
	mock, store := newMockStore(t)

	result, _ := json.Marshal(models.ToolResult{ToolCallID: "call-1", Content: "ok"})
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM tool_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(sqlmock.NewRows(jobColumns()).
			AddRow("job-1", "get", "call-1", "succeeded", now,
				now, now, result, nil, "", nil))

	job, err := store.Get(context.Background(), "job-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if job.Status != StatusSucceeded {
		t.Fatalf("Status = %q", job.Status)
	}
	if job.Result == nil || job.Result.Content != "ok" {
		t.Fatalf("Result = %+v", job.Result)
	}
}

func TestCockroachGetMissing(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT (.+) FROM tool_jobs WHERE id").
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	job, err := store.Get(context.Background(), "nope")
	if err != nil || job != nil {
		t.Fatalf("got %+v, %v; want nil, nil", job, err)
	}
}

func TestCockroachUpdate(t *testing.T) {
	mock, store := newMockStore(t)

	job := &Job{ID: "job-1", ToolName: "get", Status: StatusFailed, Error: "boom", CreatedAt: time.Now()}
	mock.ExpectExec("UPDATE tool_jobs").
		WithArgs(job.ID, job.ToolName, job.ToolCallID, string(job.Status),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), job.Kind, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Update(context.Background(), job); err != nil {
		t.Fatalf("Update: %v", err)
	}
}

func TestCockroachPrune(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectExec("DELETE FROM tool_jobs WHERE created_at").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	pruned, err := store.Prune(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if pruned != 7 {
		t.Fatalf("pruned = %d, want 7", pruned)
	}
}

func TestCockroachLeaseClaimsQueuedJob(t *testing.T) {
	mock, store := newMockStore(t)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM tool_jobs").
		WithArgs("reindex", string(StatusQueued), string(StatusRunning), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(jobColumns()).
			AddRow("job-1", "", "", "queued", now, nil, nil, nil, nil, "reindex", nil))
	mock.ExpectExec("UPDATE tool_jobs SET status").
		WithArgs("job-1", string(StatusRunning), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	job, err := store.Lease(context.Background(), "reindex", time.Minute)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	if job == nil || job.ID != "job-1" || job.Status != StatusRunning {
		t.Fatalf("Lease = %+v", job)
	}
	if job.LeaseExpiresAt.IsZero() {
		t.Fatal("lease expiry not set")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestCockroachLeaseNoneAvailable(t *testing.T) {
	mock, store := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM tool_jobs").
		WithArgs("reindex", string(StatusQueued), string(StatusRunning), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	job, err := store.Lease(context.Background(), "reindex", time.Minute)
	if err != nil || job != nil {
		t.Fatalf("got %+v, %v; want nil, nil", job, err)
	}
}

func TestCockroachCancel(t *testing.T) {
	mock, store := newMockStore(t)
	mock.ExpectExec("UPDATE tool_jobs").
		WithArgs("job-1", string(StatusFailed), "job cancelled", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := store.Cancel(context.Background(), "job-1"); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
}
