package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/models"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := InitDB(filepath.Join(t.TempDir(), "queue.db"), DefaultDBConfig())
	if err != nil {
		t.Fatalf("InitDB() error = %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestRepo(t *testing.T, opts ...Option) (*Repository, *testClock) {
	t.Helper()
	clock := newTestClock()
	opts = append([]Option{WithClock(clock.Now)}, opts...)
	repo, err := NewRepository(setupTestDB(t), opts...)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	return repo, clock
}

func mustCreate(t *testing.T, repo *Repository, videoID string) *models.Job {
	t.Helper()
	job, err := repo.Create(context.Background(), models.NewJobInput{VideoID: videoID})
	if err != nil {
		t.Fatalf("Create(%s) error = %v", videoID, err)
	}
	return job
}

func mustClaim(t *testing.T, repo *Repository) *models.Job {
	t.Helper()
	job, err := repo.ClaimNext(context.Background())
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if job == nil {
		t.Fatal("ClaimNext() returned no job")
	}
	return job
}

func statusPtr(s models.Status) *models.Status { return &s }

func TestInitDBIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "queue.db")
	for i := 0; i < 2; i++ {
		db, err := InitDB(path, DefaultDBConfig())
		if err != nil {
			t.Fatalf("InitDB() attempt %d error = %v", i, err)
		}
		db.Close()
	}
}

func TestCreateAndGet(t *testing.T) {
	repo, clock := setupTestRepo(t)
	ctx := context.Background()
	title := "Intro to Go"

	job, err := repo.Create(ctx, models.NewJobInput{
		VideoID:    "dQw4w9WgXcQ",
		VideoTitle: &title,
		Metadata:   models.Metadata{"source": "playlist"},
	})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if job.ID == "" {
		t.Fatal("expected generated id")
	}
	if job.Status != models.StatusPending {
		t.Errorf("expected pending, got %s", job.Status)
	}
	if job.Progress != 0 || job.RetryCount != 0 {
		t.Errorf("expected zero progress and retries, got %v/%d", job.Progress, job.RetryCount)
	}
	if !job.CreatedAt.Equal(clock.Now()) {
		t.Errorf("expected created_at %v, got %v", clock.Now(), job.CreatedAt)
	}
	if job.StartedAt != nil || job.CompletedAt != nil || job.ErrorMessage != nil {
		t.Error("expected unset timestamps and error")
	}

	got, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.VideoTitle == nil || *got.VideoTitle != title {
		t.Errorf("expected title %q, got %v", title, got.VideoTitle)
	}
	if got.Metadata["source"] != "playlist" {
		t.Errorf("unexpected metadata %v", got.Metadata)
	}
}

func TestCreateRejectsEmptyVideoID(t *testing.T) {
	repo, _ := setupTestRepo(t)
	_, err := repo.Create(context.Background(), models.NewJobInput{VideoID: "  "})
	if !errors.IsInvalidInput(err) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestGetUnknownJob(t *testing.T) {
	repo, _ := setupTestRepo(t)
	_, err := repo.Get(context.Background(), "missing")
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListOrderAndFilter(t *testing.T) {
	repo, clock := setupTestRepo(t)
	ctx := context.Background()

	a := mustCreate(t, repo, "aaaaaaaaaaa")
	clock.Advance(time.Second)
	b := mustCreate(t, repo, "bbbbbbbbbbb")
	clock.Advance(time.Second)
	c := mustCreate(t, repo, "ccccccccccc")

	if _, err := repo.UpdateStatus(ctx, b.ID, models.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel error = %v", err)
	}

	all, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(all) != 3 || all[0].ID != a.ID || all[1].ID != b.ID || all[2].ID != c.ID {
		t.Fatalf("unexpected order: %v", ids(all))
	}

	pending, err := repo.List(ctx, statusPtr(models.StatusPending))
	if err != nil {
		t.Fatalf("List(pending) error = %v", err)
	}
	if len(pending) != 2 || pending[0].ID != a.ID || pending[1].ID != c.ID {
		t.Fatalf("unexpected pending jobs: %v", ids(pending))
	}

	none, err := repo.List(ctx, statusPtr(models.StatusFailed))
	if err != nil {
		t.Fatalf("List(failed) error = %v", err)
	}
	if none == nil || len(none) != 0 {
		t.Fatalf("expected empty non-nil slice, got %v", none)
	}
}

func TestClaimNextIsFIFO(t *testing.T) {
	repo, clock := setupTestRepo(t)
	ctx := context.Background()

	first := mustCreate(t, repo, "11111111111")
	clock.Advance(time.Millisecond)
	second := mustCreate(t, repo, "22222222222")
	clock.Advance(time.Millisecond)
	third := mustCreate(t, repo, "33333333333")

	for _, want := range []*models.Job{first, second, third} {
		got := mustClaim(t, repo)
		if got.ID != want.ID {
			t.Fatalf("expected %s, got %s", want.VideoID, got.VideoID)
		}
		if got.Status != models.StatusProcessing || got.StartedAt == nil {
			t.Fatalf("claimed job not processing: %+v", got)
		}
	}

	job, err := repo.ClaimNext(ctx)
	if err != nil {
		t.Fatalf("ClaimNext() error = %v", err)
	}
	if job != nil {
		t.Fatalf("expected empty queue, got %s", job.ID)
	}
}

func TestClaimNextSameTimestampUsesInsertOrder(t *testing.T) {
	repo, _ := setupTestRepo(t)

	jobs, err := repo.CreateBatch(context.Background(), []models.NewJobInput{
		{VideoID: "aaaaaaaaaaa"},
		{VideoID: "bbbbbbbbbbb"},
	})
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}

	if got := mustClaim(t, repo); got.ID != jobs[0].ID {
		t.Fatalf("expected first batch job, got %s", got.VideoID)
	}
}

// Scenario: a job fails twice and then succeeds.
func TestRetryThenComplete(t *testing.T) {
	repo, clock := setupTestRepo(t)
	ctx := context.Background()
	job := mustCreate(t, repo, "dQw4w9WgXcQ")

	for attempt := 1; attempt <= 2; attempt++ {
		claimed := mustClaim(t, repo)
		failed, err := repo.RecordFailure(ctx, claimed.ID, "network error", 5*time.Second)
		if err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
		if failed.Status != models.StatusPending || failed.RetryCount != attempt {
			t.Fatalf("attempt %d: expected pending with %d retries, got %s/%d",
				attempt, attempt, failed.Status, failed.RetryCount)
		}
		if failed.ErrorMessage == nil || *failed.ErrorMessage != "network error" {
			t.Fatalf("expected error message to be kept, got %v", failed.ErrorMessage)
		}
		if failed.NextAttemptAt == nil {
			t.Fatal("expected next_attempt_at to be set")
		}

		// Not due until the backoff elapses.
		if early, err := repo.ClaimNext(ctx); err != nil || early != nil {
			t.Fatalf("expected nothing due, got %v, %v", early, err)
		}
		clock.Advance(5 * time.Second)
	}

	claimed := mustClaim(t, repo)
	done, err := repo.Complete(ctx, claimed.ID, models.OutputPaths{
		models.OutputTranscriptMarkdown: "/out/dQw4w9WgXcQ/transcript.md",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if done.ID != job.ID || done.Status != models.StatusCompleted {
		t.Fatalf("expected completed job, got %+v", done)
	}
	if done.RetryCount != 2 || done.Progress != 100 || done.CompletedAt == nil {
		t.Errorf("unexpected completed job %+v", done)
	}
	if done.ErrorMessage != nil {
		t.Errorf("expected error cleared on success, got %q", *done.ErrorMessage)
	}
}

// Scenario: a job exhausts its retries and fails terminally.
func TestRetriesExhausted(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	mustCreate(t, repo, "dQw4w9WgXcQ")

	var last *models.Job
	for i := 0; i < models.DefaultMaxRetries; i++ {
		claimed := mustClaim(t, repo)
		var err error
		last, err = repo.RecordFailure(ctx, claimed.ID, fmt.Sprintf("boom %d", i), 0)
		if err != nil {
			t.Fatalf("RecordFailure() error = %v", err)
		}
	}

	if last.Status != models.StatusFailed || last.RetryCount != models.DefaultMaxRetries {
		t.Fatalf("expected failed with %d retries, got %s/%d", models.DefaultMaxRetries, last.Status, last.RetryCount)
	}
	if last.CompletedAt == nil {
		t.Error("expected completed_at on terminal failure")
	}
	if last.ErrorMessage == nil || *last.ErrorMessage != "boom 2" {
		t.Errorf("expected last error, got %v", last.ErrorMessage)
	}

	if _, err := repo.UpdateStatus(ctx, last.ID, models.StatusPending, nil); !errors.IsInvalidTransition(err) {
		t.Fatalf("expected retry to be refused, got %v", err)
	}
	if job, _ := repo.ClaimNext(ctx); job != nil {
		t.Fatal("exhausted job must not be claimed")
	}
}

func TestExplicitRetryClearsFailure(t *testing.T) {
	repo, _ := setupTestRepo(t, WithMaxRetries(3))
	ctx := context.Background()
	job := mustCreate(t, repo, "dQw4w9WgXcQ")
	mustClaim(t, repo)

	failed, err := repo.UpdateStatus(ctx, job.ID, models.StatusFailed, nil)
	if err != nil {
		t.Fatalf("UpdateStatus(failed) error = %v", err)
	}
	if failed.RetryCount != 1 || failed.CompletedAt == nil {
		t.Fatalf("unexpected failed job %+v", failed)
	}

	retried, err := repo.UpdateStatus(ctx, job.ID, models.StatusPending, nil)
	if err != nil {
		t.Fatalf("UpdateStatus(pending) error = %v", err)
	}
	if retried.Status != models.StatusPending || retried.RetryCount != 1 {
		t.Fatalf("unexpected retried job %+v", retried)
	}
	if retried.ErrorMessage != nil || retried.CompletedAt != nil || retried.StartedAt != nil {
		t.Errorf("expected failure fields cleared, got %+v", retried)
	}
}

func TestUpdateStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, repo *Repository, id string)
		to      models.Status
		wantErr bool
	}{
		{"pending to cancelled", nil, models.StatusCancelled, false},
		{"pending to processing", nil, models.StatusProcessing, true},
		{"pending to completed", nil, models.StatusCompleted, true},
		{"pending to failed", nil, models.StatusFailed, true},
		{"pending to pending", nil, models.StatusPending, true},
		{
			"processing to cancelled",
			func(t *testing.T, repo *Repository, _ string) { mustClaim(t, repo) },
			models.StatusCancelled, true,
		},
		{
			"processing to pending",
			func(t *testing.T, repo *Repository, _ string) { mustClaim(t, repo) },
			models.StatusPending, true,
		},
		{
			"processing to completed without outputs",
			func(t *testing.T, repo *Repository, _ string) { mustClaim(t, repo) },
			models.StatusCompleted, true,
		},
		{
			"processing to completed with outputs",
			func(t *testing.T, repo *Repository, id string) {
				mustClaim(t, repo)
				if _, err := repo.UpdateOutputPaths(context.Background(), id, models.OutputPaths{"metadata": "/m.json"}); err != nil {
					t.Fatalf("UpdateOutputPaths() error = %v", err)
				}
			},
			models.StatusCompleted, false,
		},
		{
			"cancelled to pending",
			func(t *testing.T, repo *Repository, id string) {
				if _, err := repo.UpdateStatus(context.Background(), id, models.StatusCancelled, nil); err != nil {
					t.Fatalf("cancel error = %v", err)
				}
			},
			models.StatusPending, true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, _ := setupTestRepo(t)
			job := mustCreate(t, repo, "dQw4w9WgXcQ")
			if tt.setup != nil {
				tt.setup(t, repo, job.ID)
			}

			got, err := repo.UpdateStatus(context.Background(), job.ID, tt.to, nil)
			if tt.wantErr {
				if !errors.IsInvalidTransition(err) {
					t.Fatalf("expected invalid transition, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("UpdateStatus() error = %v", err)
			}
			if got.Status != tt.to {
				t.Fatalf("expected %s, got %s", tt.to, got.Status)
			}
			if tt.to.IsTerminal() != (got.CompletedAt != nil) {
				t.Errorf("completed_at must be set only in terminal states, got %v", got.CompletedAt)
			}
		})
	}
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	repo, _ := setupTestRepo(t)
	_, err := repo.UpdateStatus(context.Background(), "missing", models.StatusCancelled, nil)
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProgress(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	job := mustCreate(t, repo, "dQw4w9WgXcQ")

	if _, err := repo.UpdateProgress(ctx, job.ID, 10); !errors.IsInvalidTransition(err) {
		t.Fatalf("expected pending job to reject progress, got %v", err)
	}

	mustClaim(t, repo)
	got, err := repo.UpdateProgress(ctx, job.ID, 42.5)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if got.Progress != 42.5 {
		t.Errorf("expected 42.5, got %v", got.Progress)
	}

	got, err = repo.UpdateProgress(ctx, job.ID, 250)
	if err != nil {
		t.Fatalf("UpdateProgress() error = %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("expected progress clamped to 100, got %v", got.Progress)
	}

	p := 30.0
	got, err = repo.UpdateStatus(ctx, job.ID, models.StatusProcessing, &p)
	if err != nil {
		t.Fatalf("UpdateStatus(processing) error = %v", err)
	}
	if got.Progress != 100 {
		t.Errorf("progress must not move backwards, got %v", got.Progress)
	}

	if _, err := repo.UpdateProgress(ctx, "missing", 1); !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOutputPathsClearedWhenNotCompleted(t *testing.T) {
	repo, _ := setupTestRepo(t, WithMaxRetries(2))
	ctx := context.Background()
	job := mustCreate(t, repo, "dQw4w9WgXcQ")

	setPaths := func(name string) {
		t.Helper()
		mustClaim(t, repo)
		if _, err := repo.UpdateOutputPaths(ctx, job.ID, models.OutputPaths{"metadata": name}); err != nil {
			t.Fatalf("UpdateOutputPaths() error = %v", err)
		}
	}

	setPaths("/m1.json")
	requeued, err := repo.RecordFailure(ctx, job.ID, "boom", 0)
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if requeued.Status != models.StatusPending || requeued.OutputPaths != nil {
		t.Fatalf("after requeue: status=%s output_paths=%v", requeued.Status, requeued.OutputPaths)
	}

	setPaths("/m2.json")
	if _, err := repo.RecoverOrphans(ctx); err != nil {
		t.Fatalf("RecoverOrphans() error = %v", err)
	}
	recovered, err := repo.Get(ctx, job.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if recovered.Status != models.StatusPending || recovered.OutputPaths != nil {
		t.Fatalf("after recovery: status=%s output_paths=%v", recovered.Status, recovered.OutputPaths)
	}

	setPaths("/m3.json")
	failed, err := repo.RecordFailure(ctx, job.ID, "boom again", 0)
	if err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if failed.Status != models.StatusFailed || failed.OutputPaths != nil {
		t.Fatalf("after final failure: status=%s output_paths=%v", failed.Status, failed.OutputPaths)
	}

	other := mustCreate(t, repo, "aaaaaaaaaaa")
	mustClaim(t, repo)
	if _, err := repo.UpdateOutputPaths(ctx, other.ID, models.OutputPaths{"metadata": "/x.json"}); err != nil {
		t.Fatalf("UpdateOutputPaths() error = %v", err)
	}
	marked, err := repo.UpdateStatus(ctx, other.ID, models.StatusFailed, nil)
	if err != nil {
		t.Fatalf("UpdateStatus(failed) error = %v", err)
	}
	if marked.OutputPaths != nil {
		t.Fatalf("manual failure kept output paths %v", marked.OutputPaths)
	}
}

// Scenario: the worker dies mid-job and the next start recovers it.
func TestRecoverOrphans(t *testing.T) {
	repo, _ := setupTestRepo(t, WithMaxRetries(2))
	ctx := context.Background()

	retryable := mustCreate(t, repo, "aaaaaaaaaaa")
	exhausted := mustCreate(t, repo, "bbbbbbbbbbb")
	untouched := mustCreate(t, repo, "ccccccccccc")

	mustClaim(t, repo)
	mustClaim(t, repo)
	// Burn the second job's retries while leaving it processing.
	if _, err := repo.db.Exec(`UPDATE jobs SET retry_count = 2 WHERE id = ?`, exhausted.ID); err != nil {
		t.Fatalf("setup error = %v", err)
	}

	n, err := repo.RecoverOrphans(ctx)
	if err != nil {
		t.Fatalf("RecoverOrphans() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 recovered jobs, got %d", n)
	}

	got, _ := repo.Get(ctx, retryable.ID)
	if got.Status != models.StatusPending || got.StartedAt != nil {
		t.Errorf("expected retryable job back to pending, got %+v", got)
	}
	got, _ = repo.Get(ctx, exhausted.ID)
	if got.Status != models.StatusFailed || got.CompletedAt == nil || got.ErrorMessage == nil {
		t.Errorf("expected exhausted job failed, got %+v", got)
	}
	got, _ = repo.Get(ctx, untouched.ID)
	if got.Status != models.StatusPending {
		t.Errorf("expected untouched job pending, got %s", got.Status)
	}

	n, err = repo.RecoverOrphans(ctx)
	if err != nil || n != 0 {
		t.Fatalf("expected nothing left to recover, got %d, %v", n, err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	job := mustCreate(t, repo, "dQw4w9WgXcQ")

	deleted, err := repo.Delete(ctx, job.ID)
	if err != nil || !deleted {
		t.Fatalf("first Delete() = %v, %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, job.ID)
	if err != nil || deleted {
		t.Fatalf("second Delete() = %v, %v", deleted, err)
	}
}

// A job deleted mid-extraction stays deleted when the worker finishes.
func TestCompleteAfterDeleteIsDiscarded(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	job := mustCreate(t, repo, "dQw4w9WgXcQ")
	mustClaim(t, repo)

	if _, err := repo.Delete(ctx, job.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	_, err := repo.Complete(ctx, job.ID, models.OutputPaths{"metadata": "/m.json"})
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := repo.Get(ctx, job.ID); !errors.IsNotFound(err) {
		t.Fatal("deleted job must not reappear")
	}
}

func TestCreateBatchSkipsActiveDuplicates(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()
	playlist := "PL123"

	existing := mustCreate(t, repo, "aaaaaaaaaaa")

	jobs, err := repo.CreateBatch(ctx, []models.NewJobInput{
		{VideoID: "aaaaaaaaaaa", PlaylistID: &playlist},
		{VideoID: "bbbbbbbbbbb", PlaylistID: &playlist},
		{VideoID: "bbbbbbbbbbb", PlaylistID: &playlist},
		{VideoID: "ccccccccccc", PlaylistID: &playlist},
	})
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	if len(jobs) != 2 || jobs[0].VideoID != "bbbbbbbbbbb" || jobs[1].VideoID != "ccccccccccc" {
		t.Fatalf("unexpected batch %v", ids(jobs))
	}
	if jobs[0].PlaylistID == nil || *jobs[0].PlaylistID != playlist {
		t.Errorf("expected playlist id on created jobs")
	}

	if _, err := repo.UpdateStatus(ctx, existing.ID, models.StatusCancelled, nil); err != nil {
		t.Fatalf("cancel error = %v", err)
	}
	jobs, err = repo.CreateBatch(ctx, []models.NewJobInput{{VideoID: "aaaaaaaaaaa"}})
	if err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("expected cancelled video to be queued again, got %d jobs", len(jobs))
	}
}

func TestConcurrentCreates(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := repo.Create(ctx, models.NewJobInput{VideoID: fmt.Sprintf("video%06d", i)}); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Create() error = %v", err)
	}

	jobs, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(jobs) != n {
		t.Fatalf("expected %d jobs, got %d", n, len(jobs))
	}
}

func TestStats(t *testing.T) {
	repo, _ := setupTestRepo(t)
	ctx := context.Background()

	mustCreate(t, repo, "aaaaaaaaaaa")
	mustCreate(t, repo, "bbbbbbbbbbb")
	mustClaim(t, repo)

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats[models.StatusPending] != 1 || stats[models.StatusProcessing] != 1 {
		t.Errorf("unexpected stats %v", stats)
	}
	if _, ok := stats[models.StatusCancelled]; !ok {
		t.Error("expected every status to be reported")
	}
}

func ids(jobs []*models.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.VideoID
	}
	return out
}
