package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/models"
	"github.com/nijaru/yt-kb/repository"
)

var (
	_ repository.JobRepository = (*Repository)(nil)
	_ repository.WorkQueue     = (*Repository)(nil)
)

const orphanExhaustedMessage = "max retries exceeded after worker crash"

type Repository struct {
	db          *sql.DB
	maxRetries  int
	lockRetries int
	retryDelay  time.Duration
	now         func() time.Time
	newID       func() string
}

type Option func(*Repository)

// WithMaxRetries sets the retry cap used by retry guards and orphan recovery.
func WithMaxRetries(n int) Option {
	return func(r *Repository) {
		r.maxRetries = n
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithLockRetry sets how often a write is retried when the database is locked.
func WithLockRetry(attempts int, delay time.Duration) Option {
	return func(r *Repository) {
		r.lockRetries = attempts
		r.retryDelay = delay
	}
}

func NewRepository(db *sql.DB, opts ...Option) (*Repository, error) {
	if db == nil {
		return nil, errors.Internal("sqlite.NewRepository", nil, "database is required")
	}

	r := &Repository{
		db:          db,
		maxRetries:  models.DefaultMaxRetries,
		lockRetries: 3,
		retryDelay:  100 * time.Millisecond,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

func (r *Repository) MaxRetries() int {
	return r.maxRetries
}

func (r *Repository) Create(ctx context.Context, in models.NewJobInput) (*models.Job, error) {
	const op = "SQLiteRepository.Create"

	var job *models.Job
	err := r.tx(ctx, op, "Failed to create job", func(tx Executor) error {
		id, err := r.insert(ctx, tx, op, in, r.now())
		if err != nil {
			return err
		}
		job, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return job, nil
}

func (r *Repository) CreateBatch(ctx context.Context, ins []models.NewJobInput) ([]*models.Job, error) {
	const op = "SQLiteRepository.CreateBatch"

	var jobs []*models.Job
	err := r.tx(ctx, op, "Failed to create jobs", func(tx Executor) error {
		jobs = make([]*models.Job, 0, len(ins))
		seen := make(map[string]struct{}, len(ins))
		now := r.now()

		for _, in := range ins {
			videoID := strings.TrimSpace(in.VideoID)
			if _, dup := seen[videoID]; dup {
				continue
			}
			seen[videoID] = struct{}{}

			active, err := hasActiveJob(ctx, tx, videoID)
			if err != nil {
				return err
			}
			if active {
				continue
			}

			id, err := r.insert(ctx, tx, op, in, now)
			if err != nil {
				return err
			}
			job, err := getJob(ctx, tx, id)
			if err != nil {
				return err
			}
			jobs = append(jobs, job)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return jobs, nil
}

func (r *Repository) insert(ctx context.Context, tx Executor, op string, in models.NewJobInput, now time.Time) (string, error) {
	videoID := strings.TrimSpace(in.VideoID)
	if videoID == "" {
		return "", errors.InvalidInput(op, nil, "video_id is required")
	}

	metadata, err := encodeJSON(in.Metadata)
	if err != nil {
		return "", errors.InvalidInput(op, err, "metadata must be a JSON object")
	}

	id := r.newID()
	ts := toNanos(now)
	_, err = tx.ExecContext(ctx, insertJobQuery,
		id,
		videoID,
		nullString(in.VideoTitle),
		nullString(in.PlaylistID),
		nullString(in.ChannelID),
		ts,
		ts,
		metadata,
	)
	if err != nil {
		return "", pkgerrors.Wrap(err, "insert job")
	}

	return id, nil
}

func (r *Repository) Get(ctx context.Context, id string) (*models.Job, error) {
	const op = "SQLiteRepository.Get"

	job, err := getJob(ctx, r.db, id)
	if err != nil {
		return nil, classify(op, err, "Failed to query job")
	}
	return job, nil
}

func (r *Repository) List(ctx context.Context, status *models.Status) ([]*models.Job, error) {
	const op = "SQLiteRepository.List"

	var (
		rows *sql.Rows
		err  error
	)
	if status != nil {
		rows, err = r.db.QueryContext(ctx, listJobsByStatusQuery, string(*status))
	} else {
		rows, err = r.db.QueryContext(ctx, listJobsQuery)
	}
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to list jobs")
	}
	defer rows.Close()

	jobs := make([]*models.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, errors.Internal(op, err, "Failed to scan job")
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate jobs")
	}

	return jobs, nil
}

// UpdateStatus moves a job along the lifecycle. Reaching completed requires
// output paths; failed returns to pending only below the retry cap.
func (r *Repository) UpdateStatus(ctx context.Context, id string, status models.Status, progress *float64) (*models.Job, error) {
	const op = "SQLiteRepository.UpdateStatus"

	if _, ok := models.ParseStatus(string(status)); !ok {
		return nil, errors.InvalidInput(op, nil, fmt.Sprintf("Invalid status: %s", status))
	}

	var updated *models.Job
	err := r.tx(ctx, op, "Failed to update job status", func(tx Executor) error {
		job, err := getJob(ctx, tx, id)
		if err != nil {
			return err
		}

		now := r.now()
		if job.Status == status {
			if status != models.StatusProcessing {
				return errors.InvalidTransition(op, string(job.Status), string(status))
			}
			if progress != nil {
				if _, err := tx.ExecContext(ctx, updateProgressQuery, clampProgress(*progress), toNanos(now), id); err != nil {
					return pkgerrors.Wrap(err, "update progress")
				}
			}
		} else {
			query, args, err := r.transition(op, job, status, now)
			if err != nil {
				return err
			}
			res, err := tx.ExecContext(ctx, query, args...)
			if err != nil {
				return pkgerrors.Wrap(err, "update status")
			}
			if n, err := res.RowsAffected(); err != nil {
				return pkgerrors.Wrap(err, "rows affected")
			} else if n == 0 {
				return errors.InvalidTransition(op, string(job.Status), string(status))
			}
		}

		updated, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (r *Repository) transition(op string, job *models.Job, to models.Status, now time.Time) (string, []interface{}, error) {
	if !models.CanTransition(job.Status, to) {
		return "", nil, errors.InvalidTransition(op, string(job.Status), string(to))
	}

	ts := toNanos(now)
	switch to {
	case models.StatusCompleted:
		if len(job.OutputPaths) == 0 {
			return "", nil, errors.InvalidTransition(op, string(job.Status), string(to))
		}
		return `UPDATE jobs SET status = 'completed', progress = 100, completed_at = ?, updated_at = ?
            WHERE id = ? AND status = ?`,
			[]interface{}{ts, ts, job.ID, string(job.Status)}, nil

	case models.StatusFailed:
		return `UPDATE jobs SET status = 'failed', progress = 0,
                retry_count = MIN(retry_count + 1, ?),
                error_message = COALESCE(error_message, 'marked as failed'),
                output_paths = NULL, completed_at = ?, updated_at = ?
            WHERE id = ? AND status = ?`,
			[]interface{}{r.maxRetries, ts, ts, job.ID, string(job.Status)}, nil

	case models.StatusPending:
		if job.Status == models.StatusFailed && job.RetryCount >= r.maxRetries {
			return "", nil, errors.InvalidTransition(op, string(job.Status), string(to))
		}
		return `UPDATE jobs SET status = 'pending', progress = 0, started_at = NULL,
                completed_at = NULL, next_attempt_at = NULL, error_message = NULL,
                output_paths = NULL, updated_at = ?
            WHERE id = ? AND status = ?`,
			[]interface{}{ts, job.ID, string(job.Status)}, nil

	case models.StatusCancelled:
		return `UPDATE jobs SET status = 'cancelled', progress = 0, output_paths = NULL,
                completed_at = ?, updated_at = ?
            WHERE id = ? AND status = ?`,
			[]interface{}{ts, ts, job.ID, string(job.Status)}, nil
	}

	return "", nil, errors.InvalidTransition(op, string(job.Status), string(to))
}

func (r *Repository) UpdateProgress(ctx context.Context, id string, progress float64) (*models.Job, error) {
	const op = "SQLiteRepository.UpdateProgress"
	return r.conditionalUpdate(ctx, op, id, models.StatusProcessing, updateProgressQuery,
		clampProgress(progress), toNanos(r.now()), id)
}

func (r *Repository) UpdateOutputPaths(ctx context.Context, id string, paths models.OutputPaths) (*models.Job, error) {
	const op = "SQLiteRepository.UpdateOutputPaths"

	encoded, err := encodeJSON(paths)
	if err != nil {
		return nil, errors.InvalidInput(op, err, "Invalid output paths")
	}
	return r.conditionalUpdate(ctx, op, id, models.StatusProcessing, updateOutputPathsQuery,
		encoded, toNanos(r.now()), id)
}

// ClaimNext marks the oldest due pending job as processing and returns it.
// It returns nil when nothing is due.
func (r *Repository) ClaimNext(ctx context.Context) (*models.Job, error) {
	const op = "SQLiteRepository.ClaimNext"

	var claimed *models.Job
	err := r.tx(ctx, op, "Failed to claim job", func(tx Executor) error {
		now := toNanos(r.now())

		var id string
		err := tx.QueryRowContext(ctx, nextPendingQuery, now).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(err, "select next pending job")
		}

		res, err := tx.ExecContext(ctx, claimJobQuery, now, now, id)
		if err != nil {
			return pkgerrors.Wrap(err, "claim job")
		}
		if n, err := res.RowsAffected(); err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		} else if n == 0 {
			return nil
		}

		claimed, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return claimed, nil
}

// Complete stores the output paths and marks a processing job completed.
func (r *Repository) Complete(ctx context.Context, id string, paths models.OutputPaths) (*models.Job, error) {
	const op = "SQLiteRepository.Complete"

	if len(paths) == 0 {
		return nil, errors.InvalidInput(op, nil, "output paths are required to complete a job")
	}
	encoded, err := encodeJSON(paths)
	if err != nil {
		return nil, errors.InvalidInput(op, err, "Invalid output paths")
	}

	ts := toNanos(r.now())
	return r.conditionalUpdate(ctx, op, id, models.StatusCompleted, completeJobQuery,
		encoded, ts, ts, id)
}

// RecordFailure increments retry_count of a processing job. Below the cap the
// job goes back to pending, due after backoff; at the cap it fails terminally.
func (r *Repository) RecordFailure(ctx context.Context, id string, message string, backoff time.Duration) (*models.Job, error) {
	const op = "SQLiteRepository.RecordFailure"

	var updated *models.Job
	err := r.tx(ctx, op, "Failed to record job failure", func(tx Executor) error {
		job, err := getJob(ctx, tx, id)
		if err != nil {
			return err
		}
		if job.Status != models.StatusProcessing {
			return errors.InvalidTransition(op, string(job.Status), string(models.StatusFailed))
		}

		now := r.now()
		ts := toNanos(now)
		count := job.RetryCount + 1

		var res sql.Result
		if count < r.maxRetries {
			res, err = tx.ExecContext(ctx, requeueFailedJobQuery,
				count, message, toNanos(now.Add(backoff)), ts, id)
		} else {
			if count > r.maxRetries {
				count = r.maxRetries
			}
			res, err = tx.ExecContext(ctx, failJobQuery, count, message, ts, ts, id)
		}
		if err != nil {
			return pkgerrors.Wrap(err, "record failure")
		}
		if n, err := res.RowsAffected(); err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		} else if n == 0 {
			return errors.InvalidTransition(op, string(job.Status), string(models.StatusFailed))
		}

		updated, err = getJob(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// Delete removes the job. It reports false when the job did not exist.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	const op = "SQLiteRepository.Delete"

	var deleted bool
	err := r.tx(ctx, op, "Failed to delete job", func(tx Executor) error {
		res, err := tx.ExecContext(ctx, deleteJobQuery, id)
		if err != nil {
			return pkgerrors.Wrap(err, "delete job")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}

	return deleted, nil
}

// RecoverOrphans resets jobs left processing by an unclean shutdown. Jobs
// below the retry cap return to pending; the rest fail terminally.
func (r *Repository) RecoverOrphans(ctx context.Context) (int, error) {
	const op = "SQLiteRepository.RecoverOrphans"

	var recovered int64
	err := r.tx(ctx, op, "Failed to recover orphaned jobs", func(tx Executor) error {
		ts := toNanos(r.now())

		res, err := tx.ExecContext(ctx, recoverRetryableQuery, ts, r.maxRetries)
		if err != nil {
			return pkgerrors.Wrap(err, "requeue orphans")
		}
		requeued, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		}

		res, err = tx.ExecContext(ctx, recoverExhaustedQuery, orphanExhaustedMessage, ts, ts)
		if err != nil {
			return pkgerrors.Wrap(err, "fail exhausted orphans")
		}
		failed, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		}

		recovered = requeued + failed
		return nil
	})
	if err != nil {
		return 0, err
	}

	return int(recovered), nil
}

func (r *Repository) Stats(ctx context.Context) (models.Stats, error) {
	const op = "SQLiteRepository.Stats"

	rows, err := r.db.QueryContext(ctx, statsQuery)
	if err != nil {
		return nil, errors.Internal(op, err, "Failed to count jobs")
	}
	defer rows.Close()

	stats := models.Stats{
		models.StatusPending:    0,
		models.StatusProcessing: 0,
		models.StatusCompleted:  0,
		models.StatusFailed:     0,
		models.StatusCancelled:  0,
	}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, errors.Internal(op, err, "Failed to scan job counts")
		}
		stats[models.Status(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal(op, err, "Failed to iterate job counts")
	}

	return stats, nil
}

// conditionalUpdate runs query, which must be guarded by "status = 'processing'",
// and reports NotFound or InvalidTransition when no row matched.
func (r *Repository) conditionalUpdate(ctx context.Context, op string, id string, to models.Status, query string, args ...interface{}) (*models.Job, error) {
	var updated *models.Job
	err := r.tx(ctx, op, "Failed to update job", func(tx Executor) error {
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return pkgerrors.Wrap(err, "update job")
		}
		n, err := res.RowsAffected()
		if err != nil {
			return pkgerrors.Wrap(err, "rows affected")
		}

		job, err := getJob(ctx, tx, id)
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.InvalidTransition(op, string(job.Status), string(to))
		}
		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// tx runs fn in a transaction, retrying when SQLite reports a lock, and
// classifies anything that is not already an AppError as a store failure.
func (r *Repository) tx(ctx context.Context, op, message string, fn TxFn) error {
	var err error
	for i := 0; i < r.lockRetries; i++ {
		err = WithTransaction(ctx, r.db, fn)
		if err == nil || !isLockError(err) {
			break
		}

		select {
		case <-ctx.Done():
			return errors.Internal(op, ctx.Err(), "context cancelled")
		case <-time.After(r.retryDelay * time.Duration(i+1)):
		}
	}
	if err == nil {
		return nil
	}

	return classify(op, err, message)
}

func classify(op string, err error, message string) error {
	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return errors.Internal(op, err, message)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func getJob(ctx context.Context, ex Executor, id string) (*models.Job, error) {
	const op = "SQLiteRepository.getJob"

	job, err := scanJob(ex.QueryRowContext(ctx, getJobQuery, id))
	if err == sql.ErrNoRows {
		return nil, errors.NotFound(op, nil, "Job not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "query job")
	}
	return job, nil
}

func hasActiveJob(ctx context.Context, ex Executor, videoID string) (bool, error) {
	var one int
	err := ex.QueryRowContext(ctx, activeByVideoQuery, videoID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, pkgerrors.Wrap(err, "query active job")
	}
	return true, nil
}

func scanJob(s rowScanner) (*models.Job, error) {
	var (
		job                                   models.Job
		title, playlist, channel, errMsg      sql.NullString
		outputs, metadata                     sql.NullString
		status                                string
		createdAt, updatedAt                  int64
		startedAt, completedAt, nextAttemptAt sql.NullInt64
	)

	err := s.Scan(
		&job.ID,
		&job.VideoID,
		&title,
		&playlist,
		&channel,
		&status,
		&job.Progress,
		&createdAt,
		&startedAt,
		&completedAt,
		&updatedAt,
		&nextAttemptAt,
		&errMsg,
		&job.RetryCount,
		&outputs,
		&metadata,
	)
	if err != nil {
		return nil, err
	}

	job.Status = models.Status(status)
	job.VideoTitle = stringPtr(title)
	job.PlaylistID = stringPtr(playlist)
	job.ChannelID = stringPtr(channel)
	job.ErrorMessage = stringPtr(errMsg)
	job.CreatedAt = fromNanos(createdAt)
	job.UpdatedAt = fromNanos(updatedAt)
	job.StartedAt = timePtr(startedAt)
	job.CompletedAt = timePtr(completedAt)
	job.NextAttemptAt = timePtr(nextAttemptAt)

	// Undecodable blobs are dropped rather than failing the read.
	if outputs.Valid {
		var paths models.OutputPaths
		if json.Unmarshal([]byte(outputs.String), &paths) == nil && len(paths) > 0 {
			job.OutputPaths = paths
		}
	}
	if metadata.Valid {
		var meta models.Metadata
		if json.Unmarshal([]byte(metadata.String), &meta) == nil {
			job.Metadata = meta
		}
	}

	return &job, nil
}

func encodeJSON[T ~map[string]V, V any](v T) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func clampProgress(p float64) float64 {
	switch {
	case math.IsNaN(p) || p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullString(s *string) interface{} {
	if s == nil {
		return nil
	}
	return *s
}
