package repository

import (
	"context"
	"time"

	"github.com/nijaru/yt-kb/models"
)

// JobRepository is the durable job table shared by the API and the worker.
// Every mutating call is a single transaction.
type JobRepository interface {
	Create(ctx context.Context, in models.NewJobInput) (*models.Job, error)
	// CreateBatch skips video ids that already have a pending or processing job.
	CreateBatch(ctx context.Context, ins []models.NewJobInput) ([]*models.Job, error)
	Get(ctx context.Context, id string) (*models.Job, error)
	List(ctx context.Context, status *models.Status) ([]*models.Job, error)
	UpdateStatus(ctx context.Context, id string, status models.Status, progress *float64) (*models.Job, error)
	UpdateProgress(ctx context.Context, id string, progress float64) (*models.Job, error)
	UpdateOutputPaths(ctx context.Context, id string, paths models.OutputPaths) (*models.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
	Stats(ctx context.Context) (models.Stats, error)
}

// WorkQueue is the part of the store the worker drives.
type WorkQueue interface {
	ClaimNext(ctx context.Context) (*models.Job, error)
	UpdateProgress(ctx context.Context, id string, progress float64) (*models.Job, error)
	Complete(ctx context.Context, id string, paths models.OutputPaths) (*models.Job, error)
	RecordFailure(ctx context.Context, id string, message string, backoff time.Duration) (*models.Job, error)
	RecoverOrphans(ctx context.Context) (int, error)
}
