package queue

import (
	"context"

	"github.com/nijaru/yt-kb/models"
)

type Service interface {
	// Create queues one video for extraction
	Create(ctx context.Context, req models.CreateJobRequest) (*models.Job, error)

	Get(ctx context.Context, id string) (*models.Job, error)

	// List returns jobs oldest first, optionally filtered by status
	List(ctx context.Context, status string) ([]*models.Job, error)

	// UpdateStatus applies a lifecycle transition requested by a client
	UpdateStatus(ctx context.Context, id string, req models.UpdateJobRequest) (*models.Job, error)

	// AddSelected queues several videos, skipping ones already queued
	AddSelected(ctx context.Context, req models.AddSelectedRequest) (*models.AddSelectedResponse, error)

	// Delete removes a job and reports whether it existed
	Delete(ctx context.Context, id string) (bool, error)

	Stats(ctx context.Context) (models.Stats, error)
}

// Waker is signalled when new work may be available.
type Waker interface {
	Wake()
}
