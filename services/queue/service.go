package queue

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/models"
	"github.com/nijaru/yt-kb/repository"
	"github.com/nijaru/yt-kb/services/notify"
	"github.com/nijaru/yt-kb/validation"
)

type Repository = repository.JobRepository

type service struct {
	repo      Repository
	validator *validation.Validator
	notifier  notify.Notifier
	waker     Waker
	logger    *logrus.Logger
}

// NewService builds the queue service. waker may be nil when no worker runs
// in this process.
func NewService(
	repo Repository,
	validator *validation.Validator,
	notifier notify.Notifier,
	waker Waker,
	logger *logrus.Logger,
) Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &service{
		repo:      repo,
		validator: validator,
		notifier:  notifier,
		waker:     waker,
		logger:    logger,
	}
}

func (s *service) Create(ctx context.Context, req models.CreateJobRequest) (*models.Job, error) {
	videoID, err := s.validator.VideoID(req.VideoID)
	if err != nil {
		return nil, err
	}

	job, err := s.repo.Create(ctx, models.NewJobInput{
		VideoID:    videoID,
		VideoTitle: req.VideoTitle,
		PlaylistID: req.PlaylistID,
		ChannelID:  req.ChannelID,
		Metadata:   req.Metadata,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video_id": job.VideoID,
	}).Info("Job queued")

	s.publish(ctx, job)
	s.wake()
	return job, nil
}

func (s *service) Get(ctx context.Context, id string) (*models.Job, error) {
	const op = "QueueService.Get"

	if strings.TrimSpace(id) == "" {
		return nil, errors.InvalidInput(op, nil, "ID is required")
	}
	return s.repo.Get(ctx, id)
}

func (s *service) List(ctx context.Context, status string) ([]*models.Job, error) {
	if status == "" {
		return s.repo.List(ctx, nil)
	}

	st, err := s.validator.Status(status)
	if err != nil {
		return nil, err
	}
	return s.repo.List(ctx, &st)
}

func (s *service) UpdateStatus(ctx context.Context, id string, req models.UpdateJobRequest) (*models.Job, error) {
	status, err := s.validator.Status(req.Status)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Progress(req.Progress); err != nil {
		return nil, err
	}

	job, err := s.repo.UpdateStatus(ctx, id, status, req.Progress)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"job_id": job.ID,
		"status": job.Status,
	}).Info("Job status updated")

	s.publish(ctx, job)
	if job.Status == models.StatusPending {
		s.wake()
	}
	return job, nil
}

func (s *service) AddSelected(ctx context.Context, req models.AddSelectedRequest) (*models.AddSelectedResponse, error) {
	ids, err := s.validator.VideoIDs(req.VideoIDs)
	if err != nil {
		return nil, err
	}

	inputs := make([]models.NewJobInput, len(ids))
	for i, id := range ids {
		inputs[i] = models.NewJobInput{
			VideoID:    id,
			PlaylistID: req.PlaylistID,
			ChannelID:  req.ChannelID,
		}
	}

	jobs, err := s.repo.CreateBatch(ctx, inputs)
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"requested": len(req.VideoIDs),
		"created":   len(jobs),
	}).Info("Selected videos queued")

	for _, job := range jobs {
		s.publish(ctx, job)
	}
	if len(jobs) > 0 {
		s.wake()
	}

	return &models.AddSelectedResponse{Created: len(jobs), Jobs: jobs}, nil
}

func (s *service) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, err
	}

	if deleted {
		s.logger.WithField("job_id", id).Info("Job deleted")
		s.notifier.Broadcast(context.WithoutCancel(ctx), models.JobDeletedEvent(id))
	}
	return deleted, nil
}

func (s *service) Stats(ctx context.Context) (models.Stats, error) {
	return s.repo.Stats(ctx)
}

// publish outlives the request so a client hanging up does not drop the event.
func (s *service) publish(ctx context.Context, job *models.Job) {
	s.notifier.Broadcast(context.WithoutCancel(ctx), models.JobUpdateEvent(job))
}

func (s *service) wake() {
	if s.waker != nil {
		s.waker.Wake()
	}
}
