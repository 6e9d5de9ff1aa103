package worker

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/nijaru/yt-kb/errors"
	"github.com/nijaru/yt-kb/models"
	"github.com/nijaru/yt-kb/repository"
	"github.com/nijaru/yt-kb/scripts"
	"github.com/nijaru/yt-kb/services/notify"
)

// Extractor turns a video id into local artifacts.
type Extractor interface {
	Extract(ctx context.Context, videoID string, onProgress scripts.ProgressFunc) (*scripts.Result, error)
}

// Publisher copies local artifacts elsewhere and returns their new locations.
type Publisher interface {
	Publish(ctx context.Context, videoID string, paths models.OutputPaths) (models.OutputPaths, error)
}

type Config struct {
	PollInterval time.Duration
	// RetryDelay is the wait before the first retry; it doubles per failure.
	RetryDelay time.Duration
	// ProgressInterval is the minimum gap between progress broadcasts per job.
	ProgressInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		PollInterval:     5 * time.Second,
		RetryDelay:       5 * time.Second,
		ProgressInterval: 500 * time.Millisecond,
	}
}

// Worker claims pending jobs one at a time and runs them through the
// extractor.
type Worker struct {
	queue     repository.WorkQueue
	extractor Extractor
	notifier  notify.Notifier
	publisher Publisher
	config    Config
	logger    *logrus.Logger
	wake      chan struct{}
}

// New builds a worker. publisher may be nil.
func New(
	queue repository.WorkQueue,
	extractor Extractor,
	notifier notify.Notifier,
	publisher Publisher,
	cfg Config,
	logger *logrus.Logger,
) *Worker {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultConfig().PollInterval
	}
	return &Worker{
		queue:     queue,
		extractor: extractor,
		notifier:  notifier,
		publisher: publisher,
		config:    cfg,
		logger:    logger,
		wake:      make(chan struct{}, 1),
	}
}

// Wake asks the worker to look for work now instead of at the next poll.
// It never blocks.
func (w *Worker) Wake() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Run processes jobs until ctx is cancelled. It returns a non-nil error
// only when the store fails; callers should treat that as fatal.
func (w *Worker) Run(ctx context.Context) error {
	w.logger.WithField("poll_interval", w.config.PollInterval).Info("Worker started")
	defer w.logger.Info("Worker stopped")

	timer := time.NewTimer(w.config.PollInterval)
	defer timer.Stop()

	for {
		processed, err := w.ProcessNext(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			w.logger.WithError(err).Error("Job store failure, stopping worker")
			return err
		}
		if processed {
			continue
		}

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(w.config.PollInterval)

		select {
		case <-ctx.Done():
			return nil
		case <-w.wake:
		case <-timer.C:
		}
	}
}

// ProcessNext claims and runs the oldest due job. It reports whether a job
// was claimed.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	job, err := w.queue.ClaimNext(ctx)
	if err != nil {
		return false, pkgerrors.Wrap(err, "claim next job")
	}
	if job == nil {
		return false, nil
	}

	w.logger.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"video_id":    job.VideoID,
		"retry_count": job.RetryCount,
	}).Info("Processing job")
	w.publish(ctx, job)

	return true, w.process(ctx, job)
}

func (w *Worker) process(ctx context.Context, job *models.Job) error {
	logger := w.logger.WithFields(logrus.Fields{
		"job_id":   job.ID,
		"video_id": job.VideoID,
	})

	progress := w.progressReporter(ctx, job, logger)
	result, err := w.extractor.Extract(ctx, job.VideoID, progress.report)
	if storeErr := progress.err(); storeErr != nil {
		return storeErr
	}
	if ctx.Err() != nil {
		logger.Info("Shutdown interrupted job, it will be recovered on next start")
		return nil
	}
	if err != nil {
		return w.fail(ctx, job, scripts.FailureMessage(err), logger)
	}

	paths := models.OutputPaths(result.OutputPaths)
	if w.publisher != nil {
		published, err := w.publisher.Publish(ctx, job.VideoID, paths)
		if err != nil {
			return w.fail(ctx, job, err.Error(), logger)
		}
		paths = published
	}

	done, err := w.queue.Complete(ctx, job.ID, paths)
	if err != nil {
		if errors.IsStoreFailure(err) {
			return err
		}
		logger.WithError(err).Warn("Job changed during extraction, result discarded")
		return nil
	}

	logger.WithField("output_paths", done.OutputPaths).Info("Job completed")
	w.publish(ctx, done)
	return nil
}

func (w *Worker) fail(ctx context.Context, job *models.Job, message string, logger *logrus.Entry) error {
	backoff := w.backoff(job.RetryCount + 1)

	updated, err := w.queue.RecordFailure(ctx, job.ID, message, backoff)
	if err != nil {
		if errors.IsStoreFailure(err) {
			return err
		}
		logger.WithError(err).Warn("Job changed during extraction, failure discarded")
		return nil
	}

	entry := logger.WithFields(logrus.Fields{
		"error":       message,
		"retry_count": updated.RetryCount,
	})
	if updated.Status == models.StatusFailed {
		entry.Error("Job failed, retries exhausted")
	} else {
		entry.WithField("retry_in", backoff).Warn("Job failed, scheduled for retry")
	}

	w.publish(ctx, updated)
	return nil
}

// backoff returns the delay before attempt n+1 after the nth failure.
func (w *Worker) backoff(failures int) time.Duration {
	if failures < 1 {
		failures = 1
	}
	if failures > 16 {
		failures = 16
	}
	return w.config.RetryDelay * time.Duration(1<<(failures-1))
}

func (w *Worker) publish(ctx context.Context, job *models.Job) {
	w.notifier.Broadcast(ctx, models.JobUpdateEvent(job))
}

// progressReporter persists every progress value and broadcasts at most
// once per ProgressInterval.
type progressReporter struct {
	w       *Worker
	ctx     context.Context
	job     *models.Job
	logger  *logrus.Entry
	limiter *rate.Limiter

	mu       sync.Mutex
	storeErr error
}

func (w *Worker) progressReporter(ctx context.Context, job *models.Job, logger *logrus.Entry) *progressReporter {
	limit := rate.Inf
	if w.config.ProgressInterval > 0 {
		limit = rate.Every(w.config.ProgressInterval)
	}
	return &progressReporter{
		w:       w,
		ctx:     ctx,
		job:     job,
		logger:  logger,
		limiter: rate.NewLimiter(limit, 1),
	}
}

func (p *progressReporter) report(progress float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.storeErr != nil {
		return
	}

	updated, err := p.w.queue.UpdateProgress(p.ctx, p.job.ID, progress)
	if err != nil {
		if errors.IsStoreFailure(err) {
			p.storeErr = err
			return
		}
		p.logger.WithError(err).Debug("Progress not recorded")
		return
	}

	if p.limiter.Allow() {
		p.w.publish(p.ctx, updated)
	}
}

func (p *progressReporter) err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.storeErr
}
