package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/config"
	"github.com/nijaru/yt-kb/handlers/api"
	"github.com/nijaru/yt-kb/logger"
	"github.com/nijaru/yt-kb/repository/sqlite"
	"github.com/nijaru/yt-kb/scripts"
	"github.com/nijaru/yt-kb/services/notify"
	"github.com/nijaru/yt-kb/services/queue"
	"github.com/nijaru/yt-kb/services/worker"
	"github.com/nijaru/yt-kb/storage"
	"github.com/nijaru/yt-kb/validation"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logr, err := logger.New(logger.Options{
		Dir:   cfg.LogDir,
		Level: cfg.LogLevel,
		Debug: cfg.Debug,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize database
	db, err := sqlite.InitDB(cfg.Database.Path, sqlite.DBConfig{
		MaxConnections:     cfg.Database.MaxConnections,
		MaxIdleConnections: cfg.Database.MaxIdleConnections,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		BusyTimeout:        cfg.Database.BusyTimeout,
	})
	if err != nil {
		logr.WithError(err).Fatal("Failed to initialize database")
	}
	defer db.Close()

	repo, err := sqlite.NewRepository(db, sqlite.WithMaxRetries(cfg.Worker.MaxRetries))
	if err != nil {
		logr.WithError(err).Fatal("Failed to initialize repository")
	}

	// Jobs left processing by a previous run
	recovered, err := repo.RecoverOrphans(ctx)
	if err != nil {
		logr.WithError(err).Fatal("Failed to recover orphaned jobs")
	}
	if recovered > 0 {
		logr.WithField("count", recovered).Warn("Recovered orphaned jobs")
	}

	hub := notify.NewHub(logr,
		notify.WithWriteTimeout(cfg.WebSocket.WriteTimeout),
		notify.WithHeartbeatInterval(cfg.WebSocket.HeartbeatInterval),
	)

	var (
		w     *worker.Worker
		waker queue.Waker
	)
	if cfg.Worker.Enabled {
		w, err = newWorker(ctx, cfg, repo, hub, logr)
		if err != nil {
			logr.WithError(err).Fatal("Failed to initialize worker")
		}
		waker = w
	}

	queueService := queue.NewService(repo, validation.NewValidator(), hub, waker, logr)

	server := api.NewServer(cfg,
		api.WithLogger(logr),
		api.WithServices(queueService, hub),
	)

	var (
		wg           sync.WaitGroup
		workerFailed bool
	)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		hub.Run(runCtx)
	}()

	if w != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.Run(runCtx); err != nil {
				workerFailed = true
				cancel()
			}
		}()
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-runCtx.Done():
	case err := <-serverErr:
		if err != nil {
			logr.WithError(err).Error("Server error")
		}
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logr.WithError(err).Error("Server shutdown error")
	}
	wg.Wait()

	if workerFailed {
		logr.Fatal("Exiting after job store failure")
	}
	logr.Info("Shutdown complete")
}

func newWorker(
	ctx context.Context,
	cfg *config.Config,
	repo *sqlite.Repository,
	hub *notify.Hub,
	logr *logrus.Logger,
) (*worker.Worker, error) {
	runner, err := scripts.NewRunner(scripts.Config{
		Command:     cfg.Extractor.Command,
		Script:      cfg.Extractor.Script,
		OutputDir:   cfg.OutputDir,
		Timeout:     cfg.Worker.JobTimeout,
		Environment: cfg.Extractor.Environment,
	}, logr)
	if err != nil {
		return nil, err
	}

	var publisher worker.Publisher
	if cfg.Spaces.Enabled() {
		p, err := storage.NewSpacesPublisher(ctx, storage.SpacesConfig{
			AccessKey: cfg.Spaces.AccessKey,
			SecretKey: cfg.Spaces.SecretKey,
			Region:    cfg.Spaces.Region,
			Endpoint:  cfg.Spaces.Endpoint,
			Bucket:    cfg.Spaces.Bucket,
			Prefix:    cfg.Spaces.Prefix,
		}, logr)
		if err != nil {
			return nil, err
		}
		publisher = p
	}

	return worker.New(repo, runner, hub, publisher, worker.Config{
		PollInterval:     cfg.Worker.PollInterval,
		RetryDelay:       cfg.Worker.RetryDelay,
		ProgressInterval: cfg.Worker.ProgressInterval,
	}, logr), nil
}
