// Package worker runs periodic maintenance jobs in the background of the
// server process.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/bazaar/internal/telemetry"
	"github.com/google/uuid"
)

// Job is a unit of periodic work.
type Job interface {
	// Type names the job in logs.
	Type() string
	Process(ctx context.Context) error
}

// Config holds worker configuration
type Config struct {
	// WorkerID uniquely identifies this worker instance
	WorkerID string

	// PollInterval is how often every job is run
	PollInterval time.Duration

	// MaxConcurrency is the maximum number of jobs to process concurrently
	MaxConcurrency int

	// JobTimeout bounds a single run of a job
	JobTimeout time.Duration
}

// Worker runs its jobs on every tick until stopped.
type Worker struct {
	config Config
	jobs   []Job
	logger *slog.Logger

	wg sync.WaitGroup
}

// NewWorker creates a new background job worker
func NewWorker(config Config, logger *slog.Logger, jobs ...Job) *Worker {
	if config.WorkerID == "" {
		config.WorkerID = fmt.Sprintf("worker-%s", uuid.New().String()[:8])
	}
	if config.PollInterval == 0 {
		config.PollInterval = time.Minute
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 2
	}
	if config.JobTimeout == 0 {
		config.JobTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Worker{
		config: config,
		jobs:   jobs,
		logger: logger.With("worker_id", config.WorkerID),
	}
}

// Start runs jobs until ctx is cancelled, then waits for in-flight jobs.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("worker starting",
		"poll_interval", w.config.PollInterval,
		"max_concurrency", w.config.MaxConcurrency,
		"jobs", len(w.jobs),
	)

	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	// Semaphore for concurrency control
	sem := make(chan struct{}, w.config.MaxConcurrency)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("worker shutting down")
			w.wg.Wait()
			return ctx.Err()

		case <-ticker.C:
			for _, job := range w.jobs {
				select {
				case sem <- struct{}{}:
					w.wg.Add(1)
					go func() {
						defer w.wg.Done()
						defer func() { <-sem }()
						w.process(ctx, job)
					}()
				default:
					// At max concurrency, skip until the next tick
					w.logger.Debug("job skipped, worker busy", "job_type", job.Type())
				}
			}
		}
	}
}

// process runs one job with its own timeout and logs the outcome.
func (w *Worker) process(ctx context.Context, job Job) {
	jobCtx, cancel := context.WithTimeout(ctx, w.config.JobTimeout)
	defer cancel()

	start := time.Now()
	if err := job.Process(jobCtx); err != nil {
		w.logger.Error("job failed",
			"job_type", job.Type(),
			"duration", time.Since(start),
			"error", err,
		)
		telemetry.CaptureError(err, map[string]interface{}{"job_type": job.Type()})
		return
	}

	w.logger.Debug("job completed",
		"job_type", job.Type(),
		"duration", time.Since(start),
	)
}
