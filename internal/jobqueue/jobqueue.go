/*
Package jobqueue provides a River-based job queue for background FAM
synchronization.

For configuration options, retry policies, and tuning parameters, see
queue_config.go. All configurable values live there.
*/
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/rs/zerolog/log"

	"github.com/tagreview/internal/fam"
	"github.com/tagreview/internal/metrics"
)

// FAMSyncArgs represents the arguments for a FAM synchronization job. A run
// walks every active project.
type FAMSyncArgs struct{}

// Kind returns the job kind for River
func (FAMSyncArgs) Kind() string {
	return "fam_sync"
}

// FAMSyncWorker handles FAM synchronization jobs
type FAMSyncWorker struct {
	river.WorkerDefaults[FAMSyncArgs]
	syncer *fam.Syncer
	config *QueueConfig
}

// Timeout bounds a single synchronization run.
func (w *FAMSyncWorker) Timeout(job *river.Job[FAMSyncArgs]) time.Duration {
	return w.config.JobTimeout
}

// Work performs the synchronization run
func (w *FAMSyncWorker) Work(ctx context.Context, job *river.Job[FAMSyncArgs]) error {
	log.Info().Int64("job_id", job.ID).Msg("starting FAM sync")

	if err := w.syncer.SyncAll(ctx); err != nil {
		log.Error().Err(err).Int64("job_id", job.ID).Msg("FAM sync failed")
		metrics.SyncRuns.WithLabelValues("error").Inc()
		return err
	}

	log.Info().Int64("job_id", job.ID).Msg("FAM sync completed")
	metrics.SyncRuns.WithLabelValues("ok").Inc()
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
	config *QueueConfig
}

// NewJobQueue creates a new job queue instance. The sync job reruns every
// syncInterval; zero disables the periodic schedule (jobs can still be
// queued explicitly).
func NewJobQueue(databaseURL string, syncer *fam.Syncer, syncInterval time.Duration) (*JobQueue, error) {
	// Get configuration
	config := GetQueueConfig()

	// Create a pgx connection pool
	pool, err := pgxpool.New(context.Background(), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Create River client
	workers := river.NewWorkers()
	river.AddWorker(workers, &FAMSyncWorker{syncer: syncer, config: config})

	var periodic []*river.PeriodicJob
	if syncInterval > 0 {
		periodic = append(periodic, river.NewPeriodicJob(
			river.PeriodicInterval(syncInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return FAMSyncArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		))
	}

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues:       config.RiverQueueConfig(),
		Workers:      workers,
		MaxAttempts:  config.MaxRetries,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{
		client: client,
		pool:   pool,
		config: config,
	}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	if err := jq.client.Stop(ctx); err != nil {
		return err
	}
	jq.pool.Close()
	return nil
}

// QueueFAMSyncJob queues an immediate FAM synchronization run
func (jq *JobQueue) QueueFAMSyncJob(ctx context.Context) error {
	_, err := jq.client.Insert(ctx, FAMSyncArgs{}, nil)
	if err != nil {
		return fmt.Errorf("failed to queue FAM sync job: %w", err)
	}

	return nil
}
