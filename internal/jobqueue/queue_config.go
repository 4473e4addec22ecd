/*
Queue configuration for background FAM synchronization.

All tunable values for the job queue live here:

  - MaxWorkers: how many jobs run concurrently
  - MaxRetries: how many attempts a job gets before being discarded
  - RetryPolicy: backoff between attempts
  - JobTimeout: how long a single sync run may take
  - QueueTimeout: how long to wait for the queue to drain on shutdown

A full sync walks every active project and talks to the FAM API for each
one, so JobTimeout needs headroom proportional to the project count.
*/
package jobqueue

import (
	"time"

	"github.com/riverqueue/river"
)

// QueueConfig holds all configuration for the job queue system
type QueueConfig struct {
	// Worker configuration
	MaxWorkers int // Maximum number of concurrent workers

	// Job retry configuration
	MaxRetries  int         // Maximum retry attempts per job
	RetryPolicy RetryPolicy // Retry backoff policy

	// Timeouts
	JobTimeout   time.Duration // Maximum time for a single job
	QueueTimeout time.Duration // Maximum time to wait for queue operations
}

// RetryPolicy defines how jobs should be retried
type RetryPolicy struct {
	InitialInterval time.Duration // Initial retry delay
	MaxInterval     time.Duration // Maximum retry delay
	Multiplier      float64       // Backoff multiplier
	MaxElapsedTime  time.Duration // Maximum total retry time
}

// DefaultQueueConfig returns the default configuration
func DefaultQueueConfig() *QueueConfig {
	return &QueueConfig{
		// Worker settings
		MaxWorkers: 10,

		// Retry settings
		MaxRetries: 25,
		RetryPolicy: RetryPolicy{
			InitialInterval: 1 * time.Second,
			MaxInterval:     5 * time.Minute,
			Multiplier:      2.0,
			MaxElapsedTime:  24 * time.Hour,
		},

		// Timeout settings
		JobTimeout:   10 * time.Minute,
		QueueTimeout: 30 * time.Second,
	}
}

// ProductionQueueConfig returns production-optimized settings
func ProductionQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()

	// Production adjustments
	config.MaxWorkers = 20
	config.JobTimeout = 30 * time.Minute

	return config
}

// DevelopmentQueueConfig returns development-friendly settings
func DevelopmentQueueConfig() *QueueConfig {
	config := DefaultQueueConfig()

	// Development adjustments
	config.MaxWorkers = 2
	config.MaxRetries = 3
	config.JobTimeout = 2 * time.Minute
	config.RetryPolicy.MaxElapsedTime = 10 * time.Minute

	return config
}

// GetQueueConfig returns the appropriate configuration based on environment
func GetQueueConfig() *QueueConfig {
	// TODO: switch on environment (APP_ENV) once deployment settles
	return DefaultQueueConfig()
}

// RiverQueueConfig converts our config to River's queue configuration
func (qc *QueueConfig) RiverQueueConfig() map[string]river.QueueConfig {
	return map[string]river.QueueConfig{
		river.QueueDefault: {
			MaxWorkers: qc.MaxWorkers,
		},
	}
}
