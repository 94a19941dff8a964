package queue

import "time"

// Config holds the configuration for worker and enqueuer components.
// Designed for environment-based configuration via core/config.
type Config struct {
	// Worker configuration
	PollInterval       time.Duration `env:"QUEUE_POLL_INTERVAL" envDefault:"250ms"`
	LockTimeout        time.Duration `env:"QUEUE_LOCK_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"QUEUE_SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxConcurrentTasks int           `env:"QUEUE_MAX_CONCURRENT_TASKS" envDefault:"4"`
	Queues             []string      `env:"QUEUE_WORKER_QUEUES" envDefault:"default" envSeparator:","`

	// Enqueuer configuration
	DefaultQueue    string   `env:"QUEUE_DEFAULT_QUEUE" envDefault:"default"`
	DefaultPriority Priority `env:"QUEUE_DEFAULT_PRIORITY" envDefault:"50"`
}

// DefaultConfig returns defaults tuned for short-lived deferred writes.
func DefaultConfig() Config {
	return Config{
		PollInterval:       250 * time.Millisecond,
		LockTimeout:        30 * time.Second,
		ShutdownTimeout:    10 * time.Second,
		MaxConcurrentTasks: 4,
		Queues:             []string{DefaultQueueName},
		DefaultQueue:       DefaultQueueName,
		DefaultPriority:    PriorityMedium,
	}
}
