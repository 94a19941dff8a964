// Package queue provides a small background task queue used to run deferred
// session writes off the request path.
//
// # Features
//
//   - Task enqueueing with priority support
//   - Background workers with bounded concurrency
//   - Maximum task age: stale tasks are abandoned rather than run
//   - Retries with linear backoff and a dead letter queue
//   - In-memory storage with lock expiration
//   - Type-safe task handlers using Go generics
//   - Graceful shutdown and errgroup-friendly Run methods
//
// # Basic Usage
//
//	storage := queue.NewMemoryStorage()
//
//	enqueuer, err := queue.NewEnqueuer(storage)
//	if err != nil {
//		return err
//	}
//
//	worker, err := queue.NewWorker(storage, queue.WithMaxConcurrentTasks(4))
//	if err != nil {
//		return err
//	}
//
//	type Flush struct {
//		Key string `json:"key"`
//	}
//
//	worker.RegisterHandler(queue.NewTaskHandler(func(ctx context.Context, f Flush) error {
//		return flush(ctx, f.Key)
//	}))
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(storage.Run(ctx))
//	g.Go(worker.Run(ctx))
//
//	_ = enqueuer.Enqueue(ctx, Flush{Key: "abc"}, queue.WithMaxAge(10*time.Second))
//
// # Task Age
//
// WithMaxAge stamps Task.ExpiresAt at enqueue time. A worker that claims the
// task at or after that instant marks it abandoned and never invokes the
// handler. Abandonment is logged at warning level and counted in
// WorkerStats.TasksAbandoned.
//
// # Failure Handling
//
// A handler error or panic calls FailTask, which reschedules the task with a
// linear backoff until MaxRetries is reached. Exhausted tasks and tasks with no
// registered handler are moved to the dead letter queue.
//
// # Synchronous Processing
//
// Worker.Drain and Service.Drain process every claimable task on the calling
// goroutine. They are used by tests and by one-shot CLI runs.
//
// # Configuration
//
// Config carries env tags for core/config:
//
//	QUEUE_POLL_INTERVAL=250ms
//	QUEUE_LOCK_TIMEOUT=30s
//	QUEUE_SHUTDOWN_TIMEOUT=10s
//	QUEUE_MAX_CONCURRENT_TASKS=4
//	QUEUE_WORKER_QUEUES=default
//	QUEUE_DEFAULT_QUEUE=default
//	QUEUE_DEFAULT_PRIORITY=50
package queue
