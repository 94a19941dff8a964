package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// Storage combines the repository interfaces a Service needs.
type Storage interface {
	EnqueuerRepository
	WorkerRepository
}

// Runner is implemented by storages that own a background lifecycle,
// such as MemoryStorage's lock expiration manager.
type Runner interface {
	Run(ctx context.Context) func() error
}

// Service wires an Enqueuer and a Worker over one Storage and manages
// their lifecycle together.
type Service struct {
	worker   *Worker
	enqueuer *Enqueuer
	storage  Storage
	logger   *slog.Logger

	skipWorkerIfNoHandlers bool

	beforeStart func(context.Context) error
	afterStop   func() error
}

// NewService creates a queue service over the given storage.
//
// Example:
//
//	storage := queue.NewMemoryStorage()
//	svc, err := queue.NewService(storage,
//	    queue.WithWorkerOptions(queue.WithMaxConcurrentTasks(4)),
//	    queue.WithHandlers(session.NewDeferredJobHandler(durable)),
//	)
//	if err != nil {
//	    return err
//	}
//	go svc.Run(ctx)
func NewService(storage Storage, opts ...ServiceOption) (*Service, error) {
	if storage == nil {
		return nil, ErrRepositoryNil
	}

	s := &Service{
		storage:                storage,
		logger:                 slog.New(slog.NewTextHandler(io.Discard, nil)),
		skipWorkerIfNoHandlers: true,
	}

	enqueuer, err := NewEnqueuer(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create enqueuer: %w", err)
	}
	s.enqueuer = enqueuer

	worker, err := NewWorker(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker: %w", err)
	}
	s.worker = worker

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, fmt.Errorf("failed to apply service option: %w", err)
		}
	}

	return s, nil
}

// NewServiceFromConfig creates a queue service using configuration and storage.
// Additional options override config values.
func NewServiceFromConfig(cfg Config, storage Storage, opts ...ServiceOption) (*Service, error) {
	serviceOpts := append([]ServiceOption{
		WithWorkerOptions(
			WithPullInterval(cfg.PollInterval),
			WithLockTimeout(cfg.LockTimeout),
			WithShutdownTimeout(cfg.ShutdownTimeout),
			WithMaxConcurrentTasks(cfg.MaxConcurrentTasks),
			WithQueues(cfg.Queues...),
		),
		WithEnqueuerOptions(
			WithDefaultQueue(cfg.DefaultQueue),
			WithDefaultPriority(cfg.DefaultPriority),
		),
	}, opts...)

	return NewService(storage, serviceOpts...)
}

// Run starts the worker and, when the storage has one, the storage lifecycle.
// It blocks until the context is cancelled or a component fails.
func (s *Service) Run(ctx context.Context) error {
	if s.beforeStart != nil {
		if err := s.beforeStart(ctx); err != nil {
			return fmt.Errorf("before start hook failed: %w", err)
		}
	}

	eg, ctx := errgroup.WithContext(ctx)

	if r, ok := s.storage.(Runner); ok {
		eg.Go(r.Run(ctx))
	}

	if s.skipWorkerIfNoHandlers && s.worker.HandlerCount() == 0 {
		s.logger.InfoContext(ctx, "no task handlers registered, worker will not start")
	} else {
		s.logger.InfoContext(ctx, "starting queue worker", slog.Any("queues", s.worker.queues))
		eg.Go(s.worker.Run(ctx))
	}

	err := eg.Wait()
	if errors.Is(err, ErrNoHandlers) && s.skipWorkerIfNoHandlers {
		err = nil
	}

	if s.afterStop != nil {
		if stopErr := s.afterStop(); stopErr != nil {
			if err == nil {
				err = fmt.Errorf("after stop hook failed: %w", stopErr)
			} else {
				s.logger.ErrorContext(context.Background(), "after stop hook failed", slog.String("error", stopErr.Error()))
			}
		}
	}

	return err
}

func (s *Service) Worker() *Worker {
	return s.worker
}

func (s *Service) Enqueuer() *Enqueuer {
	return s.enqueuer
}

func (s *Service) Storage() Storage {
	return s.storage
}

// RegisterHandler registers a task handler with the worker.
func (s *Service) RegisterHandler(handler Handler) error {
	return s.worker.RegisterHandler(handler)
}

// RegisterHandlers registers multiple task handlers with the worker.
func (s *Service) RegisterHandlers(handlers ...Handler) error {
	return s.worker.RegisterHandlers(handlers...)
}

// Enqueue adds a task to the queue.
func (s *Service) Enqueue(ctx context.Context, payload any, opts ...EnqueueOption) error {
	return s.enqueuer.Enqueue(ctx, payload, opts...)
}

// EnqueueWithDelay adds a task that becomes claimable after delay.
func (s *Service) EnqueueWithDelay(ctx context.Context, payload any, delay time.Duration, opts ...EnqueueOption) error {
	allOpts := append([]EnqueueOption{WithDelay(delay)}, opts...)
	return s.enqueuer.Enqueue(ctx, payload, allOpts...)
}

// Drain synchronously processes every claimable task.
func (s *Service) Drain(ctx context.Context) (int, error) {
	return s.worker.Drain(ctx)
}
