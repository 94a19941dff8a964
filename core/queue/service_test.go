package queue_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tieredsession/core/queue"
)

func TestService_NewService(t *testing.T) {
	t.Parallel()

	_, err := queue.NewService(nil)
	assert.ErrorIs(t, err, queue.ErrRepositoryNil)

	svc, err := queue.NewServiceFromConfig(queue.DefaultConfig(), queue.NewMemoryStorage())
	require.NoError(t, err)
	assert.NotNil(t, svc.Worker())
	assert.NotNil(t, svc.Enqueuer())
	assert.NotNil(t, svc.Storage())
}

func TestService_Drain(t *testing.T) {
	t.Parallel()

	var seen atomic.Int32
	handler := queue.NewTaskHandler(func(ctx context.Context, p testPayload) error {
		seen.Add(1)
		return nil
	})

	storage := queue.NewMemoryStorage()
	svc, err := queue.NewService(storage, queue.WithHandlers(handler))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, svc.Enqueue(ctx, testPayload{Value: 1}))
	require.NoError(t, svc.Enqueue(ctx, testPayload{Value: 2}))
	require.NoError(t, svc.EnqueueWithDelay(ctx, testPayload{Value: 3}, time.Hour))

	n, err := svc.Drain(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), seen.Load())
	assert.Equal(t, 1, storage.Stats().PendingTasks)
}

func TestService_Run(t *testing.T) {
	t.Parallel()

	t.Run("processes tasks until cancelled", func(t *testing.T) {
		t.Parallel()

		var seen atomic.Int32
		var stopped atomic.Bool

		svc, err := queue.NewService(queue.NewMemoryStorage(),
			queue.WithWorkerOptions(queue.WithPullInterval(5*time.Millisecond)),
			queue.WithHandlers(queue.NewTaskHandler(func(ctx context.Context, p testPayload) error {
				seen.Add(1)
				return nil
			})),
			queue.WithAfterStop(func() error {
				stopped.Store(true)
				return nil
			}),
		)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- svc.Run(ctx) }()

		require.NoError(t, svc.Enqueue(context.Background(), testPayload{}))
		require.Eventually(t, func() bool { return seen.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

		cancel()
		require.NoError(t, <-done)
		assert.True(t, stopped.Load())
	})

	t.Run("before start hook error", func(t *testing.T) {
		t.Parallel()

		hookErr := errors.New("not ready")
		svc, err := queue.NewService(queue.NewMemoryStorage(),
			queue.WithBeforeStart(func(context.Context) error { return hookErr }),
		)
		require.NoError(t, err)

		assert.ErrorIs(t, svc.Run(context.Background()), hookErr)
	})
}
