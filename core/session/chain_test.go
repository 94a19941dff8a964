package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tieredsession/core/session"
)

func TestNewChain(t *testing.T) {
	t.Parallel()

	_, err := session.NewChain(nil)
	assert.ErrorIs(t, err, session.ErrNoBackends)

	_, err = session.NewChain([]session.Backend{session.NewMemoryBackend(), nil})
	assert.ErrorIs(t, err, session.ErrNilBackend)

	durable, cache := session.NewMemoryBackend(), session.NewMemoryBackend()
	ch, err := session.NewChain([]session.Backend{durable, cache})
	require.NoError(t, err)
	assert.Equal(t, []session.Backend{durable, cache}, ch.WriteOrder())
	assert.Equal(t, []session.Backend{cache, durable}, ch.ReadOrder())
}

func TestChain_Get(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("reads cache before durable", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		obs := newRecordingObserver()
		ch, err := session.NewChain([]session.Backend{durable, cache},
			session.WithChainClock(clock), session.WithChainObserver(obs))
		require.NoError(t, err)

		fresh := session.NewRecord(clock.Now().Add(time.Minute))
		fresh.Attributes["v"] = "fresh"
		stale := session.NewRecord(clock.Now().Add(time.Minute))
		stale.Attributes["v"] = "stale"
		require.NoError(t, cache.MemoryBackend.Put(ctx, "k", fresh))
		require.NoError(t, durable.MemoryBackend.Put(ctx, "k", stale))

		got, err := ch.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, "fresh", got.Attributes["v"])

		dg, _, _ := durable.Calls()
		assert.Equal(t, 0, dg)
		assert.Equal(t, 1, obs.hits[1])
	})

	t.Run("falls back to lower tier", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		obs := newRecordingObserver()
		ch, err := session.NewChain([]session.Backend{durable, cache},
			session.WithChainClock(clock), session.WithChainObserver(obs))
		require.NoError(t, err)

		require.NoError(t, durable.MemoryBackend.Put(ctx, "k", session.NewRecord(clock.Now().Add(time.Minute))))

		_, err = ch.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, 1, obs.hits[0])
	})

	t.Run("unexpected error stops the scan", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		cache.getErr = errors.New("connection reset")
		ch, err := session.NewChain([]session.Backend{durable, cache}, session.WithChainClock(clock))
		require.NoError(t, err)

		require.NoError(t, durable.MemoryBackend.Put(ctx, "k", session.NewRecord(clock.Now().Add(time.Minute))))

		_, err = ch.Get(ctx, "k")
		assert.ErrorIs(t, err, session.ErrNotFound)

		dg, _, _ := durable.Calls()
		assert.Equal(t, 0, dg)
	})

	t.Run("expired hit is discarded", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		ch, err := session.NewChain([]session.Backend{durable, cache}, session.WithChainClock(clock))
		require.NoError(t, err)

		require.NoError(t, cache.MemoryBackend.Put(ctx, "k", session.NewRecord(clock.Now().Add(-time.Second))))
		require.NoError(t, durable.MemoryBackend.Put(ctx, "k", session.NewRecord(clock.Now().Add(time.Minute))))

		_, err = ch.Get(ctx, "k")
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.Equal(t, 1, cache.Len())
	})

	t.Run("miss everywhere", func(t *testing.T) {
		t.Parallel()

		obs := newRecordingObserver()
		ch, err := session.NewChain([]session.Backend{newFakeBackend(), newFakeBackend()}, session.WithChainObserver(obs))
		require.NoError(t, err)

		_, err = ch.Get(ctx, "missing")
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.Equal(t, 1, obs.misses)
	})
}

func TestChain_Put(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes every backend", func(t *testing.T) {
		t.Parallel()

		durable, cache := newFakeBackend(), newFakeBackend()
		ch, err := session.NewChain([]session.Backend{durable, cache})
		require.NoError(t, err)

		require.NoError(t, ch.Put(ctx, "k", session.NewRecord(time.Now().Add(time.Minute))))
		assert.True(t, durable.Has(t, "k"))
		assert.True(t, cache.Has(t, "k"))
	})

	t.Run("stops at the first error", func(t *testing.T) {
		t.Parallel()

		durable, cache := newFakeBackend(), newFakeBackend()
		durable.putAlways = session.Retryable(errors.New("timeout"))
		ch, err := session.NewChain([]session.Backend{durable, cache})
		require.NoError(t, err)

		err = ch.Put(ctx, "k", session.NewRecord(time.Now().Add(time.Minute)))
		assert.True(t, session.IsRetryable(err))

		_, cachePuts, _ := cache.Calls()
		assert.Equal(t, 0, cachePuts)
	})
}

func TestChain_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	durable, cache := newFakeBackend(), newFakeBackend()
	durable.deleteErr = errors.New("read only")
	ch, err := session.NewChain([]session.Backend{durable, cache})
	require.NoError(t, err)

	require.NoError(t, cache.MemoryBackend.Put(ctx, "k", session.NewRecord(time.Now().Add(time.Minute))))

	err = ch.Delete(ctx, "k")
	assert.Error(t, err)
	assert.False(t, cache.Has(t, "k"))

	durable.deleteErr = nil
	assert.NoError(t, ch.Delete(ctx, "never-existed"))
}

func TestChain_GetAll(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("uses first enumerable backend in read order", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable := newFakeBackend()
		cache := newFakeBackend(session.WithMemoryEnumeration(false))
		ch, err := session.NewChain([]session.Backend{durable, cache}, session.WithChainClock(clock))
		require.NoError(t, err)

		require.NoError(t, durable.MemoryBackend.Put(ctx, "live", session.NewRecord(clock.Now().Add(time.Minute))))
		require.NoError(t, durable.MemoryBackend.Put(ctx, "dead", session.NewRecord(clock.Now().Add(-time.Minute))))

		all, err := ch.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 1)
		assert.Contains(t, all, "live")
	})

	t.Run("unsupported when nothing enumerates", func(t *testing.T) {
		t.Parallel()

		ch, err := session.NewChain([]session.Backend{session.NewMemoryBackend(session.WithMemoryEnumeration(false))})
		require.NoError(t, err)

		_, err = ch.GetAll(ctx)
		assert.ErrorIs(t, err, session.ErrUnsupported)
	})
}

func TestMemoryBackend_CorruptBlob(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	m := session.NewMemoryBackend()
	session.PutRawForTest(m, "bad", []byte{1, 2, 3})

	_, err := m.Get(ctx, "bad")
	assert.ErrorIs(t, err, session.ErrNotFound)

	all, err := m.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}
