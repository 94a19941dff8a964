package session_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tieredsession/core/session"
)

func TestNewRegistry(t *testing.T) {
	t.Parallel()

	_, err := session.NewRegistry()
	assert.ErrorIs(t, err, session.ErrNoBackends)

	cfg := session.DefaultConfig()
	cfg.KeyPrefix = "app:"
	cfg.IdleTimeout = time.Hour
	reg, err := session.NewFromConfig(cfg, session.WithBackends(session.NewMemoryBackend()))
	require.NoError(t, err)
	assert.Equal(t, "app:", reg.KeyPrefix())
	assert.Equal(t, time.Hour, reg.IdleTimeout())
}

func TestRegistry_Create(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("writes every backend with a fresh expiry", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		reg := newTestRegistry(t, clock, durable, cache)

		sess, err := reg.Create(ctx)
		require.NoError(t, err)
		assert.Equal(t, reg.IDs().Last(), sess.ID())
		assert.Equal(t, session.DefaultKeyPrefix+sess.ID(), sess.Key())
		assert.False(t, sess.IsDirty())
		assert.True(t, clock.Now().Add(100*time.Second).Equal(sess.ExpiresAt()))

		assert.True(t, durable.Has(t, sess.Key()))
		assert.True(t, cache.Has(t, sess.Key()))
	})

	t.Run("does not retry and propagates the error", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		durable.putAlways = session.Retryable(errors.New("timeout"))
		reg := newTestRegistry(t, clock, durable, cache)

		sess, err := reg.Create(ctx)
		assert.Nil(t, sess)
		assert.ErrorIs(t, err, session.ErrSave)
		assert.True(t, session.IsRetryable(err))

		_, durablePuts, _ := durable.Calls()
		_, cachePuts, _ := cache.Calls()
		assert.Equal(t, 1, durablePuts)
		assert.Zero(t, cachePuts)
		assert.Empty(t, clock.Waits())
	})

	t.Run("cancelled context is a deadline", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		b.putAlways = context.Canceled
		reg := newTestRegistry(t, newFakeClock(), b)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		_, err := reg.Create(cancelled)
		assert.ErrorIs(t, err, session.ErrDeadlineExceeded)
	})
}

func TestRegistry_Load(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("round trips attributes", func(t *testing.T) {
		t.Parallel()

		reg := newTestRegistry(t, newFakeClock(), newFakeBackend(), newFakeBackend())
		sess, err := reg.Create(ctx)
		require.NoError(t, err)
		sess.Set("user", "carol")
		sess.Set("cart", cartItem{SKU: "X", Qty: 1})
		require.NoError(t, sess.Save(ctx))

		loaded, err := reg.Load(ctx, sess.ID())
		require.NoError(t, err)
		assert.False(t, loaded.IsDirty())
		assert.Equal(t, sess.Attributes(), loaded.Attributes())
	})

	t.Run("expired record is never returned", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		b := newFakeBackend()
		reg := newTestRegistry(t, clock, b)
		sess, err := reg.Create(ctx)
		require.NoError(t, err)

		clock.Advance(101 * time.Second)

		_, err = reg.Load(ctx, sess.ID())
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.True(t, b.Has(t, sess.Key()), "backend still holds the record")
	})

	t.Run("tiered fallback then upper tier serves reads", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable, cache := newFakeBackend(), newFakeBackend()
		reg := newTestRegistry(t, clock, durable, cache)

		id := "only-in-durable"
		rec := session.NewRecord(clock.Now().Add(100 * time.Second))
		rec.Attributes["v"] = 1
		require.NoError(t, durable.MemoryBackend.Put(ctx, session.KeyFor(reg.KeyPrefix(), id), rec))

		sess, err := reg.Load(ctx, id)
		require.NoError(t, err)
		v, _ := sess.Get("v")
		assert.Equal(t, 1, v)

		sess.Set("v", 2)
		require.NoError(t, sess.Save(ctx))

		durableGets, _, _ := durable.Calls()
		_, err = reg.Load(ctx, id)
		require.NoError(t, err)
		durableGetsAfter, _, _ := durable.Calls()
		assert.Equal(t, durableGets, durableGetsAfter)
	})

	t.Run("unknown and empty ids", func(t *testing.T) {
		t.Parallel()

		reg := newTestRegistry(t, newFakeClock(), newFakeBackend())
		_, err := reg.Load(ctx, "nope")
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = reg.Load(ctx, "")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("load or create replaces a lost session", func(t *testing.T) {
		t.Parallel()

		reg := newTestRegistry(t, newFakeClock(), newFakeBackend())
		sess, err := reg.LoadOrCreate(ctx, "gone")
		require.NoError(t, err)
		assert.NotEqual(t, "gone", sess.ID())
		assert.Empty(t, sess.Attributes())

		again, err := reg.LoadOrCreate(ctx, sess.ID())
		require.NoError(t, err)
		assert.Equal(t, sess.ID(), again.ID())
	})

	t.Run("load or create extends a session used only for its id", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		reg := newTestRegistry(t, clock, newFakeBackend())
		sess, err := reg.Create(ctx)
		require.NoError(t, err)

		clock.Advance(80 * time.Second)

		plain, err := reg.Load(ctx, sess.ID())
		require.NoError(t, err)
		assert.False(t, plain.IsDirty(), "a bare load is not an access")

		loaded, err := reg.LoadOrCreate(ctx, sess.ID())
		require.NoError(t, err)
		assert.Equal(t, sess.ID(), loaded.ID())
		assert.True(t, loaded.IsDirty())
		require.NoError(t, loaded.Save(ctx))

		clock.Advance(30 * time.Second)

		again, err := reg.Load(ctx, sess.ID())
		require.NoError(t, err)
		assert.WithinDuration(t, clock.Now().Add(70*time.Second), again.ExpiresAt(), 0)
	})
}

func TestRegistry_Delete(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	durable, cache := newFakeBackend(), newFakeBackend()
	reg := newTestRegistry(t, newFakeClock(), durable, cache)

	sess, err := reg.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Delete(ctx))

	assert.False(t, durable.Has(t, sess.Key()))
	assert.False(t, cache.Has(t, sess.Key()))
	assert.True(t, sess.Invalidated())

	_, err = reg.Load(ctx, sess.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)

	sess.Set("late", true)
	_, _, deletesBefore := durable.Calls()
	_, putsBefore, _ := durable.Calls()
	require.NoError(t, sess.Save(ctx))
	_, putsAfter, deletesAfter := durable.Calls()
	assert.Equal(t, putsBefore, putsAfter, "invalidated session is not saved")
	assert.Equal(t, deletesBefore, deletesAfter)

	other, err := reg.Create(ctx)
	require.NoError(t, err)
	require.NoError(t, reg.Delete(ctx, other.ID()))
	_, err = reg.Load(ctx, other.ID())
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestRegistry_RenewID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("moves attributes to a new id", func(t *testing.T) {
		t.Parallel()

		durable, cache := newFakeBackend(), newFakeBackend()
		reg := newTestRegistry(t, newFakeClock(), durable, cache)

		old, err := reg.Create(ctx)
		require.NoError(t, err)
		old.Set("user", "dave")
		require.NoError(t, old.Save(ctx))

		renewed, err := reg.RenewID(ctx, old)
		require.NoError(t, err)
		assert.NotEqual(t, old.ID(), renewed.ID())
		assert.Equal(t, reg.IDs().Last(), renewed.ID())
		assert.True(t, old.Invalidated())
		assert.False(t, renewed.IsDirty())

		loaded, err := reg.Load(ctx, renewed.ID())
		require.NoError(t, err)
		v, _ := loaded.Get("user")
		assert.Equal(t, "dave", v)

		_, err = reg.Load(ctx, old.ID())
		assert.ErrorIs(t, err, session.ErrNotFound)
		assert.False(t, durable.Has(t, old.Key()))
		assert.False(t, cache.Has(t, old.Key()))
	})

	t.Run("failed delete still returns the new session", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		reg := newTestRegistry(t, newFakeClock(), b)
		old, err := reg.Create(ctx)
		require.NoError(t, err)

		b.deleteErr = errors.New("delete refused")
		renewed, err := reg.RenewID(ctx, old)
		require.NoError(t, err)
		assert.True(t, b.Has(t, old.Key()))
		assert.True(t, b.Has(t, renewed.Key()))
	})

	t.Run("failed write keeps the old session", func(t *testing.T) {
		t.Parallel()

		b := newFakeBackend()
		reg := newTestRegistry(t, newFakeClock(), b)
		old, err := reg.Create(ctx)
		require.NoError(t, err)

		b.putAlways = session.Fatal(errors.New("disk full"))
		_, err = reg.RenewID(ctx, old)
		assert.Error(t, err)
		assert.False(t, old.Invalidated())
		assert.True(t, b.Has(t, old.Key()))
	})

	t.Run("nil session", func(t *testing.T) {
		t.Parallel()

		reg := newTestRegistry(t, newFakeClock(), newFakeBackend())
		_, err := reg.RenewID(ctx, nil)
		assert.ErrorIs(t, err, session.ErrNilSession)
	})
}

func TestRegistry_List(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("lists live sessions by id", func(t *testing.T) {
		t.Parallel()

		clock := newFakeClock()
		durable := newFakeBackend()
		cache := newFakeBackend(session.WithMemoryEnumeration(false))
		reg := newTestRegistry(t, clock, durable, cache)

		a, err := reg.Create(ctx)
		require.NoError(t, err)
		clock.Advance(60 * time.Second)
		b, err := reg.Create(ctx)
		require.NoError(t, err)
		require.NoError(t, durable.MemoryBackend.Put(ctx, "foreign-key", session.NewRecord(clock.Now().Add(time.Hour))))

		clock.Advance(50 * time.Second)

		all, err := reg.List(ctx)
		require.NoError(t, err)
		assert.NotContains(t, all, a.ID())
		assert.Contains(t, all, b.ID())
		for id := range all {
			assert.False(t, strings.HasPrefix(id, session.DefaultKeyPrefix))
		}
		assert.Len(t, all, 1)
	})

	t.Run("unsupported", func(t *testing.T) {
		t.Parallel()

		reg := newTestRegistry(t, newFakeClock(), newFakeBackend(session.WithMemoryEnumeration(false)))
		_, err := reg.List(ctx)
		assert.ErrorIs(t, err, session.ErrUnsupported)
	})
}
