package redis

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tieredsession/core/logger"
	"github.com/dmitrymomot/tieredsession/core/session"
)

// Backend is the fast, volatile session tier. Records are stored as encoded
// envelopes under their session key with a Redis TTL matching the record's
// expiry, so Redis evicts stale sessions on its own.
type Backend struct {
	client    redis.UniversalClient
	clock     session.Clock
	logger    *slog.Logger
	scanMatch string
	scanBatch int64
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClock sets the clock used to compute TTLs.
func WithClock(c session.Clock) BackendOption {
	return func(b *Backend) {
		if c != nil {
			b.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) BackendOption {
	return func(b *Backend) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithScan enables GetAll through SCAN over keys matching pattern.
// Without it GetAll reports session.ErrUnsupported.
func WithScan(pattern string, batch int) BackendOption {
	return func(b *Backend) {
		b.scanMatch = pattern
		if batch > 0 {
			b.scanBatch = int64(batch)
		}
	}
}

// NewBackend wraps a connected client.
func NewBackend(client redis.UniversalClient, opts ...BackendOption) (*Backend, error) {
	if client == nil {
		return nil, ErrNilClient
	}
	b := &Backend{
		client:    client,
		clock:     session.SystemClock(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		scanBatch: 1000,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Backend) Get(ctx context.Context, key string) (session.Record, error) {
	data, err := b.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, classify(err)
	}

	rec, err := session.DecodeRecord(data)
	if err != nil {
		b.logger.WarnContext(ctx, "corrupt session record in redis",
			logger.Component("redis"),
			logger.SessionKey(key),
			logger.Error(err))
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

// GetAll scans matching keys when WithScan is set.
func (b *Backend) GetAll(ctx context.Context) (map[string]session.Record, error) {
	if b.scanMatch == "" {
		return nil, session.ErrUnsupported
	}

	out := make(map[string]session.Record)
	iter := b.client.Scan(ctx, 0, b.scanMatch, b.scanBatch).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		rec, err := b.Get(ctx, key)
		if errors.Is(err, session.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out[key] = rec
	}
	if err := iter.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

// Put writes rec with a TTL equal to the time left until it expires.
// An already expired record is deleted instead.
func (b *Backend) Put(ctx context.Context, key string, rec session.Record) error {
	ttl := rec.ExpiresAt.Sub(b.clock.Now())
	if ttl <= 0 {
		return b.Delete(ctx, key)
	}

	data, err := session.EncodeRecord(rec)
	if err != nil {
		return session.Fatal(err)
	}

	if err := b.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return classify(err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return classify(err)
	}
	return nil
}

var retryablePrefixes = []string{"LOADING", "BUSY", "TRYAGAIN", "CLUSTERDOWN", "MASTERDOWN", "READONLY"}

// classify maps go-redis errors onto the session outcome taxonomy.
// Context errors pass through so the caller's deadline is recognized.
func classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if errors.Is(err, redis.ErrPoolTimeout) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return session.Retryable(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return session.Retryable(err)
	}
	for _, prefix := range retryablePrefixes {
		if redis.HasErrorPrefix(err, prefix) {
			return session.Retryable(err)
		}
	}
	return session.Fatal(err)
}
