package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/dmitrymomot/tieredsession/core/logger"
)

// Chain orders backends for tiered persistence. Writes go in write order,
// usually durable first, and reads consult the exact reverse.
type Chain struct {
	backends []Backend
	clock    Clock
	logger   *slog.Logger
	observer Observer
}

// ChainOption configures a Chain.
type ChainOption func(*Chain)

func WithChainClock(c Clock) ChainOption {
	return func(ch *Chain) {
		if c != nil {
			ch.clock = c
		}
	}
}

func WithChainLogger(l *slog.Logger) ChainOption {
	return func(ch *Chain) {
		if l != nil {
			ch.logger = l
		}
	}
}

func WithChainObserver(o Observer) ChainOption {
	return func(ch *Chain) {
		if o != nil {
			ch.observer = o
		}
	}
}

// NewChain builds a chain from backends listed in write order.
func NewChain(backends []Backend, opts ...ChainOption) (*Chain, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}
	if slices.Contains(backends, nil) {
		return nil, ErrNilBackend
	}

	ch := &Chain{
		backends: slices.Clone(backends),
		clock:    SystemClock(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer: NopObserver{},
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch, nil
}

// WriteOrder returns the backends in write order.
func (c *Chain) WriteOrder() []Backend {
	return slices.Clone(c.backends)
}

// ReadOrder returns the backends in read order.
func (c *Chain) ReadOrder() []Backend {
	out := slices.Clone(c.backends)
	slices.Reverse(out)
	return out
}

// Get returns the first record found in read order.
// An unexpected backend error stops the scan and is reported as a miss so a
// failing upper tier never falls through to possibly stale lower tiers.
// A hit that has already expired is discarded.
func (c *Chain) Get(ctx context.Context, key string) (Record, error) {
	for i := len(c.backends) - 1; i >= 0; i-- {
		rec, err := c.backends[i].Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			c.logger.ErrorContext(ctx, "session backend read failed, treating as miss",
				logger.Component("session"),
				logger.SessionKey(key),
				logger.Tier(i),
				logger.Error(err))
			c.observer.Miss()
			return Record{}, ErrNotFound
		}
		if rec.Expired(c.clock.Now()) {
			c.observer.Miss()
			return Record{}, ErrNotFound
		}
		if rec.Attributes == nil {
			rec.Attributes = make(map[string]any)
		}
		c.observer.TierHit(i)
		return rec, nil
	}

	c.observer.Miss()
	return Record{}, ErrNotFound
}

// Put writes rec to every backend in write order and stops at the first error.
func (c *Chain) Put(ctx context.Context, key string, rec Record) error {
	for i, b := range c.backends {
		if err := b.Put(ctx, key, rec); err != nil {
			return fmt.Errorf("session backend %d: %w", i, err)
		}
	}
	return nil
}

// Delete removes key from every backend in write order. Every backend is
// attempted; failures are joined.
func (c *Chain) Delete(ctx context.Context, key string) error {
	var errs []error
	for i, b := range c.backends {
		if err := b.Delete(ctx, key); err != nil {
			c.logger.ErrorContext(ctx, "session backend delete failed",
				logger.Component("session"),
				logger.SessionKey(key),
				logger.Tier(i),
				logger.Error(err))
			errs = append(errs, fmt.Errorf("session backend %d: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// GetAll enumerates the first backend in read order that supports it.
// Expired records are filtered out.
func (c *Chain) GetAll(ctx context.Context) (map[string]Record, error) {
	now := c.clock.Now()
	for i := len(c.backends) - 1; i >= 0; i-- {
		all, err := c.backends[i].GetAll(ctx)
		if errors.Is(err, ErrUnsupported) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("session backend %d: %w", i, err)
		}

		out := make(map[string]Record, len(all))
		for key, rec := range all {
			if !rec.Expired(now) {
				out[key] = rec
			}
		}
		return out, nil
	}
	return nil, ErrUnsupported
}
