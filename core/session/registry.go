package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dmitrymomot/tieredsession/core/logger"
)

// Registry creates, loads and renews sessions over a backend chain.
type Registry struct {
	chain       *Chain
	ids         *IDGenerator
	idleTimeout time.Duration
	prefix      string
	retry       RetryPolicy
	clock       Clock
	logger      *slog.Logger
	observer    Observer
}

// NewRegistry creates a registry. At least one backend is required.
func NewRegistry(opts ...Option) (*Registry, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	chain, err := NewChain(o.backends,
		WithChainClock(o.clock),
		WithChainLogger(o.logger),
		WithChainObserver(o.observer),
	)
	if err != nil {
		return nil, err
	}

	return &Registry{
		chain:       chain,
		ids:         NewIDGenerator(o.random),
		idleTimeout: o.idleTimeout,
		prefix:      o.prefix,
		retry:       o.retry,
		clock:       o.clock,
		logger:      o.logger,
		observer:    o.observer,
	}, nil
}

// NewFromConfig creates a registry from configuration.
// Additional options override config values.
func NewFromConfig(cfg Config, opts ...Option) (*Registry, error) {
	allOpts := append([]Option{
		WithIdleTimeout(cfg.IdleTimeout),
		WithKeyPrefix(cfg.KeyPrefix),
		WithRetryPolicy(cfg.RetryPolicy()),
	}, opts...)

	return NewRegistry(allOpts...)
}

// Chain returns the backend chain.
func (r *Registry) Chain() *Chain { return r.chain }

// IDs returns the session id generator.
func (r *Registry) IDs() *IDGenerator { return r.ids }

// IdleTimeout returns the configured idle timeout.
func (r *Registry) IdleTimeout() time.Duration { return r.idleTimeout }

// KeyPrefix returns the storage key prefix.
func (r *Registry) KeyPrefix() string { return r.prefix }

// Create generates a new session and writes it through every backend.
// Creation does not retry; any backend failure is returned.
func (r *Registry) Create(ctx context.Context) (*ManagedSession, error) {
	id, err := r.ids.New()
	if err != nil {
		return nil, err
	}

	rec := NewRecord(r.clock.Now().Add(r.idleTimeout))
	if err := r.write(ctx, KeyFor(r.prefix, id), rec); err != nil {
		return nil, err
	}

	return newManagedSession(r, id, rec), nil
}

// Load returns the live session for id, or ErrNotFound. Loading alone is
// not an access: the stored expiry moves only after an attribute read or
// write, or Touch. LoadOrCreate touches for the caller.
func (r *Registry) Load(ctx context.Context, id string) (*ManagedSession, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	rec, err := r.chain.Get(ctx, KeyFor(r.prefix, id))
	if err != nil {
		return nil, err
	}
	return newManagedSession(r, id, rec), nil
}

// LoadOrCreate loads id and creates a fresh session on a miss, so a lost
// session presents as a new empty one. A loaded session counts as accessed.
func (r *Registry) LoadOrCreate(ctx context.Context, id string) (*ManagedSession, error) {
	sess, err := r.Load(ctx, id)
	if err == nil {
		sess.Touch()
		return sess, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return r.Create(ctx)
}

// RenewID moves the attributes of existing to a new id. The new key is
// written first, then the old key is deleted from every backend. The two
// steps are not atomic: a failed delete is logged and the old key expires
// on its own. On success existing is invalidated.
func (r *Registry) RenewID(ctx context.Context, existing *ManagedSession) (*ManagedSession, error) {
	if existing == nil {
		return nil, ErrNilSession
	}

	id, err := r.ids.New()
	if err != nil {
		return nil, err
	}

	rec := existing.snapshot()
	rec.ExpiresAt = truncateMillis(r.clock.Now().Add(r.idleTimeout))

	if err := r.write(ctx, KeyFor(r.prefix, id), rec); err != nil {
		return nil, err
	}

	existing.invalidate()
	if err := r.chain.Delete(ctx, existing.key); err != nil {
		r.logger.WarnContext(ctx, "old session key not removed after id renewal",
			logger.Component("session"),
			logger.SessionKey(existing.key),
			logger.Error(err))
	}

	return newManagedSession(r, id, rec), nil
}

// Delete removes the session for id from every backend.
func (r *Registry) Delete(ctx context.Context, id string) error {
	return r.chain.Delete(ctx, KeyFor(r.prefix, id))
}

// List returns live sessions keyed by session id. Keys outside the
// registry's prefix are skipped.
func (r *Registry) List(ctx context.Context) (map[string]Record, error) {
	all, err := r.chain.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Record, len(all))
	for key, rec := range all {
		id, ok := strings.CutPrefix(key, r.prefix)
		if !ok || id == "" {
			continue
		}
		out[id] = rec
	}
	return out, nil
}

// write is the single-attempt creation path.
func (r *Registry) write(ctx context.Context, key string, rec Record) error {
	err := r.chain.Put(ctx, key, rec)
	switch classify(ctx, err) {
	case outcomeOK:
		return nil
	case outcomeDeadline:
		return fmt.Errorf("%w: %w", ErrDeadlineExceeded, err)
	default:
		r.logger.ErrorContext(ctx, "session write failed",
			logger.Component("session"),
			logger.SessionKey(key),
			logger.Error(err))
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
}
