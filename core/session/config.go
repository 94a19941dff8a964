package session

import (
	"io"
	"log/slog"
	"time"
)

// Config holds session registry configuration.
// Designed for environment-based configuration via core/config.
type Config struct {
	IdleTimeout    time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	KeyPrefix      string        `env:"SESSION_KEY_PREFIX" envDefault:"_ahs"`
	DeferredMaxAge time.Duration `env:"SESSION_DEFERRED_MAX_AGE" envDefault:"10s"`
	RetryAttempts  int           `env:"SESSION_RETRY_ATTEMPTS" envDefault:"10"`
	RetryBackoff   time.Duration `env:"SESSION_RETRY_BACKOFF" envDefault:"50ms"`
}

// DefaultConfig returns the same values as the env defaults.
func DefaultConfig() Config {
	return Config{
		IdleTimeout:    30 * time.Minute,
		KeyPrefix:      DefaultKeyPrefix,
		DeferredMaxAge: DefaultDeferredMaxAge,
		RetryAttempts:  10,
		RetryBackoff:   50 * time.Millisecond,
	}
}

// RetryPolicy returns the retry policy described by the config.
func (c Config) RetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:    c.RetryAttempts,
		InitialBackoff: c.RetryBackoff,
		Multiplier:     2,
	}.normalize()
}

type options struct {
	backends    []Backend
	idleTimeout time.Duration
	prefix      string
	retry       RetryPolicy
	clock       Clock
	random      io.Reader
	logger      *slog.Logger
	observer    Observer
}

func defaultOptions() *options {
	return &options{
		idleTimeout: 30 * time.Minute,
		prefix:      DefaultKeyPrefix,
		retry:       DefaultRetryPolicy(),
		clock:       SystemClock(),
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		observer:    NopObserver{},
	}
}

// Option is a functional option for configuring the registry.
type Option func(*options)

// WithBackends sets the backends in write order.
func WithBackends(backends ...Backend) Option {
	return func(o *options) {
		o.backends = backends
	}
}

// WithIdleTimeout sets how long a session lives after its last access.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.idleTimeout = d
		}
	}
}

// WithKeyPrefix sets the namespace prepended to session ids.
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		if prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithRetryPolicy sets the save retry policy. Zero fields take defaults.
func WithRetryPolicy(p RetryPolicy) Option {
	return func(o *options) {
		o.retry = p.normalize()
	}
}

func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithRandom sets the entropy source for session ids.
func WithRandom(r io.Reader) Option {
	return func(o *options) {
		if r != nil {
			o.random = r
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}
