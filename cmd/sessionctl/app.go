package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/tieredsession/core/config"
	"github.com/dmitrymomot/tieredsession/core/health"
	"github.com/dmitrymomot/tieredsession/core/logger"
	"github.com/dmitrymomot/tieredsession/core/queue"
	"github.com/dmitrymomot/tieredsession/core/session"
	"github.com/dmitrymomot/tieredsession/integration/database/mongo"
	"github.com/dmitrymomot/tieredsession/integration/database/pg"
	"github.com/dmitrymomot/tieredsession/integration/database/redis"
	"github.com/dmitrymomot/tieredsession/integration/metrics/prometheus"
)

const serviceName = "sessionctl"

var (
	errUnknownDurable = errors.New("unknown durable backend")
	errUnknownCache   = errors.New("unknown cache backend")
)

// settings selects the backend stack. Flags override the environment.
type settings struct {
	Env         string `env:"APP_ENV" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL"`
	Durable     string `env:"SESSION_DURABLE" envDefault:"memory"`
	Cache       string `env:"SESSION_CACHE" envDefault:"memory"`
	Deferred    bool   `env:"SESSION_DEFERRED" envDefault:"false"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9090"`
}

// app is the wired session stack shared by every command.
type app struct {
	log      *slog.Logger
	settings settings
	registry *session.Registry
	queue    *queue.Service
	metrics  *promclient.Registry
	checks   []health.Check
	migrate  func(context.Context) error
	closers  []func()
}

type appBuilder func(ctx context.Context, s settings) (*app, error)

func newLogger(s settings) (*slog.Logger, error) {
	opts := []logger.Option{logger.WithOutput(os.Stderr)}
	switch s.Env {
	case "production":
		opts = append(opts, logger.WithProduction(serviceName))
	case "staging":
		opts = append(opts, logger.WithStaging(serviceName))
	default:
		opts = append(opts, logger.WithDevelopment(serviceName))
	}

	if s.LogLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(s.LogLevel)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", s.LogLevel, err)
		}
		opts = append(opts, logger.WithLevel(level))
	}
	return logger.New(opts...), nil
}

func buildApp(ctx context.Context, s settings) (*app, error) {
	log, err := newLogger(s)
	if err != nil {
		return nil, err
	}

	var sessCfg session.Config
	if err := config.Load(&sessCfg); err != nil {
		return nil, err
	}

	a := &app{
		log:      log,
		settings: s,
		metrics:  promclient.NewRegistry(),
		migrate:  func(context.Context) error { return nil },
	}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	obs, err := prometheus.NewObserver(a.metrics)
	if err != nil {
		return nil, err
	}

	durable, err := a.durableBackend(ctx, s.Durable)
	if err != nil {
		return nil, err
	}

	if s.Deferred {
		if durable, err = a.deferBackend(durable, sessCfg); err != nil {
			return nil, err
		}
	}

	backends := []session.Backend{durable}
	cache, err := a.cacheBackend(ctx, s.Cache)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		backends = append(backends, cache)
	}

	a.registry, err = session.NewFromConfig(sessCfg,
		session.WithBackends(backends...),
		session.WithLogger(log),
		session.WithObserver(obs),
	)
	if err != nil {
		return nil, err
	}

	ok = true
	return a, nil
}

func (a *app) durableBackend(ctx context.Context, kind string) (session.Backend, error) {
	switch kind {
	case "memory":
		return session.NewMemoryBackend(), nil

	case "pg":
		var cfg pg.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		a.checks = append(a.checks, pg.Healthcheck(pool))
		a.migrate = func(ctx context.Context) error { return pg.Migrate(ctx, pool, cfg, a.log) }
		return pg.NewBackend(pool, pg.WithLogger(a.log))

	case "mongo":
		var cfg mongo.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		db, err := mongo.NewWithDatabase(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Client().Disconnect(context.Background()) })
		a.checks = append(a.checks, mongo.Healthcheck(db.Client()))
		b, err := mongo.NewBackend(db.Collection(cfg.Collection), mongo.WithLogger(a.log))
		if err != nil {
			return nil, err
		}
		a.migrate = b.EnsureIndexes
		return b, nil
	}
	return nil, fmt.Errorf("%w: %q", errUnknownDurable, kind)
}

func (a *app) cacheBackend(ctx context.Context, kind string) (session.Backend, error) {
	switch kind {
	case "none", "":
		return nil, nil

	case "memory":
		return session.NewMemoryBackend(session.WithMemoryEnumeration(false)), nil

	case "redis":
		var cfg redis.Config
		if err := config.Load(&cfg); err != nil {
			return nil, err
		}
		client, err := redis.Connect(ctx, cfg)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		a.checks = append(a.checks, redis.Healthcheck(client))
		return redis.NewBackend(client, redis.WithLogger(a.log))
	}
	return nil, fmt.Errorf("%w: %q", errUnknownCache, kind)
}

// deferBackend routes durable writes through an in-process queue drained by
// the worker command, or synchronously at the end of one-shot commands.
func (a *app) deferBackend(durable session.Backend, sessCfg session.Config) (session.Backend, error) {
	var qcfg queue.Config
	if err := config.Load(&qcfg); err != nil {
		return nil, err
	}

	storage := queue.NewMemoryStorage(queue.WithMemoryStorageLogger(a.log))
	svc, err := queue.NewServiceFromConfig(qcfg, storage,
		queue.WithServiceLogger(a.log),
		queue.WithHandlers(session.NewDeferredJobHandler(durable, a.log)),
	)
	if err != nil {
		return nil, err
	}
	a.queue = svc
	a.checks = append(a.checks, storage.Healthcheck)

	return session.NewDeferredBackend(durable, svc.Enqueuer(),
		session.WithDeferredMaxAge(sessCfg.DeferredMaxAge),
		session.WithDeferredLogger(a.log),
	)
}

// flush applies queued deferred writes before a one-shot command exits.
func (a *app) flush(ctx context.Context) error {
	if a.queue == nil {
		return nil
	}
	n, err := a.queue.Drain(ctx)
	if n > 0 {
		a.log.DebugContext(ctx, "deferred writes applied", logger.Component("sessionctl"), logger.Count("tasks", n))
	}
	return err
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}
