// Package pg provides PostgreSQL connection management, the sessions schema
// migration and the durable session tier built on pgx.
//
// # Connecting
//
//	type Config struct {
//		ConnectionString  string        `env:"PG_CONN_URL,required"`
//		MaxOpenConns      int32         `env:"PG_MAX_OPEN_CONNS" envDefault:"10"`
//		MaxIdleConns      int32         `env:"PG_MAX_IDLE_CONNS" envDefault:"5"`
//		HealthCheckPeriod time.Duration `env:"PG_HEALTHCHECK_PERIOD" envDefault:"1m"`
//		MaxConnIdleTime   time.Duration `env:"PG_MAX_CONN_IDLE_TIME" envDefault:"10m"`
//		MaxConnLifetime   time.Duration `env:"PG_MAX_CONN_LIFETIME" envDefault:"30m"`
//		RetryAttempts     int           `env:"PG_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval     time.Duration `env:"PG_RETRY_INTERVAL" envDefault:"5s"`
//		MigrationsTable   string        `env:"PG_MIGRATIONS_TABLE" envDefault:"schema_migrations"`
//	}
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
// Connect pings with retries before returning the pool. Healthcheck returns a
// ping-based check for readiness probes.
//
// # Migrations
//
// Migrate applies the embedded goose migrations, which create:
//
//	CREATE TABLE sessions (
//		key        TEXT PRIMARY KEY,
//		expires_at BIGINT NOT NULL, -- unix milliseconds
//		data       BYTEA NOT NULL   -- session.EncodeAttributes blob
//	);
//
// # Session Tier
//
// Backend upserts by key, reads single rows and enumerates rows that have not
// expired. It is meant to come first in the write order:
//
//	durable, _ := pg.NewBackend(pool)
//	reg, _ := session.NewRegistry(session.WithBackends(durable, cache))
//
// Rows are never swept; expired rows are ignored on read and replaced on the
// next write to the same key.
//
// # Transactions
//
// WithTx attaches a pgx.Tx to a context. Backend uses it instead of the pool,
// so session writes can join an application transaction. RunInTx wraps the
// begin/commit/rollback sequence:
//
//	err := pg.RunInTx(ctx, pool, func(ctx context.Context) error {
//		if err := orders.Create(ctx, order); err != nil {
//			return err
//		}
//		return durable.Delete(ctx, sess.Key())
//	})
//
// # Error Handling
//
// Driver errors are classified for the session retry loop. Connection
// exceptions (SQLSTATE class 08), serialization failures (40001), deadlocks
// (40P01), server shutdowns, timeouts and network errors are
// session.Retryable. Everything else is session.Fatal. IsRetryableError,
// IsNotFoundError and IsTxClosedError expose the same checks.
package pg
