// Package redis provides Redis client initialization, health checking and the
// fast session tier built on go-redis.
//
// # Connecting
//
// Connect parses a redis:// or rediss:// URL, then pings with retries until
// the server answers or ConnectTimeout elapses:
//
//	type Config struct {
//		ConnectionURL  string        `env:"REDIS_URL,required" envDefault:"redis://localhost:6379/0"`
//		RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
//		RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
//		ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
//		ScanBatchSize  int           `env:"REDIS_SCAN_BATCH_SIZE" envDefault:"1000"`
//	}
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
// Healthcheck returns a ping-based check for readiness probes.
//
// # Session Tier
//
// Backend stores session envelopes under their session key with a TTL equal
// to the time left before the record expires. It is meant to sit last in the
// write order, above a durable tier:
//
//	cache, _ := redis.NewBackend(client)
//	reg, _ := session.NewRegistry(session.WithBackends(durable, cache))
//
// Enumeration is off by default, as for any cache. WithScan turns GetAll into
// a SCAN over a key pattern, using REDIS_SCAN_BATCH_SIZE as the batch hint.
//
// # Error Handling
//
// Connection errors, pool timeouts and server states such as LOADING or
// READONLY are reported as session.Retryable. Other command errors are
// session.Fatal. Missing keys and undecodable values are session.ErrNotFound.
//
// The package also defines connection errors checked with errors.Is():
//
//   - ErrFailedToParseRedisConnString: malformed or non-redis URL
//   - ErrRedisNotReady: no successful ping within the retry budget
//   - ErrEmptyConnectionURL: no URL configured
//   - ErrHealthcheckFailed: ping failed during a health check
package redis
