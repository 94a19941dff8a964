// Package mongo provides MongoDB client initialization, health checking and
// an alternative durable session tier built on the official v2 driver.
//
// Both New and NewWithDatabase retry the initial ping to ride out cold starts
// and brief network interruptions.
//
//	var cfg mongo.Config
//	config.MustLoad(&cfg)
//
//	db, err := mongo.NewWithDatabase(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer db.Client().Disconnect(ctx)
//
//	durable, _ := mongo.NewBackend(db.Collection(cfg.Collection))
//	if err := durable.EnsureIndexes(ctx); err != nil {
//		return err
//	}
//
// # Configuration
//
//	MONGODB_URL                 (required)
//	MONGODB_DATABASE            (default: sessions)
//	MONGODB_COLLECTION          (default: sessions)
//	MONGODB_CONNECT_TIMEOUT     (default: 10s)
//	MONGODB_MAX_POOL_SIZE       (default: 100)
//	MONGODB_MIN_POOL_SIZE       (default: 1)
//	MONGODB_MAX_CONN_IDLE_TIME  (default: 300s)
//	MONGODB_RETRY_WRITES        (default: true)
//	MONGODB_RETRY_READS         (default: true)
//	MONGODB_RETRY_ATTEMPTS      (default: 3)
//	MONGODB_RETRY_INTERVAL      (default: 5s)
//
// # Session Tier
//
// Each session is one document keyed by its storage key:
//
//	{_id: "<key>", expires_at: <unix millis>, data: <EncodeAttributes blob>}
//
// Put upserts with ReplaceOne. GetAll returns documents whose expires_at is in
// the future. Network errors, timeouts and server errors labeled
// RetryableWriteError or TransientTransactionError are session.Retryable;
// everything else is session.Fatal.
package mongo
