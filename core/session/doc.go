// Package session provides tiered server-side session persistence for
// stateless request-serving processes.
//
// Session state lives in an ordered chain of backends: typically a durable
// store first and a fast cache second. Writes propagate in that order so a
// crash between the two leaves a recoverable durable copy; reads consult the
// reverse order so the freshest copy is found first.
//
// # Core Components
//
//   - Record: expiration plus an attribute map, the persisted unit
//   - Backend: get, enumerate, put and delete for one store
//   - Chain: write order and read order over several backends
//   - ManagedSession: dirty-tracking write-back wrapper with retrying Save
//   - Registry: id generation, Create, Load, RenewID, List
//   - DeferredBackend: turns backend writes into queued background jobs
//
// # Basic Usage
//
//	import "github.com/dmitrymomot/tieredsession/core/session"
//
//	reg, err := session.NewRegistry(
//		session.WithBackends(durable, cache),
//		session.WithIdleTimeout(30*time.Minute),
//		session.WithLogger(log),
//	)
//	if err != nil {
//		return err
//	}
//
//	sess, err := reg.LoadOrCreate(ctx, idFromCookie)
//	if err != nil {
//		return err
//	}
//
//	sess.Set("cart", items)
//
//	// End of request. Exhausted retries are logged, not returned.
//	if err := sess.Save(ctx); err != nil {
//		return err
//	}
//
// # Lazy Refresh
//
// Every access advances the in-memory expiration by the idle timeout. A clean
// session only becomes dirty from an access when less than 75% of the idle
// window remains, so read-mostly sessions are rewritten about once per
// quarter of the timeout instead of on every request. Set and Remove always
// mark the session dirty.
//
// # Saving
//
// Save is a no-op for clean sessions. A dirty session is written through the
// chain; Retryable errors are retried with exponential backoff (10 attempts
// from 50ms by default). When the budget runs out the failure is logged at
// error level, Save returns nil and IsDirty stays true. Fatal errors are
// returned immediately. If the caller's context ends, including during a
// backoff wait, Save returns ErrDeadlineExceeded.
//
// Creation does not retry: Create returns the first backend error.
//
// # Deferred Writes
//
// DeferredBackend submits put and delete jobs to a work queue and returns once
// they are enqueued. Jobs carry a maximum age (10s by default) after which the
// queue drops them. Register NewDeferredJobHandler with the queue worker to
// apply them:
//
//	storage := queue.NewMemoryStorage()
//	enqueuer, _ := queue.NewEnqueuer(storage)
//	worker, _ := queue.NewWorker(storage)
//	worker.RegisterHandler(session.NewDeferredJobHandler(pgBackend, log))
//
//	deferred, _ := session.NewDeferredBackend(pgBackend, enqueuer)
//	reg, _ := session.NewRegistry(session.WithBackends(deferred, redisBackend))
//
// # Attribute Encoding
//
// Attributes are encoded with encoding/gob. Custom types must be registered
// once with RegisterType. Key-value backends store a single envelope built by
// EncodeRecord; column stores keep the expiration and EncodeAttributes output
// side by side. Undecodable bytes read back as ErrNotFound.
//
// # Concurrency
//
// A ManagedSession is safe for concurrent use. Separate instances for the same
// id share nothing and their saves are last-write-wins.
//
// # Error Handling
//
//   - ErrNotFound: missing, expired or corrupt record
//   - ErrUnsupported: no backend can enumerate sessions
//   - ErrDeadlineExceeded: the caller's context ended
//   - ErrSave: a write failed with a non-retryable error
//   - Retryable / Fatal: wrappers backends use to classify write errors
package session
