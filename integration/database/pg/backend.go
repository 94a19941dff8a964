package pg

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tieredsession/core/logger"
	"github.com/dmitrymomot/tieredsession/core/session"
)

// Querier is the subset of pgx used by Backend. *pgxpool.Pool, *pgx.Conn
// and pgx.Tx implement it.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const (
	getQuery    = `SELECT expires_at, data FROM sessions WHERE key = $1`
	getAllQuery = `SELECT key, expires_at, data FROM sessions WHERE expires_at > $1`
	upsertQuery = `INSERT INTO sessions (key, expires_at, data) VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET expires_at = EXCLUDED.expires_at, data = EXCLUDED.data`
	deleteQuery = `DELETE FROM sessions WHERE key = $1`
)

// Backend is the durable session tier. It stores the expiry as unix
// milliseconds and the attributes as an encoded blob in the sessions table
// created by Migrate. A transaction attached with WithTx is used instead of
// the pool.
type Backend struct {
	db     Querier
	clock  session.Clock
	logger *slog.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClock sets the clock GetAll uses to skip expired rows.
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

// NewBackend creates a Backend over db.
func NewBackend(db Querier, opts ...BackendOption) (*Backend, error) {
	if db == nil {
		return nil, ErrNilPool
	}
	b := &Backend{
		db:     db,
		clock:  session.SystemClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *Backend) querier(ctx context.Context) Querier {
	if tx, ok := TxFromContext(ctx); ok {
		return tx
	}
	return b.db
}

func (b *Backend) Get(ctx context.Context, key string) (session.Record, error) {
	var (
		expiresAt int64
		data      []byte
	)
	err := b.querier(ctx).QueryRow(ctx, getQuery, key).Scan(&expiresAt, &data)
	if IsNotFoundError(err) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, classify(err)
	}
	return b.decode(ctx, key, expiresAt, data)
}

func (b *Backend) GetAll(ctx context.Context) (map[string]session.Record, error) {
	rows, err := b.querier(ctx).Query(ctx, getAllQuery, b.clock.Now().UnixMilli())
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	out := make(map[string]session.Record)
	for rows.Next() {
		var (
			key       string
			expiresAt int64
			data      []byte
		)
		if err := rows.Scan(&key, &expiresAt, &data); err != nil {
			return nil, classify(err)
		}
		rec, err := b.decode(ctx, key, expiresAt, data)
		if err != nil {
			continue
		}
		out[key] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (b *Backend) Put(ctx context.Context, key string, rec session.Record) error {
	data, err := session.EncodeAttributes(rec.Attributes)
	if err != nil {
		return session.Fatal(err)
	}

	if _, err := b.querier(ctx).Exec(ctx, upsertQuery, key, rec.ExpiresAt.UnixMilli(), data); err != nil {
		return classify(err)
	}
	return nil
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	if _, err := b.querier(ctx).Exec(ctx, deleteQuery, key); err != nil {
		return classify(err)
	}
	return nil
}

func (b *Backend) decode(ctx context.Context, key string, expiresAt int64, data []byte) (session.Record, error) {
	attrs, err := session.DecodeAttributes(data)
	if err != nil {
		b.logger.WarnContext(ctx, "corrupt session row",
			logger.Component("pg"),
			logger.SessionKey(key),
			logger.Error(err))
		return session.Record{}, session.ErrNotFound
	}
	return session.Record{ExpiresAt: time.UnixMilli(expiresAt), Attributes: attrs}, nil
}
