package mongo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/dmitrymomot/tieredsession/core/logger"
	"github.com/dmitrymomot/tieredsession/core/session"
)

// document is the stored shape of a session. ExpiresAt is unix milliseconds.
type document struct {
	Key       string `bson:"_id"`
	ExpiresAt int64  `bson:"expires_at"`
	Data      []byte `bson:"data"`
}

func toDocument(key string, rec session.Record) (document, error) {
	data, err := session.EncodeAttributes(rec.Attributes)
	if err != nil {
		return document{}, err
	}
	return document{Key: key, ExpiresAt: rec.ExpiresAt.UnixMilli(), Data: data}, nil
}

func (d document) record() (session.Record, error) {
	attrs, err := session.DecodeAttributes(d.Data)
	if err != nil {
		return session.Record{}, err
	}
	return session.Record{ExpiresAt: time.UnixMilli(d.ExpiresAt), Attributes: attrs}, nil
}

// Backend is a durable session tier keeping one document per session key.
type Backend struct {
	coll   *mongo.Collection
	clock  session.Clock
	logger *slog.Logger
}

// BackendOption configures a Backend.
type BackendOption func(*Backend)

// WithClock sets the clock GetAll uses to skip expired documents.
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

// NewBackend creates a Backend over coll.
func NewBackend(coll *mongo.Collection, opts ...BackendOption) (*Backend, error) {
	if coll == nil {
		return nil, ErrNilCollection
	}
	b := &Backend{
		coll:   coll,
		clock:  session.SystemClock(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// EnsureIndexes creates the expires_at index used by GetAll.
func (b *Backend) EnsureIndexes(ctx context.Context) error {
	_, err := b.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "expires_at", Value: 1}},
	})
	return classify(err)
}

func (b *Backend) Get(ctx context.Context, key string) (session.Record, error) {
	var doc document
	err := b.coll.FindOne(ctx, bson.D{{Key: "_id", Value: key}}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return session.Record{}, session.ErrNotFound
	}
	if err != nil {
		return session.Record{}, classify(err)
	}
	return b.decode(ctx, doc)
}

func (b *Backend) GetAll(ctx context.Context) (map[string]session.Record, error) {
	filter := bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: b.clock.Now().UnixMilli()}}}}
	cur, err := b.coll.Find(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	defer cur.Close(context.WithoutCancel(ctx))

	out := make(map[string]session.Record)
	for cur.Next(ctx) {
		var doc document
		if err := cur.Decode(&doc); err != nil {
			continue
		}
		rec, err := b.decode(ctx, doc)
		if err != nil {
			continue
		}
		out[doc.Key] = rec
	}
	if err := cur.Err(); err != nil {
		return nil, classify(err)
	}
	return out, nil
}

func (b *Backend) Put(ctx context.Context, key string, rec session.Record) error {
	doc, err := toDocument(key, rec)
	if err != nil {
		return session.Fatal(err)
	}

	_, err = b.coll.ReplaceOne(ctx, bson.D{{Key: "_id", Value: key}}, doc, options.Replace().SetUpsert(true))
	return classify(err)
}

func (b *Backend) Delete(ctx context.Context, key string) error {
	_, err := b.coll.DeleteOne(ctx, bson.D{{Key: "_id", Value: key}})
	return classify(err)
}

func (b *Backend) decode(ctx context.Context, doc document) (session.Record, error) {
	rec, err := doc.record()
	if err != nil {
		b.logger.WarnContext(ctx, "corrupt session document",
			logger.Component("mongo"),
			logger.SessionKey(doc.Key),
			logger.Error(err))
		return session.Record{}, session.ErrNotFound
	}
	return rec, nil
}

var retryableLabels = []string{"RetryableWriteError", "TransientTransactionError"}

// classify maps driver errors onto the session outcome taxonomy.
// Context errors pass through so the caller's deadline is recognized.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case mongo.IsNetworkError(err), mongo.IsTimeout(err):
		return session.Retryable(err)
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		for _, label := range retryableLabels {
			if se.HasErrorLabel(label) {
				return session.Retryable(err)
			}
		}
	}
	return session.Fatal(err)
}
