package mongo_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	driver "go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/dmitrymomot/tieredsession/core/session"
	"github.com/dmitrymomot/tieredsession/integration/database/mongo"
)

func TestDocumentShape(t *testing.T) {
	t.Parallel()

	rec := session.NewRecord(time.UnixMilli(1_700_000_060_000))
	rec.Attributes["user"] = "erin"

	doc, err := mongo.DocumentFor("_ahsk", rec)
	require.NoError(t, err)

	raw, err := bson.Marshal(doc)
	require.NoError(t, err)

	var fields bson.M
	require.NoError(t, bson.Unmarshal(raw, &fields))
	assert.Equal(t, "_ahsk", fields["_id"])
	assert.Equal(t, int64(1_700_000_060_000), fields["expires_at"])
	data, ok := fields["data"].(bson.Binary)
	require.True(t, ok)

	got, err := mongo.RecordFromDocument("_ahsk", 1_700_000_060_000, data.Data)
	require.NoError(t, err)
	assert.True(t, rec.ExpiresAt.Equal(got.ExpiresAt))
	assert.Equal(t, rec.Attributes, got.Attributes)

	_, err = mongo.RecordFromDocument("_ahsk", 0, []byte("junk"))
	assert.ErrorIs(t, err, session.ErrDecode)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	assert.NoError(t, mongo.Classify(nil))

	network := driver.CommandError{Code: 6, Labels: []string{"NetworkError"}}
	assert.True(t, session.IsRetryable(mongo.Classify(network)))

	retryableWrite := driver.CommandError{Code: 91, Labels: []string{"RetryableWriteError"}}
	assert.True(t, session.IsRetryable(mongo.Classify(retryableWrite)))

	invalid := driver.CommandError{Code: 2, Message: "bad value"}
	assert.True(t, session.IsFatal(mongo.Classify(invalid)))

	assert.True(t, session.IsFatal(mongo.Classify(errors.New("plain"))))

	deadline := mongo.Classify(context.DeadlineExceeded)
	assert.ErrorIs(t, deadline, context.DeadlineExceeded)
	assert.False(t, session.IsRetryable(deadline))
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	_, err := mongo.New(context.Background(), mongo.Config{})
	assert.ErrorIs(t, err, mongo.ErrEmptyConnectionURL)

	_, err = mongo.NewBackend(nil)
	assert.ErrorIs(t, err, mongo.ErrNilCollection)

	assert.ErrorIs(t, mongo.Healthcheck(nil)(context.Background()), mongo.ErrHealthcheckFailed)
}

// TestLive runs against a real server when MONGODB_URL is set.
func TestLive(t *testing.T) {
	url := os.Getenv("MONGODB_URL")
	if url == "" {
		t.Skip("MONGODB_URL not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := mongo.Config{
		ConnectionURL: url,
		Database:      "tieredsession_test",
		RetryAttempts: 2,
		RetryInterval: time.Second,
	}
	db, err := mongo.NewWithDatabase(ctx, cfg)
	require.NoError(t, err)
	defer db.Client().Disconnect(context.Background())

	require.NoError(t, mongo.Healthcheck(db.Client())(ctx))

	coll := db.Collection("sessions_" + time.Now().Format("150405"))
	t.Cleanup(func() { _ = coll.Drop(context.Background()) })

	b, err := mongo.NewBackend(coll)
	require.NoError(t, err)
	require.NoError(t, b.EnsureIndexes(ctx))

	rec := session.NewRecord(time.Now().Add(time.Minute))
	rec.Attributes["n"] = 1
	require.NoError(t, b.Put(ctx, "k", rec))
	require.NoError(t, b.Put(ctx, "stale", session.NewRecord(time.Now().Add(-time.Minute))))

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, rec.Attributes, got.Attributes)

	all, err := b.GetAll(ctx)
	require.NoError(t, err)
	assert.Contains(t, all, "k")
	assert.NotContains(t, all, "stale")

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, session.ErrNotFound)
}
