package mongo

import "github.com/dmitrymomot/tieredsession/core/session"

var Classify = classify

// DocumentFor returns the stored document for rec as a bson-ready value.
func DocumentFor(key string, rec session.Record) (any, error) {
	return toDocument(key, rec)
}

// RecordFromDocument decodes raw document fields.
func RecordFromDocument(key string, expiresAt int64, data []byte) (session.Record, error) {
	return document{Key: key, ExpiresAt: expiresAt, Data: data}.record()
}
