package session

import (
	"maps"
	"time"
)

// Record is the persisted unit of session state.
type Record struct {
	// ExpiresAt is stored at millisecond resolution.
	ExpiresAt time.Time
	// Attributes is never nil on records produced by this package.
	Attributes map[string]any
}

// NewRecord returns an empty record expiring at expiresAt.
func NewRecord(expiresAt time.Time) Record {
	return Record{
		ExpiresAt:  truncateMillis(expiresAt),
		Attributes: make(map[string]any),
	}
}

// Clone copies the attribute map. Values are shared.
func (r Record) Clone() Record {
	attrs := make(map[string]any, len(r.Attributes))
	maps.Copy(attrs, r.Attributes)
	return Record{ExpiresAt: r.ExpiresAt, Attributes: attrs}
}

// Expired reports whether the record is no longer valid at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// truncateMillis drops sub-millisecond precision and the monotonic reading
// so that a record compares equal to its decoded copy.
func truncateMillis(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	return time.UnixMilli(t.UnixMilli())
}
