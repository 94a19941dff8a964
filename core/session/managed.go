package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dmitrymomot/tieredsession/core/logger"
)

// refreshThreshold is the fraction of the idle timeout below which an
// access alone marks a clean session dirty.
const refreshThreshold = 0.75

// ManagedSession is the in-process write-back wrapper around one Record.
// Instances for the same id are independent; concurrent saves race at
// last-write-wins granularity in the backends.
type ManagedSession struct {
	id  string
	key string
	reg *Registry

	// saveMu serializes Save calls on this instance; mu guards the fields below
	// and is never held across backend I/O.
	saveMu sync.Mutex
	mu     sync.Mutex

	record      Record
	dirty       bool
	version     uint64
	invalidated bool
}

func newManagedSession(reg *Registry, id string, rec Record) *ManagedSession {
	if rec.Attributes == nil {
		rec.Attributes = make(map[string]any)
	}
	return &ManagedSession{
		id:     id,
		key:    KeyFor(reg.prefix, id),
		reg:    reg,
		record: rec,
	}
}

func (s *ManagedSession) ID() string { return s.id }

// Key returns the storage key backends see.
func (s *ManagedSession) Key() string { return s.key }

// IsDirty reports whether the in-memory state may differ from the last
// successfully persisted state.
func (s *ManagedSession) IsDirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}

// ExpiresAt returns the in-memory expiration without counting as an access.
func (s *ManagedSession) ExpiresAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.ExpiresAt
}

// Invalidated reports whether the session was deleted or replaced by RenewID.
func (s *ManagedSession) Invalidated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invalidated
}

// Get returns an attribute value.
func (s *ManagedSession) Get(name string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access()
	v, ok := s.record.Attributes[name]
	return v, ok
}

// Set stores an attribute value and marks the session dirty.
func (s *ManagedSession) Set(name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access()
	s.record.Attributes[name] = value
	s.markModified()
}

// Remove deletes an attribute and marks the session dirty.
func (s *ManagedSession) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access()
	delete(s.record.Attributes, name)
	s.markModified()
}

// Names returns the attribute names in sorted order.
func (s *ManagedSession) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access()
	names := make([]string, 0, len(s.record.Attributes))
	for name := range s.record.Attributes {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Attributes returns a copy of the attribute map.
func (s *ManagedSession) Attributes() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.access()
	return s.record.Clone().Attributes
}

// Touch counts as an access without reading or writing attributes.
func (s *ManagedSession) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access()
}

// access applies the lazy refresh rule. Must be called with s.mu held.
func (s *ManagedSession) access() {
	now := s.reg.clock.Now()
	idle := s.reg.idleTimeout

	if !s.dirty {
		remaining := s.record.ExpiresAt.Sub(now)
		if float64(remaining) < float64(idle)*refreshThreshold {
			s.dirty = true
		}
	}
	s.record.ExpiresAt = truncateMillis(now.Add(idle))
}

// markModified must be called with s.mu held.
func (s *ManagedSession) markModified() {
	s.dirty = true
	s.version++
}

// Save writes a dirty session through every backend, retrying transient
// failures with exponential backoff. It is a no-op for clean or invalidated
// sessions.
//
// Exhausting the retry budget is logged and returns nil; the session stays
// dirty. Fatal backend errors and the caller's context ending are returned.
func (s *ManagedSession) Save(ctx context.Context) error {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()

	s.mu.Lock()
	if s.invalidated || !s.dirty {
		s.mu.Unlock()
		return nil
	}
	s.record.ExpiresAt = truncateMillis(s.reg.clock.Now().Add(s.reg.idleTimeout))
	snapshot := s.record.Clone()
	version := s.version
	s.mu.Unlock()

	reg := s.reg
	policy := reg.retry
	log := reg.logger.With(logger.Component("session"), logger.SessionKey(s.key))

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return s.abortDeadline(ctx, log, attempt-1, err)
		}

		reg.observer.SaveAttempt()
		err := reg.chain.Put(ctx, s.key, snapshot)

		switch classify(ctx, err) {
		case outcomeOK:
			s.mu.Lock()
			if s.version == version {
				s.dirty = false
			}
			s.mu.Unlock()
			reg.observer.SaveSucceeded(attempt)
			if attempt > 1 {
				log.DebugContext(ctx, "session saved after retry", logger.RetryCount(attempt-1))
			}
			return nil

		case outcomeDeadline:
			return s.abortDeadline(ctx, log, attempt, err)

		case outcomeFatal:
			reg.observer.SaveAbandoned("fatal")
			log.ErrorContext(ctx, "session save failed permanently",
				logger.Attempt(attempt),
				logger.Error(err))
			return fmt.Errorf("%w: %w", ErrSave, err)

		case outcomeRetry:
			if attempt >= policy.MaxAttempts {
				reg.observer.SaveAbandoned("exhausted")
				log.ErrorContext(ctx, "session save abandoned after exhausting retries, persisted copy is stale",
					logger.RetryCount(attempt),
					logger.Error(err))
				return nil
			}

			wait := policy.Backoff(attempt)
			log.WarnContext(ctx, "session save failed, retrying",
				logger.Attempt(attempt),
				logger.Duration(wait),
				logger.Error(err))

			select {
			case <-ctx.Done():
				return s.abortDeadline(ctx, log, attempt, ctx.Err())
			case <-reg.clock.After(wait):
			}
		}
	}
}

func (s *ManagedSession) abortDeadline(ctx context.Context, log *slog.Logger, attempts int, cause error) error {
	s.reg.observer.SaveAbandoned("deadline")
	log.ErrorContext(context.WithoutCancel(ctx), "session save aborted by deadline",
		slog.Int("attempts", attempts),
		logger.Error(cause))
	return fmt.Errorf("%w: %w", ErrDeadlineExceeded, cause)
}

// Delete removes the session from every backend in write order and
// invalidates this instance.
func (s *ManagedSession) Delete(ctx context.Context) error {
	s.invalidate()
	return s.reg.chain.Delete(ctx, s.key)
}

func (s *ManagedSession) invalidate() {
	s.mu.Lock()
	s.invalidated = true
	s.dirty = false
	s.mu.Unlock()
}

// snapshot returns a copy of the record for id renewal.
func (s *ManagedSession) snapshot() Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.record.Clone()
}
