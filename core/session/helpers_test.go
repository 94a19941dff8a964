package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tieredsession/core/session"
)

// fakeClock advances instantly on After and records every requested wait.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	waits  []time.Duration
	freeze bool // After never fires
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.UnixMilli(1_700_000_000_000)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.waits = append(c.waits, d)
	ch := make(chan time.Time, 1)
	if c.freeze {
		return ch
	}
	c.now = c.now.Add(d)
	ch <- c.now
	return ch
}

func (c *fakeClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// fakeBackend wraps a MemoryBackend with call counters and fault injection.
type fakeBackend struct {
	*session.MemoryBackend

	mu        sync.Mutex
	putErrs   []error // returned by successive Puts before falling through
	putAlways error
	getErr    error
	deleteErr error
	gets      int
	puts      int
	deletes   int
}

func newFakeBackend(opts ...session.MemoryOption) *fakeBackend {
	return &fakeBackend{MemoryBackend: session.NewMemoryBackend(opts...)}
}

func (f *fakeBackend) Get(ctx context.Context, key string) (session.Record, error) {
	f.mu.Lock()
	f.gets++
	err := f.getErr
	f.mu.Unlock()

	if err != nil {
		return session.Record{}, err
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *fakeBackend) Put(ctx context.Context, key string, rec session.Record) error {
	f.mu.Lock()
	f.puts++
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		f.mu.Unlock()
		return err
	}
	err := f.putAlways
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.MemoryBackend.Put(ctx, key, rec)
}

func (f *fakeBackend) Delete(ctx context.Context, key string) error {
	f.mu.Lock()
	f.deletes++
	err := f.deleteErr
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return f.MemoryBackend.Delete(ctx, key)
}

func (f *fakeBackend) Calls() (gets, puts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.puts, f.deletes
}

func (f *fakeBackend) Has(t *testing.T, key string) bool {
	t.Helper()
	_, err := f.MemoryBackend.Get(context.Background(), key)
	return err == nil
}

// recordingObserver counts observer events.
type recordingObserver struct {
	mu        sync.Mutex
	hits      map[int]int
	misses    int
	attempts  int
	succeeded []int
	abandoned []string
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{hits: make(map[int]int)}
}

func (o *recordingObserver) TierHit(tier int) {
	o.mu.Lock()
	o.hits[tier]++
	o.mu.Unlock()
}

func (o *recordingObserver) Miss() {
	o.mu.Lock()
	o.misses++
	o.mu.Unlock()
}

func (o *recordingObserver) SaveAttempt() {
	o.mu.Lock()
	o.attempts++
	o.mu.Unlock()
}

func (o *recordingObserver) SaveSucceeded(attempts int) {
	o.mu.Lock()
	o.succeeded = append(o.succeeded, attempts)
	o.mu.Unlock()
}

func (o *recordingObserver) SaveAbandoned(reason string) {
	o.mu.Lock()
	o.abandoned = append(o.abandoned, reason)
	o.mu.Unlock()
}

func newTestRegistry(t *testing.T, clock session.Clock, backends ...session.Backend) *session.Registry {
	t.Helper()

	reg, err := session.NewRegistry(
		session.WithBackends(backends...),
		session.WithIdleTimeout(100*time.Second),
		session.WithClock(clock),
	)
	require.NoError(t, err)
	return reg
}
