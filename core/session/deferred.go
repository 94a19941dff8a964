package session

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dmitrymomot/tieredsession/core/logger"
	"github.com/dmitrymomot/tieredsession/core/queue"
)

const (
	// DeferredJobName routes deferred writes to NewDeferredJobHandler.
	DeferredJobName = "session.deferred_write"

	// DefaultDeferredMaxAge is how long a deferred job may wait before the
	// queue abandons it.
	DefaultDeferredMaxAge = 10 * time.Second

	OpPut    = "put"
	OpDelete = "delete"
)

// DeferredJob is the queue payload for a deferred backend write.
type DeferredJob struct {
	Op  string `json:"op"`
	Key string `json:"key"`
	// Record is the EncodeRecord envelope; set only for OpPut.
	Record []byte `json:"record,omitempty"`
}

// Submitter is the work queue submission API. *queue.Enqueuer satisfies it.
type Submitter interface {
	Enqueue(ctx context.Context, payload any, opts ...queue.EnqueueOption) error
}

// DeferredBackend wraps a durable backend so Put and Delete are queued as
// background jobs instead of running on the caller's goroutine. They return
// once the job is enqueued. Reads pass through.
type DeferredBackend struct {
	next      Backend
	submitter Submitter
	maxAge    time.Duration
	queueName string
	logger    *slog.Logger
}

// DeferredOption configures a DeferredBackend.
type DeferredOption func(*DeferredBackend)

// WithDeferredMaxAge bounds how long a job may wait in the queue.
func WithDeferredMaxAge(d time.Duration) DeferredOption {
	return func(b *DeferredBackend) {
		if d > 0 {
			b.maxAge = d
		}
	}
}

// WithDeferredQueue routes jobs to a named queue.
func WithDeferredQueue(name string) DeferredOption {
	return func(b *DeferredBackend) {
		b.queueName = name
	}
}

func WithDeferredLogger(l *slog.Logger) DeferredOption {
	return func(b *DeferredBackend) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewDeferredBackend decorates next with queued writes.
func NewDeferredBackend(next Backend, submitter Submitter, opts ...DeferredOption) (*DeferredBackend, error) {
	if next == nil {
		return nil, ErrNilBackend
	}
	if submitter == nil {
		return nil, ErrNilSubmitter
	}

	b := &DeferredBackend{
		next:      next,
		submitter: submitter,
		maxAge:    DefaultDeferredMaxAge,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

func (b *DeferredBackend) Get(ctx context.Context, key string) (Record, error) {
	return b.next.Get(ctx, key)
}

func (b *DeferredBackend) GetAll(ctx context.Context) (map[string]Record, error) {
	return b.next.GetAll(ctx)
}

// Put enqueues a copy of rec. Encoding failures are fatal; enqueue failures
// are retryable.
func (b *DeferredBackend) Put(ctx context.Context, key string, rec Record) error {
	data, err := EncodeRecord(rec)
	if err != nil {
		return Fatal(err)
	}
	return b.submit(ctx, DeferredJob{Op: OpPut, Key: key, Record: data})
}

func (b *DeferredBackend) Delete(ctx context.Context, key string) error {
	return b.submit(ctx, DeferredJob{Op: OpDelete, Key: key})
}

func (b *DeferredBackend) submit(ctx context.Context, job DeferredJob) error {
	opts := []queue.EnqueueOption{
		queue.WithTaskName(DeferredJobName),
		queue.WithMaxAge(b.maxAge),
	}
	if b.queueName != "" {
		opts = append(opts, queue.WithQueue(b.queueName))
	}

	if err := b.submitter.Enqueue(ctx, job, opts...); err != nil {
		return Retryable(fmt.Errorf("enqueue deferred %s: %w", job.Op, err))
	}

	b.logger.DebugContext(ctx, "deferred session write enqueued",
		logger.Component("session"),
		logger.SessionKey(job.Key),
		logger.Action(job.Op))
	return nil
}

type deferredJobHandler struct {
	next   Backend
	logger *slog.Logger
}

// NewDeferredJobHandler returns the queue handler that applies deferred jobs
// to next. Undecodable jobs and fatal write errors are logged and dropped;
// retryable errors are returned so the queue retries until the job's max age.
func NewDeferredJobHandler(next Backend, l *slog.Logger) queue.Handler {
	if l == nil {
		l = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &deferredJobHandler{next: next, logger: l}
}

func (h *deferredJobHandler) Name() string { return DeferredJobName }

func (h *deferredJobHandler) Handle(ctx context.Context, payload json.RawMessage) error {
	var job DeferredJob
	if err := json.Unmarshal(payload, &job); err != nil {
		h.drop(ctx, job, "undecodable job payload", err)
		return nil
	}

	var err error
	switch job.Op {
	case OpPut:
		var rec Record
		rec, err = DecodeRecord(job.Record)
		if err != nil {
			h.drop(ctx, job, "undecodable record", err)
			return nil
		}
		err = h.next.Put(ctx, job.Key, rec)
	case OpDelete:
		err = h.next.Delete(ctx, job.Key)
	default:
		h.drop(ctx, job, "unknown operation", fmt.Errorf("op %q", job.Op))
		return nil
	}

	if err == nil {
		return nil
	}
	if IsRetryable(err) {
		return err
	}
	h.drop(ctx, job, "deferred write rejected", err)
	return nil
}

func (h *deferredJobHandler) drop(ctx context.Context, job DeferredJob, reason string, err error) {
	h.logger.ErrorContext(ctx, "dropping deferred session job: "+reason,
		logger.Component("session"),
		logger.SessionKey(job.Key),
		logger.Action(job.Op),
		logger.Error(err))
}
