package queue

import (
	"context"
	"encoding/json"
)

type (
	// Handler defines the interface for task processors.
	Handler interface {
		// Name returns the task name used for handler registration and routing.
		Name() string
		// Handle processes the task with the given raw JSON payload.
		Handle(ctx context.Context, payload json.RawMessage) error
	}

	// TaskHandlerFunc is a type-safe handler function.
	// The generic type T represents the expected payload structure.
	TaskHandlerFunc[T any] func(ctx context.Context, payload T) error
)

// NewTaskHandler creates a type-safe handler whose name is derived from
// the payload type (e.g., "session.DeferredJob").
func NewTaskHandler[T any](handler TaskHandlerFunc[T]) Handler {
	var payload T
	return NewNamedTaskHandler(qualifiedStructName(payload), handler)
}

// NewNamedTaskHandler creates a type-safe handler registered under an explicit name.
// Pair it with WithTaskName on the enqueue side.
func NewNamedTaskHandler[T any](name string, handler TaskHandlerFunc[T]) Handler {
	return &taskHandler[T]{
		name:    name,
		handler: handler,
	}
}

type taskHandler[T any] struct {
	name    string
	handler TaskHandlerFunc[T]
}

func (h *taskHandler[T]) Name() string {
	return h.name
}

func (h *taskHandler[T]) Handle(ctx context.Context, payload json.RawMessage) error {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return err
	}
	return h.handler(ctx, t)
}
