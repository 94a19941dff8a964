package logger_test

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tieredsession/core/logger"
)

func TestGroup(t *testing.T) {
	t.Parallel()
	attr := logger.Group("save", slog.String("key", "_ahsabc"), slog.Int("n", 2))
	require.Equal(t, "save", attr.Key)
	require.Equal(t, slog.KindGroup, attr.Value.Kind())
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "key", g[0].Key)
	assert.Equal(t, "n", g[1].Key)
}

// ============================================================================
// Error Handling Tests
// ============================================================================

func TestErrors(t *testing.T) {
	t.Parallel()
	err1 := errors.New("first")
	err2 := errors.New("second")

	attr := logger.Errors(err1, nil, err2)
	require.Equal(t, "errors", attr.Key)
	g := attr.Value.Group()
	require.Len(t, g, 2)
	assert.Equal(t, "0", g[0].Key)
	assert.Equal(t, "2", g[1].Key)
	assert.Equal(t, err2, g[1].Value.Any())

	assert.True(t, logger.Errors(nil).Equal(slog.Attr{}))
}

func TestError(t *testing.T) {
	t.Parallel()
	err := errors.New("boom")
	attr := logger.Error(err)
	require.Equal(t, "error", attr.Key)
	assert.Equal(t, err, attr.Value.Any())

	assert.True(t, logger.Error(nil).Equal(slog.Attr{}))
}

// ============================================================================
// Performance and Timing Tests
// ============================================================================

func TestDuration(t *testing.T) {
	t.Parallel()
	attr := logger.Duration(50 * time.Millisecond)
	require.Equal(t, "duration", attr.Key)
	assert.Equal(t, 50*time.Millisecond, attr.Value.Duration())
}

func TestElapsed(t *testing.T) {
	t.Parallel()
	attr := logger.Elapsed(time.Now().Add(-500 * time.Millisecond))
	require.Equal(t, "elapsed", attr.Key)
	assert.GreaterOrEqual(t, attr.Value.Duration(), 500*time.Millisecond)
}

// ============================================================================
// Identifier Tests
// ============================================================================

func TestID(t *testing.T) {
	t.Parallel()
	attr := logger.ID("task_id", "123")
	require.Equal(t, "task_id", attr.Key)
	assert.Equal(t, "123", attr.Value.Any())

	assert.True(t, logger.ID("key", nil).Equal(slog.Attr{}))
}

func TestSessionKey(t *testing.T) {
	t.Parallel()
	attr := logger.SessionKey("_ahsabc")
	require.Equal(t, "session_key", attr.Key)
	assert.Equal(t, "_ahsabc", attr.Value.String())

	assert.True(t, logger.SessionKey("").Equal(slog.Attr{}))
}

func TestTierAttemptQueue(t *testing.T) {
	t.Parallel()

	tier := logger.Tier(1)
	require.Equal(t, "tier", tier.Key)
	assert.Equal(t, int64(1), tier.Value.Int64())

	attempt := logger.Attempt(3)
	require.Equal(t, "attempt", attempt.Key)
	assert.Equal(t, int64(3), attempt.Value.Int64())

	q := logger.Queue("sessions")
	require.Equal(t, "queue", q.Key)
	assert.Equal(t, "sessions", q.Value.String())
}

// ============================================================================
// Generic Metadata Tests
// ============================================================================

func TestMetadata(t *testing.T) {
	t.Parallel()

	tests := []struct {
		attr slog.Attr
		key  string
		want string
	}{
		{logger.Component("session"), "component", "session"},
		{logger.Event("startup"), "event", "startup"},
		{logger.Type("put"), "type", "put"},
		{logger.Action("delete"), "action", "delete"},
		{logger.Result("success"), "result", "success"},
		{logger.Version("1.2.3"), "version", "1.2.3"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.key, tt.attr.Key)
		assert.Equal(t, tt.want, tt.attr.Value.String())
	}
}

func TestCount(t *testing.T) {
	t.Parallel()
	attr := logger.Count("drained", 3)
	require.Equal(t, "drained", attr.Key)
	assert.Equal(t, int64(3), attr.Value.Int64())
}

func TestKey(t *testing.T) {
	t.Parallel()
	attr := logger.Key("custom", "value")
	require.Equal(t, "custom", attr.Key)
	assert.Equal(t, "value", attr.Value.Any())

	assert.True(t, logger.Key("key", nil).Equal(slog.Attr{}))
}

func TestRetryCount(t *testing.T) {
	t.Parallel()
	attr := logger.RetryCount(5)
	require.Equal(t, "retry_count", attr.Key)
	assert.Equal(t, int64(5), attr.Value.Int64())
}

// ============================================================================
// Debugging Tests
// ============================================================================

func TestStack(t *testing.T) {
	t.Parallel()
	attr := logger.Stack()
	require.Equal(t, "stack", attr.Key)
	assert.Contains(t, attr.Value.String(), "TestStack")
}

func TestCaller(t *testing.T) {
	t.Parallel()
	attr := logger.Caller()
	require.Equal(t, "caller", attr.Key)
	caller := attr.Value.String()
	assert.Contains(t, caller, "attr_test.go")
	assert.Len(t, strings.Split(caller, ":"), 2)
}
