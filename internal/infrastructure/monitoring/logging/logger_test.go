package logging

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerEmitsFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core)

	l.Info("dataset loaded",
		String("dataset", "davis"),
		Int("rows", 30056),
		Float64("frac", 0.8),
		Bool("in_memory", true),
		Duration("elapsed", 2*time.Second),
		Err(errors.New("partial")),
	)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "dataset loaded", entry.Message)

	fields := entry.ContextMap()
	assert.Equal(t, "davis", fields["dataset"])
	assert.Equal(t, int64(30056), fields["rows"])
	assert.Equal(t, true, fields["in_memory"])
	assert.Equal(t, "partial", fields["error"])
}

func TestWithAttachesFieldsToChildOnly(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	parent := NewLoggerFromCore(core)
	child := parent.With(String("run_id", "abc"))

	child.Info("child entry")
	parent.Info("parent entry")

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "abc", all[0].ContextMap()["run_id"])
	assert.NotContains(t, all[1].ContextMap(), "run_id")
}

func TestNamedLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewLoggerFromCore(core).Named("train").Named("loader")
	l.Info("x")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "train.loader", logs.All()[0].LoggerName)
}

func TestNewLoggerDefaults(t *testing.T) {
	l, err := NewLogger(LogConfig{})
	require.NoError(t, err)
	require.NotNil(t, l)
}

func TestDefaultLoggerSwap(t *testing.T) {
	orig := Default()
	defer SetDefault(orig)

	core, logs := observer.New(zapcore.InfoLevel)
	SetDefault(NewLoggerFromCore(core))
	Default().Info("via default")
	assert.Equal(t, 1, logs.Len())

	// nil is ignored rather than clearing the default.
	SetDefault(nil)
	Default().Info("still works")
	assert.Equal(t, 2, logs.Len())
}
