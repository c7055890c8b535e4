package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogger_KeyValuesAndPrefix(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core), "runner")

	l.With("path", "a.pdf").Info("batch completed", "first", 1, "last", 4)
	l.Warn("late outcome ignored")
	l.Debug("noise")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "runner", entries[0].LoggerName)
	assert.Equal(t, "batch completed", entries[0].Message)
	fields := entries[0].ContextMap()
	assert.Equal(t, "a.pdf", fields["path"])
	assert.EqualValues(t, 1, fields["first"])
	assert.EqualValues(t, 4, fields["last"])
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
}

func TestOrNop(t *testing.T) {
	assert.NotNil(t, OrNop(nil))
	l := Nop()
	assert.Same(t, l, OrNop(l))
	l.Error("discarded", "k", "v")
}
