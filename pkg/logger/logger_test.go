package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLevel(t *testing.T) {
	l := New("debug")
	assert.True(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))

	l = New("not-a-level")
	assert.False(t, l.Desugar().Core().Enabled(zapcore.DebugLevel))
	assert.True(t, l.Desugar().Core().Enabled(zapcore.InfoLevel))
}

func TestWithCarriesFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	l := FromZap(zap.New(core))

	l.With("checkout_id", "co-1").Infow("checkout materialized", "created", 2)
	l.Debugw("dropped")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "checkout materialized", entries[0].Message)
	assert.Equal(t, map[string]interface{}{"checkout_id": "co-1", "created": int64(2)}, entries[0].ContextMap())
}
