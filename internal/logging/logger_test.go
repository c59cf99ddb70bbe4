package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	logger, err := New(false)
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))

	logger, err = New(true)
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestComponent(t *testing.T) {
	core, observed := observer.New(zap.InfoLevel)

	Component(zap.New(core), "cluster").Info("done")

	require.Equal(t, 1, observed.Len())
	assert.Equal(t, "cluster", observed.All()[0].ContextMap()[FieldComponent])
}

func TestComponent_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		Component(nil, "x").Info("ignored")
	})
}
