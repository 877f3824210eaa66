package logger

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestReplaceWithObserver(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Replace(zap.New(core))
	t.Cleanup(func() { Replace(nil) })

	Warn("command shape mismatch", zap.String("service", "frd:u"))
	Debug("dispatch")

	require.Equal(t, 2, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "command shape mismatch", entry.Message)
	assert.Equal(t, "frd:u", entry.ContextMap()["service"])
}

func TestInitFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frd.log")
	require.NoError(t, Init(Config{Level: "debug", Format: "console", Output: path}))
	t.Cleanup(func() { Replace(nil) })

	assert.Equal(t, zapcore.DebugLevel, Level().Level())
	Info("started")
	assert.NoError(t, Sync())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
