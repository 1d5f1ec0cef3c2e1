package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("dev"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("prod"))
}

func TestInitReplacesGlobal(t *testing.T) {
	before := Get()
	require.NoError(t, Init(&Config{Level: "error", ServiceName: "test"}))
	t.Cleanup(func() {
		mu.Lock()
		global = before
		mu.Unlock()
	})
	assert.NotSame(t, before, Get())
	assert.False(t, Get().Core().Enabled(zapcore.InfoLevel))
}
