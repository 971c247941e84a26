package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warn"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel(""))
}

func TestNewAtomicLevel(t *testing.T) {
	lg, level := New("error")
	assert.NotNil(t, lg)
	assert.Equal(t, zapcore.ErrorLevel, level.Level())

	level.SetLevel(zapcore.DebugLevel)
	assert.True(t, lg.Desugar().Core().Enabled(zapcore.DebugLevel))
}
