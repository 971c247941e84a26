package core

import (
	"context"
	"testing"

	"github.com/sb-ncbr/proptimus-web/internal/config"
	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/logger"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func newTestApp(t *testing.T, cfg *config.Config) (*App, error) {
	t.Helper()
	api := proptimus.New("http://127.0.0.1:1", "http://127.0.0.1:1", 0)
	app, err := NewWithConfig(cfg, logger.Nop(), api)
	if err == nil {
		t.Cleanup(app.Close)
	}
	return app, err
}

func TestNewWithConfig(t *testing.T) {
	app, err := newTestApp(t, config.Default())
	require.NoError(t, err)

	assert.NotNil(t, app.Jobs)
	assert.NotNil(t, app.Hinter)
	assert.NotNil(t, app.Viewers)
	assert.Equal(t, "1.0.0", app.Version)
	assert.Equal(t, zapcore.InfoLevel, app.LogLevel.Level())

	app.SetLogLevel("debug")
	assert.Equal(t, zapcore.DebugLevel, app.LogLevel.Level())
}

func TestNewWithConfig_BadRedisURL(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.RedisURL = "not a url"
	_, err := newTestApp(t, cfg)
	assert.Error(t, err)
}

func TestForgetViewer(t *testing.T) {
	app, err := newTestApp(t, config.Default())
	require.NoError(t, err)

	app.rendered["comparison-x"] = true
	app.ForgetViewer("comparison-x")
	assert.False(t, app.rendered["comparison-x"])
}

func TestResubmittedForgetsComparison(t *testing.T) {
	app, err := newTestApp(t, config.Default())
	require.NoError(t, err)

	app.rendered["comparison-P1_7.0"] = true
	tr := app.Resubmitted(context.Background(), "P1_7.0")
	require.NotNil(t, tr)
	assert.False(t, app.rendered["comparison-P1_7.0"])

	current, ok := app.Jobs.Get("P1_7.0")
	require.True(t, ok)
	assert.Same(t, tr, current)
}

func TestShowComparisonIgnoresUnfinishedJobs(t *testing.T) {
	app, err := newTestApp(t, config.Default())
	require.NoError(t, err)

	app.ShowComparison(jobs.State{Key: "P1_7.0"})
	assert.Empty(t, app.Viewers.Containers())
	assert.Empty(t, app.rendered)
}
