// Shared test server setup, which simplifies all API tests.

package testutil

import (
	"testing"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/api"
	"github.com/sb-ncbr/proptimus-web/internal/config"
	"github.com/sb-ncbr/proptimus-web/internal/core"
	"github.com/sb-ncbr/proptimus-web/internal/logger"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
)

// TestConfig returns the defaults with short intervals and backend URLs
// pointing at b.
func TestConfig(b *Backend) *config.Config {
	cfg := config.Default()
	cfg.App.Version = "1.2.3"
	cfg.API.BaseURL = b.URL
	cfg.Hinting.UpstreamURL = b.URL
	cfg.Hinting.Debounce = 20 * time.Millisecond
	cfg.Polling.Interval = 10 * time.Millisecond
	return cfg
}

// SetupTestApp builds a core.App wired to a fresh fake backend.
func SetupTestApp(t *testing.T) (*core.App, *Backend) {
	t.Helper()
	b := NewBackend(t)
	cfg := TestConfig(b)
	client := proptimus.New(cfg.API.BaseURL, cfg.Hinting.UpstreamURL, 5*time.Second)
	app, err := core.NewWithConfig(cfg, logger.Nop(), client)
	if err != nil {
		t.Fatalf("Failed to set up app: %v", err)
	}
	t.Cleanup(app.Close)
	return app, b
}

// SetupTestServer initializes a full core.App and api.Server for integration testing.
func SetupTestServer(t *testing.T) (*api.Server, *core.App, *Backend) {
	t.Helper()
	app, b := SetupTestApp(t)
	server, err := api.NewServer(app)
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	return server, app, b
}
