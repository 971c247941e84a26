package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/api"
	"github.com/sb-ncbr/proptimus-web/internal/config"
	"github.com/sb-ncbr/proptimus-web/internal/core"
	"github.com/sb-ncbr/proptimus-web/internal/jobs"
)

func main() {
	// Initialize the core application components
	app, err := core.New()
	if err != nil {
		log.Fatalf("Fatal error during application setup: %v", err)
	}
	defer app.Close()
	lg := app.Logger

	// Pick up log level changes without a restart.
	config.Watch(func(cfg *config.Config) {
		app.SetLogLevel(cfg.Log.Level)
		lg.Infow("Configuration reloaded", "log_level", cfg.Log.Level)
	}, func(err error) {
		lg.Warnw("Ignoring invalid configuration change", "error", err)
	})

	// Drop trackers of finished jobs nobody looks at anymore.
	if scheduler := jobs.StartScheduler(app.Jobs, app.Config.Tracker.SweepInterval, lg.Named("scheduler")); scheduler != nil {
		defer scheduler.Stop()
	}

	// Setup the API server
	server, err := api.NewServer(app)
	if err != nil {
		lg.Fatalf("Could not create server: %v", err)
	}
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", app.Config.Port),
		Handler: server.Router(),
	}

	// --- Graceful Shutdown ---
	// Start the server in a goroutine so it doesn't block.
	go func() {
		lg.Infof("Starting web server on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			lg.Fatalf("Could not start server: %v", err)
		}
	}()

	// Wait for an interrupt signal.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	lg.Info("Shutting down server...")

	// Create a context with a timeout to allow existing connections to finish.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		lg.Errorf("Server forced to shutdown: %v", err)
	}

	lg.Info("Server exiting.")
}
