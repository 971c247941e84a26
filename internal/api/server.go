// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sb-ncbr/proptimus-web/internal/assets"
	"github.com/sb-ncbr/proptimus-web/internal/core"
)

// Server holds the dependencies for our API.
type Server struct {
	app   *core.App
	pages *template.Template
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) (*Server, error) {
	pages, err := template.ParseFS(assets.WebFS, "web/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse page templates: %w", err)
	}
	return &Server{app: app, pages: pages}, nil
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.RequestLogger)
	r.Use(middleware.Recoverer) // Recovers from panics

	// Websocket connections outlive the request timeout.
	r.Get("/ws/jobs/{key}", s.handleJobSocket)
	r.Get("/ws/viewers/{containerID}", s.handleViewerSocket)
	r.Get("/ws/hints", s.handleHintSocket)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		// Pages
		r.Get("/", s.handleHomePage)
		r.Get("/results", s.handleResultsPage)
		r.Post("/submit", s.handleSubmitForm)

		r.Route("/api", func(r chi.Router) {
			// Same-origin proxy for the identifier hinting service.
			r.Get("/input-hinting", s.handleInputHinting)
			r.Options("/input-hinting", s.handleInputHintingOptions)

			r.Get("/version", s.handleGetVersion)
			r.Get("/health", s.handleHealth)
			r.Get("/stats", s.handleGetStats)

			r.Post("/jobs", s.handleSubmitJob)
			r.Get("/results/view", s.handleGetResultsView)
			r.Route("/jobs/{key}", func(r chi.Router) {
				r.Get("/download", s.handleDownload)
				r.Get("/files", s.handleListFiles)
				r.Get("/logs", s.handleGetLogs)
				r.Get("/report", s.handleGetReport)
			})

			r.Route("/viewers/{containerID}", func(r chi.Router) {
				r.Post("/render", s.handleRenderViewer)
				r.Get("/", s.handleGetViewer)
				r.Delete("/", s.handleDisposeViewer)
			})

			r.Get("/admin/trackers", s.handleGetTrackers)
		})

		r.Get("/blobs/{id}", s.handleGetBlob)
	})

	webSubFS, err := fs.Sub(assets.WebFS, "web")
	if err != nil {
		s.app.Logger.Fatalf("Failed to create web sub-filesystem: %v", err)
	}
	staticFS, err := fs.Sub(webSubFS, "dist")
	if err != nil {
		s.app.Logger.Fatalf("Failed to create static sub-filesystem: %v", err)
	}
	FileServer(r, "/static/", http.FS(staticFS))

	return r
}

// FileServer conveniently sets up a static file server that doesn't list directories.
func FileServer(r chi.Router, path string, root http.FileSystem) {
	fs := http.StripPrefix(path, http.FileServer(root))
	r.Get(path+"*", func(w http.ResponseWriter, r *http.Request) {
		fs.ServeHTTP(w, r)
	})
}
