package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/sb-ncbr/proptimus-web/internal/hinting"
	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/results"
	"github.com/sb-ncbr/proptimus-web/internal/visualization"
	"github.com/sb-ncbr/proptimus-web/internal/websocket"
)

// handleJobSocket subscribes to the updates of one job and makes sure it
// is being tracked.
func (s *Server) handleJobSocket(w http.ResponseWriter, r *http.Request) {
	key := jobKeyParam(r)
	if key.IsZero() {
		RespondWithError(w, http.StatusBadRequest, "Missing job key")
		return
	}
	s.app.Jobs.Track(key)
	s.app.WsHub.ServeWs(w, r, jobs.Topic(key))
}

// handleViewerSocket subscribes a page to the commands of one container. A
// comparison page names its job, so a container emptied by an earlier
// page is rendered again.
func (s *Server) handleViewerSocket(w http.ResponseWriter, r *http.Request) {
	containerID := chi.URLParam(r, "containerID")
	if key := models.JobKey(r.URL.Query().Get("job")); !key.IsZero() && results.ContainerID(key) == containerID {
		if t, ok := s.app.Jobs.Get(key); ok {
			s.app.ShowComparison(t.State())
		}
	}
	s.app.WsHub.ServeWs(w, r, visualization.Topic(containerID))
}

// handleHintSocket runs one debounced hinting session per connection.
// Each text frame is the current input value; hint lists come back as JSON.
func (s *Server) handleHintSocket(w http.ResponseWriter, r *http.Request) {
	topic := "hints:" + uuid.NewString()
	hub := s.app.WsHub
	session := s.app.Hinter.NewSession(context.Background(), s.app.Config.Hinting.Debounce,
		func(res hinting.Result) { hub.PublishJSON(topic, res) })

	hub.ServeSession(w, r, topic, websocket.Session{
		OnText: func(data []byte) { session.Update(string(data)) },
		OnClose: func() {
			session.Close()
			hub.Forget(topic)
		},
	})
}
