package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/visualization"
)

// handleRenderViewer renders a descriptor list into a container. The call
// returns once the container reached success or error.
func (s *Server) handleRenderViewer(w http.ResponseWriter, r *http.Request) {
	containerID := chi.URLParam(r, "containerID")
	var proteins []models.Protein
	if err := json.NewDecoder(r.Body).Decode(&proteins); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	status := s.app.Viewers.Wrapper(containerID).Render(r.Context(), proteins)
	RespondWithJSON(w, http.StatusOK, status)
}

func (s *Server) handleGetViewer(w http.ResponseWriter, r *http.Request) {
	wrapper, ok := s.app.Viewers.Lookup(chi.URLParam(r, "containerID"))
	if !ok {
		RespondWithError(w, http.StatusNotFound, "Viewer not found")
		return
	}
	RespondWithJSON(w, http.StatusOK, wrapper.Status())
}

// handleDisposeViewer unmounts a container: its viewer is disposed and the
// object URLs it created are revoked.
func (s *Server) handleDisposeViewer(w http.ResponseWriter, r *http.Request) {
	containerID := chi.URLParam(r, "containerID")
	if wrapper, ok := s.app.Viewers.Lookup(containerID); ok {
		wrapper.Close()
	} else {
		s.app.Viewers.Dispose(containerID)
	}
	s.app.ForgetViewer(containerID)
	s.app.WsHub.Forget(visualization.Topic(containerID))
	w.WriteHeader(http.StatusNoContent)
}

// handleGetBlob serves the contents behind an object URL.
func (s *Server) handleGetBlob(w http.ResponseWriter, r *http.Request) {
	blob, ok := s.app.Viewers.ObjectURLs().Get(chi.URLParam(r, "id"))
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", blob.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(blob.Data)))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(blob.Data)
}
