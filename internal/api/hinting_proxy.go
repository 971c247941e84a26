package api

import (
	"errors"
	"net/http"

	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
)

func setHintingCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept")
}

// handleInputHinting forwards ?value= to the hinting service. Upstream
// error statuses are passed through; every other failure is a 500.
func (s *Server) handleInputHinting(w http.ResponseWriter, r *http.Request) {
	value := r.URL.Query().Get("value")
	if value == "" {
		RespondWithError(w, http.StatusBadRequest, "Value parameter is required")
		return
	}

	hints, err := s.app.Hinter.Forward(r.Context(), value)
	if err != nil {
		var se *proptimus.StatusError
		if errors.As(err, &se) {
			RespondWithError(w, se.Code, "External API error: "+se.Status)
			return
		}
		s.app.Logger.Errorw("Error proxying input hinting request", "value", value, "error", err)
		RespondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	setHintingCORS(w)
	RespondWithJSON(w, http.StatusOK, hints)
}

func (s *Server) handleInputHintingOptions(w http.ResponseWriter, r *http.Request) {
	setHintingCORS(w)
	w.WriteHeader(http.StatusOK)
}
