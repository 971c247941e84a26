package api

import (
	"net/http"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// handleGetVersion reports the running version, split into its parts when
// it is valid semver.
func (s *Server) handleGetVersion(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{"version": s.app.Version}
	if v, err := semver.NewVersion(strings.TrimPrefix(s.app.Version, "v")); err == nil {
		resp["major"] = v.Major()
		resp["minor"] = v.Minor()
		resp["patch"] = v.Patch()
		if pre := v.Prerelease(); pre != "" {
			resp["prerelease"] = pre
		}
	}
	RespondWithJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"trackers": len(s.app.Jobs.GetStatus()),
		"clients":  s.app.WsHub.ClientCount(),
	})
}
