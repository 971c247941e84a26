package api

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sb-ncbr/proptimus-web/internal/archive"
	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
	"github.com/sb-ncbr/proptimus-web/internal/results"
)

func jobKeyParam(r *http.Request) models.JobKey {
	raw := chi.URLParam(r, "key")
	if key, err := url.PathUnescape(raw); err == nil {
		return models.JobKey(key)
	}
	return models.JobKey(raw)
}

// backendStatus maps a backend failure to the status returned to the browser.
func backendStatus(err error) int {
	var se *proptimus.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return http.StatusNotFound
	}
	return http.StatusBadGateway
}

// handleSubmitJob is the scripted counterpart of the landing page form.
func (s *Server) handleSubmitJob(w http.ResponseWriter, r *http.Request) {
	req, err := s.readSubmission(w, r)
	if err != nil {
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	key, err := s.app.Submitter.Submit(r.Context(), req)
	switch {
	case errors.Is(err, models.ErrEmptySubmission), errors.Is(err, models.ErrAmbiguousInput):
		RespondWithError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		s.app.Logger.Warnw("submission failed", "error", err)
		RespondWithError(w, backendStatus(err), err.Error())
		return
	}
	s.app.Resubmitted(r.Context(), key)
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"job_key": key.String()})
}

func (s *Server) handleGetResultsView(w http.ResponseWriter, r *http.Request) {
	key := models.JobKey(r.URL.Query().Get("query"))
	var st jobs.State
	if !key.IsZero() {
		st = s.app.Jobs.Track(key).State()
		s.app.ShowComparison(st)
	}
	RespondWithJSON(w, http.StatusOK, results.Derive(key, st))
}

// handleDownload fetches the result bundle on demand.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	key := jobKeyParam(r)
	data, err := s.app.Jobs.Artifacts(key).Download.Refetch(r.Context())
	if err != nil {
		s.app.Logger.Warnw("download failed", "job_key", key, "error", err)
		RespondWithError(w, backendStatus(err), "Failed to download files")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", `attachment; filename="`+results.DownloadName(key)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleListFiles lists the entries of the result bundle.
func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	key := jobKeyParam(r)
	download := s.app.Jobs.Artifacts(key).Download
	data, ok := download.Cached(r.Context())
	if !ok {
		var err error
		if data, err = download.Refetch(r.Context()); err != nil {
			RespondWithError(w, backendStatus(err), "Failed to download files")
			return
		}
	}
	entries, err := archive.List(r.Context(), results.DownloadName(key), data)
	if err != nil {
		// The bundle comes from the backend, so an unreadable one is its fault.
		s.app.Logger.Warnw("unreadable result bundle", "job_key", key, "error", err)
		RespondWithError(w, http.StatusBadGateway, "Result bundle is not a readable archive")
		return
	}
	RespondWithJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	key := jobKeyParam(r)
	logs, _, err := s.app.Jobs.Artifacts(key).Logs.Get(r.Context())
	if err != nil {
		RespondWithError(w, backendStatus(err), "Failed to load residue logs")
		return
	}
	RespondWithText(w, http.StatusOK, logs)
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.app.API.Results(r.Context(), jobKeyParam(r))
	if err != nil {
		RespondWithError(w, backendStatus(err), "Failed to load results")
		return
	}
	RespondWithText(w, http.StatusOK, report)
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.app.API.ResultsStats(r.Context())
	if err != nil {
		RespondWithError(w, backendStatus(err), "Failed to load statistics")
		return
	}
	RespondWithText(w, http.StatusOK, stats)
}

func (s *Server) handleGetTrackers(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Jobs.GetStatus())
}
