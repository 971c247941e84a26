package api

import (
	"errors"
	"io"
	"net/http"
	"net/url"

	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/results"
)

const defaultPH = "7.0"

type pageData struct {
	Title         string
	AppName       string
	Version       string
	Error         string
	Code          string
	PH            string
	UploadLimitKB int64
	View          results.View
	JobSocket     string
}

func (s *Server) newPage(title string) pageData {
	return pageData{
		Title:         title,
		AppName:       s.app.Config.App.Name,
		Version:       s.app.Version,
		PH:            defaultPH,
		UploadLimitKB: s.app.Config.Upload.FileSizeLimitKB,
	}
}

func (s *Server) render(w http.ResponseWriter, code int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(code)
	if err := s.pages.ExecuteTemplate(w, name, data); err != nil {
		s.app.Logger.Errorw("failed to render page", "page", name, "error", err)
	}
}

func (s *Server) handleHomePage(w http.ResponseWriter, r *http.Request) {
	s.render(w, http.StatusOK, "home.html", s.newPage("Optimize"))
}

// handleResultsPage renders the view derived from the tracked job. The
// page then follows the job topic and refreshes itself.
func (s *Server) handleResultsPage(w http.ResponseWriter, r *http.Request) {
	key := models.JobKey(r.URL.Query().Get("query"))
	page := s.newPage("Results")

	var st jobs.State
	if !key.IsZero() {
		st = s.app.Jobs.Track(key).State()
		s.app.ShowComparison(st)
		page.JobSocket = "/ws/jobs/" + url.PathEscape(key.String())
	}
	page.View = results.Derive(key, st)
	s.render(w, http.StatusOK, "results.html", page)
}

// readSubmission collects the form fields of a submission. The optional
// file is limited to the configured upload size.
func (s *Server) readSubmission(w http.ResponseWriter, r *http.Request) (models.JobRequest, error) {
	limit := s.app.Config.UploadLimitBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	if err := r.ParseMultipartForm(limit); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return models.JobRequest{}, err
	}

	var (
		name string
		data []byte
	)
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		if header.Size > limit {
			return models.JobRequest{}, errFileTooLarge
		}
		name = header.Filename
		if data, err = io.ReadAll(file); err != nil {
			return models.JobRequest{}, err
		}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart):
	default:
		return models.JobRequest{}, err
	}
	return models.NewJobRequest(r.FormValue("code"), name, data, r.FormValue("ph")), nil
}

var errFileTooLarge = errors.New("structure file exceeds the upload limit")

// handleSubmitForm posts the landing page form and redirects to the
// results page of the new job.
func (s *Server) handleSubmitForm(w http.ResponseWriter, r *http.Request) {
	page := s.newPage("Optimize")
	req, err := s.readSubmission(w, r)
	if err != nil {
		page.Error = err.Error()
		s.render(w, http.StatusBadRequest, "home.html", page)
		return
	}
	page.Code = req.Input.Code
	if req.PH != "" {
		page.PH = req.PH
	}

	key, err := s.app.Submitter.Submit(r.Context(), req)
	switch {
	case errors.Is(err, models.ErrEmptySubmission):
		// Nothing to send; show the form again as it was.
		s.render(w, http.StatusOK, "home.html", page)
		return
	case err != nil:
		s.app.Logger.Warnw("submission failed", "error", err)
		page.Error = err.Error()
		code := http.StatusBadGateway
		if errors.Is(err, models.ErrAmbiguousInput) {
			code = http.StatusBadRequest
		}
		s.render(w, code, "home.html", page)
		return
	}
	s.app.Resubmitted(r.Context(), key)
	http.Redirect(w, r, "/results?query="+url.QueryEscape(key.String()), http.StatusSeeOther)
}
