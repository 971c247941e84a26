package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/archive"
	"github.com/sb-ncbr/proptimus-web/internal/results"
	"github.com/sb-ncbr/proptimus-web/internal/testutil"
	"github.com/sb-ncbr/proptimus-web/internal/visualization"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getView(t *testing.T, router http.Handler, key string) results.View {
	t.Helper()
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/results/view?query="+url.QueryEscape(key), nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var v results.View
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestSubmitJobAPI(t *testing.T) {
	server, _, backend := testutil.SetupTestServer(t)
	router := server.Router()

	rr := postForm(router, "/api/jobs", url.Values{"code": {"P01308"}, "ph": {"7.4"}})
	require.Equal(t, http.StatusAccepted, rr.Code)
	assert.JSONEq(t, `{"job_key":"P01308_7.4"}`, rr.Body.String())
	assert.Equal(t, 1, backend.Hits("submit"))

	rr = postForm(router, "/api/jobs", url.Values{"ph": {"7.4"}})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, backend.Hits("submit"))
}

func TestResultsView_FinishedJobReachesComparison(t *testing.T) {
	server, app, backend := testutil.SetupTestServer(t)
	router := server.Router()
	backend.SetProgress(
		`{"status":"running","percent_value":10}`,
		`{"status":"running","percent_value":55}`,
		`{"status":"finished","percent_value":100}`,
	)

	first := getView(t, router, "P01308_7.4")
	assert.Contains(t, []results.Kind{results.KindLoading, results.KindComparison}, first.Kind)

	var v results.View
	require.Eventually(t, func() bool {
		v = getView(t, router, "P01308_7.4")
		return v.Kind == results.KindComparison
	}, 2*time.Second, 10*time.Millisecond)

	assert.Equal(t, "P01308", v.Identifier)
	assert.Equal(t, "7.4", v.PH)
	assert.Equal(t, "https://alphafold.ebi.ac.uk/entry/P01308", v.EntryURL)
	assert.Equal(t, "/api/jobs/P01308_7.4/download", v.DownloadURL)
	assert.Equal(t, 3, backend.Hits("progress"))
	assert.Equal(t, 1, backend.Hits("original"))
	assert.Equal(t, 1, backend.Hits("optimised"))

	// The comparison is rendered into its container without a browser.
	require.Eventually(t, func() bool {
		w, ok := app.Viewers.Lookup(v.ContainerID)
		return ok && w.Status().State == visualization.StateSuccess
	}, 2*time.Second, 10*time.Millisecond)

	urls := app.Viewers.OwnedURLs(v.ContainerID)
	require.Len(t, urls, 2)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, urls[0], nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, []string{"HEADER original P01308_7.4", "data_optimised P01308_7.4"}, rr.Body.String())
}

func TestResultsView_FailedOptimization(t *testing.T) {
	server, _, backend := testutil.SetupTestServer(t)
	router := server.Router()
	backend.SetProgress(`{"status":"error","error":"force field diverged"}`)

	var v results.View
	require.Eventually(t, func() bool {
		v = getView(t, router, "P69905_7.0")
		return v.Kind == results.KindOptimizationFailed
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "force field diverged", v.Message)
	assert.Equal(t, 0, backend.Hits("original"))
	assert.Equal(t, 0, backend.Hits("optimised"))
}

func TestResultsView_MissingKey(t *testing.T) {
	server, _, backend := testutil.SetupTestServer(t)
	v := getView(t, server.Router(), "")
	assert.Equal(t, results.KindMissingJobKey, v.Kind)
	assert.Equal(t, 0, backend.Hits("progress"))
}

func TestJobArtifacts(t *testing.T) {
	server, _, backend := testutil.SetupTestServer(t)
	router := server.Router()

	t.Run("Download", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/P69905_7.0/download", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, `attachment; filename="optimized_structure_P69905_7.0.zip"`, rr.Header().Get("Content-Disposition"))
		assert.Equal(t, testutil.DefaultBundle(t), rr.Body.Bytes())

		// Every click fetches a fresh bundle.
		rr = httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/P69905_7.0/download", nil))
		assert.Equal(t, 2, backend.Hits("download"))
	})

	t.Run("Files", func(t *testing.T) {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/P69905_7.0/files", nil))
		require.Equal(t, http.StatusOK, rr.Code)
		var entries []archive.Entry
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &entries))
		require.Len(t, entries, 3)
		assert.Equal(t, "optimized.cif", entries[0].Name)
	})

	t.Run("Files of a non-archive bundle", func(t *testing.T) {
		backend.SetBundle([]byte("definitely not an archive"))
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/jobs/Q12345_7.0/files", nil))
		assert.Equal(t, http.StatusBadGateway, rr.Code)
	})

	t.Run("Logs, report and stats", func(t *testing.T) {
		cases := map[string]string{
			"/api/jobs/P69905_7.0/logs":   "residue log of P69905_7.0",
			"/api/jobs/P69905_7.0/report": "Results",
			"/api/stats":                  "Jobs computed: 42",
		}
		for path, want := range cases {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			assert.Equal(t, http.StatusOK, rr.Code, path)
			assert.Contains(t, rr.Body.String(), want, path)
		}
	})
}

func TestJobArtifactsDoNotStartTracking(t *testing.T) {
	server, app, backend := testutil.SetupTestServer(t)
	router := server.Router()

	for _, path := range []string{"/api/jobs/ANYTHING_1/logs", "/api/jobs/ANYTHING_1/download", "/api/jobs/ANYTHING_1/files"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rr.Code, path)
	}
	assert.Empty(t, app.Jobs.GetStatus())
	assert.Equal(t, 0, backend.Hits("progress"))
}

func TestVersionAndHealth(t *testing.T) {
	server, _, _ := testutil.SetupTestServer(t)
	router := server.Router()

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/version", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"version":"1.2.3","major":1,"minor":2,"patch":3}`, rr.Body.String())

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"status":"ok"`)
}
