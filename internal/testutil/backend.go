package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Backend is a scripted stand-in for the compute backend and the hinting
// service. It counts requests per route.
type Backend struct {
	URL string

	mu         sync.Mutex
	hits       map[string]int
	progress   []string
	submitBody string
	hintStatus int
	hints      []string
	bundle     []byte
}

// DefaultBundle is the zip served by /download_files.
func DefaultBundle(t *testing.T) []byte {
	return CreateTestZip(t, map[string]string{
		"optimized.cif": "data_optimized",
		"original.pdb":  "HEADER original",
		"residues.log":  "residue 1 ok",
	})
}

// NewBackend starts a backend reporting a finished job.
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		hits:     make(map[string]int),
		progress: []string{`{"status":"finished","percent_value":100,"percent_text":"Done"}`},
		hints:    []string{"P69905", "P69892", "P01308"},
		bundle:   DefaultBundle(t),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		b.hit("submit")
		b.mu.Lock()
		body := b.submitBody
		b.mu.Unlock()
		if body == "" {
			body = "<html><body>queued</body></html>"
		}
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("GET /api/running_progress", func(w http.ResponseWriter, r *http.Request) {
		n := b.hit("progress")
		b.mu.Lock()
		body := b.progress[min(n-1, len(b.progress)-1)]
		b.mu.Unlock()
		fmt.Fprint(w, body)
	})
	mux.HandleFunc("GET /original_structure/{key}", func(w http.ResponseWriter, r *http.Request) {
		b.hit("original")
		fmt.Fprintf(w, "HEADER original %s", r.PathValue("key"))
	})
	mux.HandleFunc("GET /optimised_structure/{key}", func(w http.ResponseWriter, r *http.Request) {
		b.hit("optimised")
		fmt.Fprintf(w, "data_optimised %s", r.PathValue("key"))
	})
	mux.HandleFunc("GET /download_files", func(w http.ResponseWriter, r *http.Request) {
		b.hit("download")
		b.mu.Lock()
		bundle := b.bundle
		b.mu.Unlock()
		w.Header().Set("Content-Type", "application/zip")
		w.Write(bundle)
	})
	mux.HandleFunc("GET /residues_logs/{key}", func(w http.ResponseWriter, r *http.Request) {
		b.hit("logs")
		fmt.Fprintf(w, "residue log of %s", r.PathValue("key"))
	})
	mux.HandleFunc("GET /results", func(w http.ResponseWriter, r *http.Request) {
		if id := r.URL.Query().Get("ID"); id != "" {
			b.hit("report")
			fmt.Fprintf(w, "<html><body><h1>Results</h1><p>%s</p></body></html>", id)
			return
		}
		b.hit("stats")
		fmt.Fprint(w, "<html><body><p>Jobs computed: 42</p></body></html>")
	})
	mux.HandleFunc("GET /api/input-hinting", func(w http.ResponseWriter, r *http.Request) {
		b.hit("hints")
		b.mu.Lock()
		status, all := b.hintStatus, b.hints
		b.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		value := r.URL.Query().Get("value")
		matched := []string{}
		for _, h := range all {
			if strings.HasPrefix(h, value) {
				matched = append(matched, h)
			}
		}
		json.NewEncoder(w).Encode(matched)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	b.URL = server.URL
	return b
}

func (b *Backend) hit(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[route]++
	return b.hits[route]
}

// Hits reports how many requests a route received.
func (b *Backend) Hits(route string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[route]
}

// SetProgress scripts the progress responses; the last one repeats.
func (b *Backend) SetProgress(bodies ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.progress = bodies
}

// SetSubmitBody sets the raw response to submissions.
func (b *Backend) SetSubmitBody(body string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.submitBody = body
}

// FailHints makes the hinting service answer with status.
func (b *Backend) FailHints(status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hintStatus = status
}

// SetBundle replaces the downloadable result bundle.
func (b *Backend) SetBundle(data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bundle = data
}
