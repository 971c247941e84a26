package visualization

import (
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Blob is the content behind a transient object URL.
type Blob struct {
	Name        string
	ContentType string
	Data        []byte
	CreatedAt   time.Time
}

// ObjectURLStore hands out short-lived URLs for uploaded structure files so
// the browser viewer can download them like any remote file.
type ObjectURLStore struct {
	prefix string

	mu    sync.RWMutex
	blobs map[string]Blob
}

// NewObjectURLStore creates a store whose URLs start with prefix, e.g. "/blobs/".
func NewObjectURLStore(prefix string) *ObjectURLStore {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectURLStore{prefix: prefix, blobs: make(map[string]Blob)}
}

func contentType(name string) string {
	if strings.EqualFold(path.Ext(name), ".pdb") {
		return "chemical/x-pdb"
	}
	return "chemical/x-cif"
}

// Create stores data and returns its URL.
func (s *ObjectURLStore) Create(data []byte, name string) string {
	id := uuid.NewString()
	s.mu.Lock()
	s.blobs[id] = Blob{Name: name, ContentType: contentType(name), Data: data, CreatedAt: time.Now()}
	s.mu.Unlock()
	return s.prefix + id
}

func (s *ObjectURLStore) id(url string) string {
	return strings.TrimPrefix(url, s.prefix)
}

// Get returns the blob for a URL or a bare id.
func (s *ObjectURLStore) Get(url string) (Blob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[s.id(url)]
	return b, ok
}

// Revoke releases a URL. It reports false when the URL was already revoked.
func (s *ObjectURLStore) Revoke(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.id(url)
	if _, ok := s.blobs[id]; !ok {
		return false
	}
	delete(s.blobs, id)
	return true
}

// Len is the number of live URLs.
func (s *ObjectURLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
