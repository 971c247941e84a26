// Package visualization builds MolViewSpec scenes for protein descriptors
// and manages the viewer instances that display them, one per container.
package visualization

import (
	"context"
	"sort"
	"sync"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"go.uber.org/zap"
)

type initCall struct {
	done     chan struct{}
	viewer   Viewer
	err      error
	disposed bool
}

// Manager is the registry of viewers. It is created once at startup and
// owns every viewer and every object URL it hands out, keyed by container.
type Manager struct {
	factory  Factory
	urls     *ObjectURLStore
	settings Settings
	lg       *zap.SugaredLogger

	mu       sync.Mutex
	viewers  map[string]Viewer
	pending  map[string]*initCall
	owned    map[string][]string
	wrappers map[string]*Wrapper
}

// Settings are applied to every viewer the manager creates.
type Settings struct {
	Background string
	ShowUI     bool
}

// NewManager creates a Manager. A nil factory makes every render fail with
// ErrViewerUnavailable.
func NewManager(factory Factory, urls *ObjectURLStore, settings Settings, lg *zap.SugaredLogger) *Manager {
	if urls == nil {
		urls = NewObjectURLStore("/blobs/")
	}
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Manager{
		factory:  factory,
		urls:     urls,
		settings: settings,
		lg:       lg,
		viewers:  make(map[string]Viewer),
		pending:  make(map[string]*initCall),
		owned:    make(map[string][]string),
		wrappers: make(map[string]*Wrapper),
	}
}

// ObjectURLs returns the store backing upload URLs.
func (m *Manager) ObjectURLs() *ObjectURLStore { return m.urls }

// Viewer returns the existing viewer of a container.
func (m *Manager) Viewer(containerID string) (Viewer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.viewers[containerID]
	return v, ok
}

// Acquire returns the container's viewer, creating it on first use.
// Concurrent callers for one container share a single creation.
func (m *Manager) Acquire(ctx context.Context, containerID string) (Viewer, error) {
	m.mu.Lock()
	if v, ok := m.viewers[containerID]; ok {
		m.mu.Unlock()
		return v, nil
	}
	if call, ok := m.pending[containerID]; ok {
		m.mu.Unlock()
		select {
		case <-call.done:
			return call.viewer, call.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.factory == nil {
		m.mu.Unlock()
		return nil, ErrViewerUnavailable
	}
	call := &initCall{done: make(chan struct{})}
	m.pending[containerID] = call
	m.mu.Unlock()

	call.viewer, call.err = m.factory.Create(ctx, containerID, DefaultViewerOptions(m.settings.ShowUI))

	m.mu.Lock()
	delete(m.pending, containerID)
	var orphan Viewer
	switch {
	case call.err != nil:
	case call.disposed:
		orphan, call.viewer, call.err = call.viewer, nil, ErrViewerDisposed
	default:
		m.viewers[containerID] = call.viewer
		m.lg.Debugw("viewer created", "container", containerID)
	}
	m.mu.Unlock()
	if orphan != nil {
		orphan.Dispose()
		m.lg.Debugw("viewer disposed before creation finished", "container", containerID)
	}
	close(call.done)
	return call.viewer, call.err
}

// CreateObjectURL stores data and ties the URL to containerID.
func (m *Manager) CreateObjectURL(containerID, name string, data []byte) string {
	url := m.urls.Create(data, name)
	m.mu.Lock()
	m.owned[containerID] = append(m.owned[containerID], url)
	m.mu.Unlock()
	return url
}

// OwnedURLs lists the object URLs created for a container.
func (m *Manager) OwnedURLs(containerID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.owned[containerID]...)
}

// Resolver returns the structure resolver for one container: accessions map
// to public archive files, uploads become object URLs owned by the container.
func (m *Manager) Resolver(containerID string) Resolver {
	return func(p models.Protein) (string, error) {
		if p.Source.Kind == models.SourceUpload {
			return m.CreateObjectURL(containerID, p.Source.Name, p.Source.Data), nil
		}
		return StructureURL(p.Source)
	}
}

// Wrapper returns the container's render wrapper, creating it on first use.
func (m *Manager) Wrapper(containerID string) *Wrapper {
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.wrappers[containerID]; ok {
		return w
	}
	w := newWrapper(m, containerID)
	m.wrappers[containerID] = w
	return w
}

// Lookup returns an existing wrapper.
func (m *Manager) Lookup(containerID string) (*Wrapper, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.wrappers[containerID]
	return w, ok
}

// Containers lists containers with a live viewer or wrapper.
func (m *Manager) Containers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for id := range m.viewers {
		seen[id] = true
	}
	for id := range m.wrappers {
		seen[id] = true
	}
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Dispose tears down a container: its viewer is disposed and forgotten and
// every object URL created for it, and only for it, is revoked.
func (m *Manager) Dispose(containerID string) {
	m.mu.Lock()
	if call, ok := m.pending[containerID]; ok {
		call.disposed = true
	}
	v, hasViewer := m.viewers[containerID]
	delete(m.viewers, containerID)
	urls := m.owned[containerID]
	delete(m.owned, containerID)
	w, hasWrapper := m.wrappers[containerID]
	delete(m.wrappers, containerID)
	m.mu.Unlock()

	if hasWrapper {
		w.detach()
	}
	if hasViewer {
		v.Dispose()
	}
	for _, url := range urls {
		if !m.urls.Revoke(url) {
			m.lg.Warnw("object URL already revoked", "url", url)
		}
	}
	m.lg.Debugw("viewer disposed", "container", containerID, "revoked", len(urls))
}

// Close disposes every container.
func (m *Manager) Close() {
	for _, id := range m.Containers() {
		m.Dispose(id)
	}
}
