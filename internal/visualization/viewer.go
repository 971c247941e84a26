package visualization

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var (
	// ErrViewerUnavailable is returned when no viewer library is configured.
	ErrViewerUnavailable = errors.New("molecular viewer is not available")
	// ErrLoaderUnavailable is returned when the viewer cannot load MolViewSpec documents.
	ErrLoaderUnavailable = errors.New("molecular viewer cannot load view specifications")
	// ErrViewerDisposed is returned when a container is disposed while its
	// viewer is still being created.
	ErrViewerDisposed = errors.New("viewer container was disposed")
)

// ViewerOptions are the creation options passed to Mol*.
type ViewerOptions struct {
	LayoutIsExpanded     bool    `json:"layoutIsExpanded"`
	LayoutShowControls   bool    `json:"layoutShowControls"`
	ViewportShowControls bool    `json:"viewportShowControls"`
	CollapseLeftPanel    bool    `json:"collapseLeftPanel"`
	CollapseRightPanel   bool    `json:"collapseRightPanel"`
	DisableAntialiasing  bool    `json:"disableAntialiasing"`
	DisablePreservation  bool    `json:"disablePreservation"`
	PixelScale           float64 `json:"pixelScale"`
	AllowMajorUpdate     bool    `json:"allowMajorUpdate"`
}

// DefaultViewerOptions hides the large panels and keeps only the small
// viewport controls, which showUI toggles.
func DefaultViewerOptions(showUI bool) ViewerOptions {
	return ViewerOptions{
		ViewportShowControls: showUI,
		CollapseLeftPanel:    true,
		CollapseRightPanel:   true,
		PixelScale:           1,
		AllowMajorUpdate:     true,
	}
}

// Viewer is one viewer instance bound to a container.
type Viewer interface {
	Clear(ctx context.Context) error
	SetBackground(color string) error
	Dispose()
}

// SpecLoader is the optional MolViewSpec capability of a Viewer.
type SpecLoader interface {
	LoadSpec(ctx context.Context, spec *Spec) error
}

// Factory creates viewers.
type Factory interface {
	Create(ctx context.Context, containerID string, opts ViewerOptions) (Viewer, error)
}

// Publisher delivers messages to the browser page hosting a container.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// Topic is the websocket topic of a viewer container.
func Topic(containerID string) string { return "viewer:" + containerID }

// Message is sent to the browser to drive its Mol* instance.
type Message struct {
	Type       string         `json:"type"`
	Container  string         `json:"container"`
	Options    *ViewerOptions `json:"options,omitempty"`
	Background string         `json:"background,omitempty"`
	Spec       *Spec          `json:"spec,omitempty"`
	Format     string         `json:"format,omitempty"`
}

// SessionFactory creates viewers that forward every call to the browser
// over a websocket topic.
type SessionFactory struct {
	pub Publisher
}

// NewSessionFactory creates a factory publishing through pub.
func NewSessionFactory(pub Publisher) *SessionFactory {
	return &SessionFactory{pub: pub}
}

// Create implements Factory.
func (f *SessionFactory) Create(ctx context.Context, containerID string, opts ViewerOptions) (Viewer, error) {
	if f == nil || f.pub == nil {
		return nil, ErrViewerUnavailable
	}
	v := &sessionViewer{pub: f.pub, container: containerID, opts: opts}
	if err := v.send(Message{Type: "create", Options: &v.opts}); err != nil {
		return nil, err
	}
	return v, nil
}

type sessionViewer struct {
	pub       Publisher
	container string
	opts      ViewerOptions

	mu         sync.Mutex
	background string
	disposed   bool
}

func (v *sessionViewer) send(msg Message) error {
	msg.Container = v.container
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	v.pub.Publish(Topic(v.container), payload)
	return nil
}

func (v *sessionViewer) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return v.send(Message{Type: "clear"})
}

func (v *sessionViewer) SetBackground(color string) error {
	v.mu.Lock()
	v.background = color
	v.mu.Unlock()
	return v.send(Message{Type: "background", Background: color})
}

// LoadSpec carries the creation options and background along with the
// document so a page that subscribes late can still build the scene.
func (v *sessionViewer) LoadSpec(ctx context.Context, spec *Spec) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	bg := v.background
	v.mu.Unlock()
	return v.send(Message{Type: "load", Options: &v.opts, Background: bg, Spec: spec, Format: "mvsj"})
}

func (v *sessionViewer) Dispose() {
	v.mu.Lock()
	if v.disposed {
		v.mu.Unlock()
		return
	}
	v.disposed = true
	v.mu.Unlock()
	_ = v.send(Message{Type: "dispose"})
}
