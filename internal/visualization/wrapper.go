package visualization

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
)

// State is the render state of a container.
type State int

const (
	StateLoading State = iota
	StateSuccess
	StateError
)

func (s State) String() string {
	switch s {
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	default:
		return "loading"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Status is a snapshot of a wrapper.
type Status struct {
	Container string    `json:"container"`
	State     State     `json:"state"`
	Error     string    `json:"error,omitempty"`
	Proteins  int       `json:"proteins"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Wrapper renders descriptor lists into one container. Each Render starts
// at Loading and ends in Success or Error; a newer Render supersedes older
// ones, whose completions are ignored.
type Wrapper struct {
	m         *Manager
	container string
	now       func() time.Time

	mu       sync.Mutex
	gen      uint64
	status   Status
	detached bool
}

func newWrapper(m *Manager, containerID string) *Wrapper {
	return &Wrapper{
		m:         m,
		container: containerID,
		now:       time.Now,
		status:    Status{Container: containerID, State: StateLoading, UpdatedAt: time.Now()},
	}
}

// Status returns the current state.
func (w *Wrapper) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Wrapper) begin(n int) uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gen++
	w.status = Status{Container: w.container, State: StateLoading, Proteins: n, UpdatedAt: w.now()}
	return w.gen
}

// finish records the outcome of generation gen unless it was superseded.
func (w *Wrapper) finish(gen uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.detached || gen != w.gen {
		return
	}
	w.status.UpdatedAt = w.now()
	if err != nil {
		w.status.State = StateError
		w.status.Error = err.Error()
		w.m.lg.Warnw("viewer render failed", "container", w.container, "error", err)
		return
	}
	w.status.State = StateSuccess
}

func (w *Wrapper) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.detached && gen == w.gen
}

// Render shows proteins in the container. An existing viewer is cleared
// and reused. An empty list leaves the container loading.
func (w *Wrapper) Render(ctx context.Context, proteins []models.Protein) Status {
	gen := w.begin(len(proteins))
	if len(proteins) == 0 {
		return w.Status()
	}
	err := w.render(ctx, gen, proteins)
	if !errors.Is(err, errSuperseded) {
		w.finish(gen, err)
	}
	return w.Status()
}

var errSuperseded = errors.New("render superseded")

func (w *Wrapper) render(ctx context.Context, gen uint64, proteins []models.Protein) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("viewer panicked: %v", r)
		}
	}()

	viewer, ok := w.m.Viewer(w.container)
	if ok {
		if err := viewer.Clear(ctx); err != nil {
			return fmt.Errorf("clear viewer: %w", err)
		}
	} else {
		viewer, err = w.m.Acquire(ctx, w.container)
		if err != nil {
			return err
		}
	}
	if !w.current(gen) {
		return errSuperseded
	}

	if bg := w.m.settings.Background; bg != "" {
		if err := viewer.SetBackground(bg); err != nil {
			return fmt.Errorf("set background: %w", err)
		}
	}

	loader, ok := viewer.(SpecLoader)
	if !ok {
		return ErrLoaderUnavailable
	}
	spec, err := BuildSpec(proteins, w.m.Resolver(w.container), w.now())
	if err != nil {
		return fmt.Errorf("build view specification: %w", err)
	}
	if err := loader.LoadSpec(ctx, spec); err != nil {
		return fmt.Errorf("load view specification: %w", err)
	}
	return nil
}

func (w *Wrapper) detach() {
	w.mu.Lock()
	w.detached = true
	w.mu.Unlock()
}

// Close unmounts the container through the manager.
func (w *Wrapper) Close() {
	w.m.Dispose(w.container)
}
