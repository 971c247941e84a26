package visualization

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

type fakeViewer struct {
	mu         sync.Mutex
	clears     int
	disposed   int
	background string
	specs      []*Spec
	loadErr    error
	panicOn    bool
}

func (v *fakeViewer) Clear(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clears++
	return nil
}

func (v *fakeViewer) SetBackground(color string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.background = color
	return nil
}

func (v *fakeViewer) Dispose() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.disposed++
}

func (v *fakeViewer) LoadSpec(ctx context.Context, spec *Spec) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.panicOn {
		panic("webgl context lost")
	}
	v.specs = append(v.specs, spec)
	return v.loadErr
}

func (v *fakeViewer) loaded() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.specs)
}

// plainViewer lacks the MolViewSpec capability.
type plainViewer struct{}

func (plainViewer) Clear(ctx context.Context) error  { return nil }
func (plainViewer) SetBackground(color string) error { return nil }
func (plainViewer) Dispose()                         {}

type fakeFactory struct {
	created int32
	delay   time.Duration
	err     error
	plain   bool

	mu      sync.Mutex
	viewers map[string]*fakeViewer
}

func newFakeFactory() *fakeFactory {
	return &fakeFactory{viewers: make(map[string]*fakeViewer)}
}

func (f *fakeFactory) Create(ctx context.Context, containerID string, opts ViewerOptions) (Viewer, error) {
	atomic.AddInt32(&f.created, 1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.plain {
		return &plainViewer{}, nil
	}
	v := &fakeViewer{}
	f.mu.Lock()
	f.viewers[containerID] = v
	f.mu.Unlock()
	return v, nil
}

func (f *fakeFactory) viewer(containerID string) *fakeViewer {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.viewers[containerID]
}

var errFactory = errors.New("molstar failed to start")

type recordingPublisher struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func (p *recordingPublisher) Publish(topic string, payload []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.messages == nil {
		p.messages = make(map[string][][]byte)
	}
	p.messages[topic] = append(p.messages[topic], payload)
}

func (p *recordingPublisher) on(topic string) [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.messages[topic]
}
