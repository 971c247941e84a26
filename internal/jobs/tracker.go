package jobs

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"go.uber.org/zap"
)

// Publisher pushes serialized state to browser subscribers of a topic.
type Publisher interface {
	Publish(topic string, payload []byte)
}

// State is everything the results view needs to know about one job.
type State struct {
	Key               models.JobKey            `json:"job_key"`
	Progress          *models.ProgressSnapshot `json:"progress,omitempty"`
	ProgressError     string                   `json:"progress_error,omitempty"`
	StructuresEnabled bool                     `json:"structures_enabled"`
	Original          *models.Structure        `json:"-"`
	OriginalError     string                   `json:"original_error,omitempty"`
	Optimised         *models.Structure        `json:"-"`
	OptimisedError    string                   `json:"optimised_error,omitempty"`
	Done              bool                     `json:"done"`
	UpdatedAt         time.Time                `json:"updated_at"`
}

// ProgressLoading reports that no snapshot or error has arrived yet.
func (s State) ProgressLoading() bool {
	return s.Progress == nil && s.ProgressError == ""
}

// StructuresLoading reports that the structure fetches are enabled but unresolved.
func (s State) StructuresLoading() bool {
	if !s.StructuresEnabled {
		return false
	}
	return (s.Original == nil && s.OriginalError == "") || (s.Optimised == nil && s.OptimisedError == "")
}

// Topic is the websocket topic carrying updates for key.
func Topic(key models.JobKey) string { return "job:" + key.String() }

// Tracker follows one job: it polls progress until a terminal status and
// then enables the original and optimised structure fetches. Updates that
// arrive after Stop are discarded.
type Tracker struct {
	key       models.JobKey
	poller    *Poller
	artifacts *Artifacts
	pub       Publisher
	listener  func(State)
	lg        *zap.SugaredLogger

	mu        sync.Mutex
	state     State
	watchedAt time.Time
	stopped   bool
	cancel    context.CancelFunc
	done      chan struct{}
}

func newTracker(key models.JobKey, poller *Poller, artifacts *Artifacts, pub Publisher, listener func(State), lg *zap.SugaredLogger) *Tracker {
	return &Tracker{
		key:       key,
		poller:    poller,
		artifacts: artifacts,
		pub:       pub,
		listener:  listener,
		lg:        lg.With("job_key", key),
		state:     State{Key: key, UpdatedAt: time.Now()},
		watchedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Key returns the tracked job key.
func (t *Tracker) Key() models.JobKey { return t.key }

// Artifacts exposes the job's fetchers, e.g. for on-demand downloads.
func (t *Tracker) Artifacts() *Artifacts { return t.artifacts }

// State returns a copy of the current state.
func (t *Tracker) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) touch(now time.Time) {
	t.mu.Lock()
	if now.After(t.watchedAt) {
		t.watchedAt = now
	}
	t.mu.Unlock()
}

func (t *Tracker) lastWatched() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.watchedAt
}

// Done is closed once the tracker has nothing left to fetch.
func (t *Tracker) Done() <-chan struct{} { return t.done }

func (t *Tracker) start(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()
	go t.run(ctx)
}

// Stop cancels in-flight work. Late responses are ignored.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.stopped = true
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

func (t *Tracker) update(fn func(s *State)) {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	fn(&t.state)
	t.state.UpdatedAt = time.Now()
	snapshot := t.state
	t.mu.Unlock()

	if t.pub != nil {
		if payload, err := json.Marshal(snapshot); err == nil {
			t.pub.Publish(Topic(t.key), payload)
		}
	}
	if t.listener != nil {
		t.listener(snapshot)
	}
}

func (t *Tracker) run(ctx context.Context) {
	defer close(t.done)
	defer t.update(func(s *State) { s.Done = true })

	final, err := t.poller.Poll(ctx, t.key, func(snap models.ProgressSnapshot) {
		t.update(func(s *State) { s.Progress = &snap })
	})
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		t.lg.Warnw("progress polling failed", "error", err)
		t.update(func(s *State) { s.ProgressError = err.Error() })
		return
	}
	if final.Status != models.StatusFinished {
		t.lg.Infow("optimization reported an error", "message", final.Message)
		return
	}

	t.artifacts.Original.SetEnabled(true)
	t.artifacts.Optimised.SetEnabled(true)
	t.update(func(s *State) { s.StructuresEnabled = true })

	// The two structures are independent; fetch them side by side.
	var wg sync.WaitGroup
	fetch := func(a *Artifact[models.Structure], set func(s *State, v *models.Structure, err error)) {
		defer wg.Done()
		v, _, err := a.Get(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			t.lg.Warnw("structure fetch failed", "error", err)
		}
		t.update(func(s *State) { set(s, &v, err) })
	}
	wg.Add(2)
	go fetch(t.artifacts.Original, func(s *State, v *models.Structure, err error) {
		if err != nil {
			s.OriginalError = err.Error()
			return
		}
		s.Original = v
	})
	go fetch(t.artifacts.Optimised, func(s *State, v *models.Structure, err error) {
		if err != nil {
			s.OptimisedError = err.Error()
			return
		}
		s.Optimised = v
	})
	wg.Wait()
}
