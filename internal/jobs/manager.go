package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
	"github.com/sb-ncbr/proptimus-web/internal/query"
	"go.uber.org/zap"
)

// TrackerStatus is the admin-facing summary of one tracked job.
type TrackerStatus struct {
	Key       models.JobKey         `json:"job_key"`
	Status    models.ProgressStatus `json:"status"`
	Percent   float64               `json:"percent"`
	Done      bool                  `json:"done"`
	UpdatedAt time.Time             `json:"updated_at"`
}

// topicForgetter is implemented by publishers that retain messages.
type topicForgetter interface {
	Forget(topic string)
}

// Watchers reports how many pages currently follow a topic.
type Watchers interface {
	Subscribers(topic string) int
}

// Options configure a Manager.
type Options struct {
	PollInterval time.Duration
	TTL          time.Duration
	Publisher    Publisher
	// Listener is called with every state change of every tracker.
	Listener func(State)
	// Watchers and IdleTimeout bound unfinished trackers: one whose topic
	// had no subscriber for IdleTimeout is stopped by Sweep. A zero
	// IdleTimeout keeps unfinished trackers until they finish.
	Watchers    Watchers
	IdleTimeout time.Duration
}

// Manager owns one Tracker per job key.
type Manager struct {
	api    proptimus.API
	qc     *query.Client
	poller *Poller
	opts   Options
	lg     *zap.SugaredLogger

	mu       sync.Mutex
	trackers map[models.JobKey]*Tracker
	root     context.Context
	cancel   context.CancelFunc
}

// NewManager creates a Manager.
func NewManager(api proptimus.API, qc *query.Client, opts Options, lg *zap.SugaredLogger) *Manager {
	root, cancel := context.WithCancel(context.Background())
	return &Manager{
		api:      api,
		qc:       qc,
		poller:   NewPoller(api, qc, opts.PollInterval),
		opts:     opts,
		lg:       lg,
		trackers: make(map[models.JobKey]*Tracker),
		root:     root,
		cancel:   cancel,
	}
}

// SetListener replaces the state-change listener for trackers created afterwards.
func (m *Manager) SetListener(fn func(State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opts.Listener = fn
}

// Track returns the tracker for key, starting one if needed.
func (m *Manager) Track(key models.JobKey) *Tracker {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.trackers[key]; ok {
		t.touch(time.Now())
		return t
	}
	return m.startLocked(key)
}

func (m *Manager) startLocked(key models.JobKey) *Tracker {
	t := newTracker(key, m.poller, NewArtifacts(m.qc, m.api, key), m.opts.Publisher, m.opts.Listener, m.lg)
	m.trackers[key] = t
	m.lg.Infow("tracking job", "job_key", key)
	t.start(m.root)
	return t
}

// Restart tracks key afresh after it was submitted again. A tracker that
// is still polling is kept. A finished one is replaced, and the cached
// progress and artifacts of key are dropped so the new tracker asks the
// backend again.
func (m *Manager) Restart(ctx context.Context, key models.JobKey) *Tracker {
	m.mu.Lock()
	old, ok := m.trackers[key]
	if ok && !old.State().Done {
		old.touch(time.Now())
		m.mu.Unlock()
		return old
	}
	m.mu.Unlock()

	if err := m.qc.Invalidate(ctx, progressKey(key)); err != nil {
		m.lg.Warnw("failed to drop cached progress", "job_key", key, "error", err)
	}
	NewArtifacts(m.qc, m.api, key).invalidate(ctx)
	if forgetter, isForgetter := m.opts.Publisher.(topicForgetter); isForgetter {
		forgetter.Forget(Topic(key))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, exists := m.trackers[key]; exists {
		if cur != old {
			// Someone else restarted it meanwhile.
			return cur
		}
		cur.Stop()
		delete(m.trackers, key)
	}
	m.lg.Infow("restarting job tracker", "job_key", key)
	return m.startLocked(key)
}

// Artifacts returns the fetchers of key without starting a tracker.
func (m *Manager) Artifacts(key models.JobKey) *Artifacts {
	if t, ok := m.Get(key); ok {
		return t.Artifacts()
	}
	return NewArtifacts(m.qc, m.api, key)
}

// Get returns an existing tracker.
func (m *Manager) Get(key models.JobKey) (*Tracker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.trackers[key]
	return t, ok
}

// Stop cancels and forgets the tracker for key.
func (m *Manager) Stop(key models.JobKey) {
	m.mu.Lock()
	t, ok := m.trackers[key]
	delete(m.trackers, key)
	m.mu.Unlock()
	if ok {
		t.Stop()
	}
}

// GetStatus lists all tracked jobs ordered by key.
func (m *Manager) GetStatus() []*TrackerStatus {
	m.mu.Lock()
	trackers := make([]*Tracker, 0, len(m.trackers))
	for _, t := range m.trackers {
		trackers = append(trackers, t)
	}
	m.mu.Unlock()

	statuses := make([]*TrackerStatus, 0, len(trackers))
	for _, t := range trackers {
		st := t.State()
		s := &TrackerStatus{Key: st.Key, Done: st.Done, UpdatedAt: st.UpdatedAt}
		if st.Progress != nil {
			s.Status = st.Progress.Status
			s.Percent = st.Progress.Percent
		}
		statuses = append(statuses, s)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key < statuses[j].Key })
	return statuses
}

// Sweep forgets trackers that finished more than TTL before now, and
// unfinished ones nobody watched for IdleTimeout. It returns how many
// were removed.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var expired []*Tracker
	for key, t := range m.trackers {
		st := t.State()
		var stale bool
		if st.Done {
			stale = m.opts.TTL > 0 && now.Sub(st.UpdatedAt) > m.opts.TTL
		} else {
			stale = m.idle(t, now)
		}
		if stale {
			expired = append(expired, t)
			delete(m.trackers, key)
		}
	}
	m.mu.Unlock()

	forgetter, _ := m.opts.Publisher.(topicForgetter)
	for _, t := range expired {
		t.Stop()
		if forgetter != nil {
			forgetter.Forget(Topic(t.Key()))
		}
		m.lg.Debugw("swept job tracker", "job_key", t.Key())
	}
	return len(expired)
}

func (m *Manager) idle(t *Tracker, now time.Time) bool {
	if m.opts.IdleTimeout <= 0 {
		return false
	}
	if m.opts.Watchers != nil && m.opts.Watchers.Subscribers(Topic(t.Key())) > 0 {
		t.touch(now)
		return false
	}
	return now.Sub(t.lastWatched()) > m.opts.IdleTimeout
}

// Close stops every tracker.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, t := range m.trackers {
		t.Stop()
		delete(m.trackers, key)
	}
}
