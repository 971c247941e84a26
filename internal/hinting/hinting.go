// Package hinting serves identifier autocomplete suggestions. Lookups are
// cached per value, and interactive sessions debounce keystrokes so only the
// value the user settled on reaches the hinting service.
package hinting

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/query"
	"go.uber.org/zap"
)

const (
	// DefaultDebounce is the quiet period after the last keystroke.
	DefaultDebounce = 300 * time.Millisecond
	// DefaultStaleTime is how long a hint list is served from the cache.
	DefaultStaleTime = 5 * time.Minute
)

// Source is the upstream lookup.
type Source interface {
	InputHints(ctx context.Context, value string) ([]string, error)
}

// Hinter performs cached hint lookups.
type Hinter struct {
	src       Source
	qc        *query.Client
	staleTime time.Duration
	lg        *zap.SugaredLogger
}

// NewHinter creates a Hinter. A non-positive staleTime selects DefaultStaleTime.
func NewHinter(src Source, qc *query.Client, staleTime time.Duration, lg *zap.SugaredLogger) *Hinter {
	if staleTime <= 0 {
		staleTime = DefaultStaleTime
	}
	return &Hinter{src: src, qc: qc, staleTime: staleTime, lg: lg}
}

// Lookup returns hints for value. A blank value yields an empty list
// without any request.
func (h *Hinter) Lookup(ctx context.Context, value string) ([]string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}, nil
	}
	return h.Forward(ctx, value)
}

// Forward asks the hinting service about value exactly as given. Results
// share the cache with Lookup.
func (h *Hinter) Forward(ctx context.Context, value string) ([]string, error) {
	hints, err := query.Fetch(ctx, h.qc, query.Key{"input-hinting", value}, query.Options{StaleTime: h.staleTime},
		func(ctx context.Context) ([]string, error) {
			return h.src.InputHints(ctx, value)
		})
	if err != nil {
		return nil, err
	}
	if hints == nil {
		hints = []string{}
	}
	return hints, nil
}

// Result is one delivered hint list.
type Result struct {
	Value string   `json:"value"`
	Hints []string `json:"hints"`
	Error string   `json:"error,omitempty"`
}

// Session debounces the text of one input box. Only the latest debounced
// value is ever delivered; results for superseded values are dropped.
type Session struct {
	h        *Hinter
	debounce time.Duration
	deliver  func(Result)

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timer  *time.Timer
	gen    uint64
	closed bool
}

// NewSession starts a session whose results go to deliver. A non-positive
// debounce selects DefaultDebounce.
func (h *Hinter) NewSession(ctx context.Context, debounce time.Duration, deliver func(Result)) *Session {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(ctx)
	return &Session{h: h, debounce: debounce, deliver: deliver, ctx: ctx, cancel: cancel}
}

// Update records new input text and restarts the debounce timer.
func (s *Session) Update(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { s.fire(gen, text) })
}

func (s *Session) current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed && gen == s.gen
}

func (s *Session) fire(gen uint64, text string) {
	if !s.current(gen) {
		return
	}
	value := strings.TrimSpace(text)
	res := Result{Value: value, Hints: []string{}}
	if value != "" {
		hints, err := s.h.Lookup(s.ctx, value)
		if err != nil {
			s.h.lg.Debugw("hint lookup failed", "value", value, "error", err)
			res.Error = err.Error()
		} else {
			res.Hints = hints
		}
	}
	if !s.current(gen) {
		return
	}
	s.deliver(res)
}

// Close stops the session; pending and in-flight lookups are discarded.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	s.cancel()
}
