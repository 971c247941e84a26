package hinting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/logger"
	"github.com/sb-ncbr/proptimus-web/internal/query"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	values []string
	err    error
	delay  time.Duration
}

func (f *fakeSource) InputHints(ctx context.Context, value string) ([]string, error) {
	f.mu.Lock()
	f.values = append(f.values, value)
	f.mu.Unlock()
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return []string{value + "05", value + "06"}, nil
}

func (f *fakeSource) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.values...)
}

func newHinter(src Source) *Hinter {
	qc := query.NewClient(query.NewMemoryStore(16, time.Minute), nil)
	return NewHinter(src, qc, 0, logger.Nop())
}

type collector struct {
	mu      sync.Mutex
	results []Result
	ch      chan struct{}
}

func newCollector() *collector { return &collector{ch: make(chan struct{}, 16)} }

func (c *collector) deliver(r Result) {
	c.mu.Lock()
	c.results = append(c.results, r)
	c.mu.Unlock()
	c.ch <- struct{}{}
}

func (c *collector) wait(t *testing.T) {
	t.Helper()
	select {
	case <-c.ch:
	case <-time.After(time.Second):
		t.Fatal("no hints delivered")
	}
}

func (c *collector) all() []Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Result(nil), c.results...)
}

func TestLookup_CachesPerValue(t *testing.T) {
	src := &fakeSource{}
	h := newHinter(src)

	for i := 0; i < 3; i++ {
		hints, err := h.Lookup(context.Background(), "P69")
		require.NoError(t, err)
		assert.Equal(t, []string{"P6905", "P6906"}, hints)
	}
	assert.Equal(t, []string{"P69"}, src.requested())
}

func TestLookup_BlankValueIssuesNoRequest(t *testing.T) {
	src := &fakeSource{}
	h := newHinter(src)

	hints, err := h.Lookup(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, hints)
	assert.NotNil(t, hints)
	assert.Empty(t, src.requested())
}

func TestForward_SendsValueAsGiven(t *testing.T) {
	src := &fakeSource{}
	h := newHinter(src)

	_, err := h.Forward(context.Background(), " P69 ")
	require.NoError(t, err)
	assert.Equal(t, []string{" P69 "}, src.requested())
}

func TestSession_DebouncesKeystrokes(t *testing.T) {
	src := &fakeSource{}
	c := newCollector()
	s := newHinter(src).NewSession(context.Background(), 40*time.Millisecond, c.deliver)
	defer s.Close()

	s.Update("P6")
	time.Sleep(10 * time.Millisecond)
	s.Update("P69")
	c.wait(t)
	time.Sleep(80 * time.Millisecond)

	assert.Equal(t, []string{"P69"}, src.requested(), "only the settled value is looked up")
	results := c.all()
	require.Len(t, results, 1)
	assert.Equal(t, "P69", results[0].Value)
	assert.Equal(t, []string{"P6905", "P6906"}, results[0].Hints)
}

func TestSession_EmptyInputDeliversEmptyList(t *testing.T) {
	src := &fakeSource{}
	c := newCollector()
	s := newHinter(src).NewSession(context.Background(), 10*time.Millisecond, c.deliver)
	defer s.Close()

	s.Update("  ")
	c.wait(t)

	assert.Empty(t, src.requested())
	results := c.all()
	require.Len(t, results, 1)
	assert.Empty(t, results[0].Hints)
}

func TestSession_DropsSupersededResults(t *testing.T) {
	src := &fakeSource{delay: 60 * time.Millisecond}
	c := newCollector()
	s := newHinter(src).NewSession(context.Background(), 10*time.Millisecond, c.deliver)
	defer s.Close()

	s.Update("P6")
	time.Sleep(30 * time.Millisecond) // P6 lookup is now in flight
	s.Update("P69")
	c.wait(t)
	time.Sleep(100 * time.Millisecond)

	results := c.all()
	require.Len(t, results, 1)
	assert.Equal(t, "P69", results[0].Value)
	assert.Equal(t, []string{"P6", "P69"}, src.requested())
}

func TestSession_ReportsLookupError(t *testing.T) {
	src := &fakeSource{err: errors.New("upstream down")}
	c := newCollector()
	s := newHinter(src).NewSession(context.Background(), 10*time.Millisecond, c.deliver)
	defer s.Close()

	s.Update("P69")
	c.wait(t)
	results := c.all()
	require.Len(t, results, 1)
	assert.Equal(t, "upstream down", results[0].Error)
	assert.Empty(t, results[0].Hints)
}

func TestSession_CloseDiscardsPending(t *testing.T) {
	src := &fakeSource{}
	c := newCollector()
	s := newHinter(src).NewSession(context.Background(), 20*time.Millisecond, c.deliver)

	s.Update("P69")
	s.Close()
	s.Update("P699")
	time.Sleep(60 * time.Millisecond)

	assert.Empty(t, c.all())
	assert.Empty(t, src.requested())
}
