// Package query is a small request cache in the spirit of browser query
// libraries: results are cached per key, considered fresh for a stale time,
// kept for a gc time, and concurrent fetches of one key are collapsed.
package query

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Forever marks data that never goes stale.
const Forever time.Duration = -1

// Key identifies a query, e.g. Key{"original", "P69905_7.0"}.
type Key []string

func (k Key) String() string { return strings.Join(k, "\x1f") }

// Options control a single fetch.
type Options struct {
	// StaleTime is how long cached data is served without refetching.
	// Zero always refetches; Forever never does.
	StaleTime time.Duration
}

// Client owns the store and the in-flight call group.
type Client struct {
	store Store
	group singleflight.Group
	lg    *zap.SugaredLogger
	now   func() time.Time
}

// NewClient wraps store.
func NewClient(store Store, lg *zap.SugaredLogger) *Client {
	if lg == nil {
		lg = zap.NewNop().Sugar()
	}
	return &Client{store: store, lg: lg, now: time.Now}
}

func encode(v any) ([]byte, error)   { return json.Marshal(v) }
func decode(raw []byte, v any) error { return json.Unmarshal(raw, v) }

func (o Options) fresh(updated, now time.Time) bool {
	switch {
	case o.StaleTime == Forever:
		return true
	case o.StaleTime <= 0:
		return false
	default:
		return now.Sub(updated) < o.StaleTime
	}
}

// Fetch returns the cached value for key when fresh, otherwise runs fn and
// caches its result. Errors are returned to every waiter and not cached.
func Fetch[T any](ctx context.Context, c *Client, key Key, opts Options, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	k := key.String()

	if e, ok, err := c.store.Get(ctx, k); err != nil {
		c.lg.Warnw("query cache read failed", "key", k, "error", err)
	} else if ok && opts.fresh(e.UpdatedAt, c.now()) {
		var v T
		if err := decode(e.Data, &v); err == nil {
			return v, nil
		}
	}

	res, err, _ := c.group.Do(k, func() (any, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := encode(v)
		if err != nil {
			return nil, err
		}
		if err := c.store.Set(ctx, k, Entry{Data: raw, UpdatedAt: c.now()}); err != nil {
			c.lg.Warnw("query cache write failed", "key", k, "error", err)
		}
		return v, nil
	})
	if err != nil {
		return zero, err
	}
	return res.(T), nil
}

// Peek returns cached data for key without fetching.
func Peek[T any](ctx context.Context, c *Client, key Key) (T, bool) {
	var v T
	e, ok, err := c.store.Get(ctx, key.String())
	if err != nil || !ok {
		return v, false
	}
	if err := decode(e.Data, &v); err != nil {
		return v, false
	}
	return v, true
}

// Invalidate drops the cached entry for key.
func (c *Client) Invalidate(ctx context.Context, key Key) error {
	return c.store.Delete(ctx, key.String())
}
