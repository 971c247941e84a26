package jobs

import (
	"context"
	"sync"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/query"
)

// Artifact is a single-shot, cached fetch of one job result (a structure,
// the download archive, the residue log). Nothing is requested while the
// artifact is disabled; once enabled, the first Get fetches and every later
// Get is served from the cache.
type Artifact[T any] struct {
	name  string
	key   models.JobKey
	qc    *query.Client
	fetch func(ctx context.Context, key models.JobKey) (T, error)

	mu      sync.Mutex
	enabled bool
}

// NewArtifact creates an artifact fetcher for key.
func NewArtifact[T any](qc *query.Client, name string, key models.JobKey, enabled bool,
	fetch func(ctx context.Context, key models.JobKey) (T, error)) *Artifact[T] {
	return &Artifact[T]{name: name, key: key, qc: qc, fetch: fetch, enabled: !key.IsZero() && enabled}
}

// SetEnabled flips the enablement gate. An empty job key is never enabled.
func (a *Artifact[T]) SetEnabled(enabled bool) {
	a.mu.Lock()
	a.enabled = enabled && !a.key.IsZero()
	a.mu.Unlock()
}

// Enabled reports the gate.
func (a *Artifact[T]) Enabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enabled
}

func (a *Artifact[T]) queryKey() query.Key { return query.Key{a.name, a.key.String()} }

// Get returns the artifact. ok is false when the artifact is disabled.
func (a *Artifact[T]) Get(ctx context.Context) (v T, ok bool, err error) {
	if !a.Enabled() {
		return v, false, nil
	}
	v, err = query.Fetch(ctx, a.qc, a.queryKey(), query.Options{StaleTime: query.Forever},
		func(ctx context.Context) (T, error) { return a.fetch(ctx, a.key) })
	if err != nil {
		return v, false, err
	}
	return v, true, nil
}

// Cached returns the artifact only if it was already fetched.
func (a *Artifact[T]) Cached(ctx context.Context) (T, bool) {
	return query.Peek[T](ctx, a.qc, a.queryKey())
}

// Refetch drops any cached copy and fetches on demand, regardless of the
// gate. It backs user-triggered downloads.
func (a *Artifact[T]) Refetch(ctx context.Context) (T, error) {
	_ = a.qc.Invalidate(ctx, a.queryKey())
	return query.Fetch(ctx, a.qc, a.queryKey(), query.Options{StaleTime: query.Forever},
		func(ctx context.Context) (T, error) { return a.fetch(ctx, a.key) })
}

func (a *Artifact[T]) invalidate(ctx context.Context) error {
	return a.qc.Invalidate(ctx, a.queryKey())
}

// Artifacts groups the per-job fetchers.
type Artifacts struct {
	Original  *Artifact[models.Structure]
	Optimised *Artifact[models.Structure]
	Download  *Artifact[[]byte]
	Logs      *Artifact[string]
}

// ArtifactSource is the part of the backend API the artifacts need.
type ArtifactSource interface {
	OriginalStructure(ctx context.Context, key models.JobKey) (models.Structure, error)
	OptimisedStructure(ctx context.Context, key models.JobKey) (models.Structure, error)
	DownloadFiles(ctx context.Context, key models.JobKey) ([]byte, error)
	ResiduesLogs(ctx context.Context, key models.JobKey) (string, error)
}

// NewArtifacts creates the disabled fetchers of one job.
func NewArtifacts(qc *query.Client, src ArtifactSource, key models.JobKey) *Artifacts {
	return &Artifacts{
		Original:  NewArtifact(qc, "original", key, false, src.OriginalStructure),
		Optimised: NewArtifact(qc, "optimised", key, false, src.OptimisedStructure),
		Download:  NewArtifact(qc, "download", key, false, src.DownloadFiles),
		Logs:      NewArtifact(qc, "residues", key, true, src.ResiduesLogs),
	}
}

// invalidate drops every cached artifact of the job.
func (a *Artifacts) invalidate(ctx context.Context) {
	_ = a.Original.invalidate(ctx)
	_ = a.Optimised.invalidate(ctx)
	_ = a.Download.invalidate(ctx)
	_ = a.Logs.invalidate(ctx)
}
