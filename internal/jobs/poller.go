package jobs

import (
	"context"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/query"
)

// DefaultPollInterval is the fixed progress refetch interval.
const DefaultPollInterval = 2 * time.Second

// ProgressSource fetches one progress snapshot.
type ProgressSource interface {
	RunningProgress(ctx context.Context, key models.JobKey) (models.ProgressSnapshot, error)
}

// Poller refetches job progress on a fixed interval until the job reaches
// a terminal state. There is no attempt ceiling.
type Poller struct {
	src      ProgressSource
	qc       *query.Client
	interval time.Duration
}

// NewPoller creates a Poller. A non-positive interval selects DefaultPollInterval.
func NewPoller(src ProgressSource, qc *query.Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{src: src, qc: qc, interval: interval}
}

func progressKey(key models.JobKey) query.Key {
	return query.Key{"optimization-progress", key.String()}
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration { return p.interval }

func (p *Poller) fetch(ctx context.Context, key models.JobKey) (models.ProgressSnapshot, error) {
	if p.qc == nil {
		return p.src.RunningProgress(ctx, key)
	}
	// Stale time zero: every poll hits the backend, but concurrent polls of
	// the same job share one request.
	return query.Fetch(ctx, p.qc, progressKey(key), query.Options{},
		func(ctx context.Context) (models.ProgressSnapshot, error) {
			return p.src.RunningProgress(ctx, key)
		})
}

// Poll fetches progress immediately and then once per interval, handing
// every snapshot to onSnapshot. It returns the terminal snapshot, the first
// fetch error, or the context error.
func (p *Poller) Poll(ctx context.Context, key models.JobKey, onSnapshot func(models.ProgressSnapshot)) (models.ProgressSnapshot, error) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		snap, err := p.fetch(ctx, key)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return models.ProgressSnapshot{}, ctxErr
			}
			return models.ProgressSnapshot{}, err
		}
		if onSnapshot != nil {
			onSnapshot(snap)
		}
		if snap.IsTerminal() {
			return snap, nil
		}

		select {
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-ticker.C:
		}
	}
}
