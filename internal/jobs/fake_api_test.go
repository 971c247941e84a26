package jobs_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sb-ncbr/proptimus-web/internal/models"
)

// fakeAPI implements proptimus.API in memory and counts every call.
type fakeAPI struct {
	mu         sync.Mutex
	progress   []models.ProgressSnapshot
	progressAt int
	submitBody string
	submitErr  error
	submitted  []models.JobRequest
	structErr  error

	progressCalls  int32
	originalCalls  int32
	optimisedCalls int32
	downloadCalls  int32
	logsCalls      int32
}

func (f *fakeAPI) SubmitJob(ctx context.Context, req models.JobRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitted = append(f.submitted, req)
	return f.submitBody, f.submitErr
}

func (f *fakeAPI) RunningProgress(ctx context.Context, key models.JobKey) (models.ProgressSnapshot, error) {
	atomic.AddInt32(&f.progressCalls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.progress) == 0 {
		return models.ProgressSnapshot{}, errors.New("no progress scripted")
	}
	snap := f.progress[f.progressAt]
	if f.progressAt < len(f.progress)-1 {
		f.progressAt++
	}
	return snap, nil
}

func (f *fakeAPI) OriginalStructure(ctx context.Context, key models.JobKey) (models.Structure, error) {
	atomic.AddInt32(&f.originalCalls, 1)
	if f.structErr != nil {
		return models.Structure{}, f.structErr
	}
	return models.Structure{Format: models.FormatPDB, Text: "ATOM original " + key.String()}, nil
}

func (f *fakeAPI) OptimisedStructure(ctx context.Context, key models.JobKey) (models.Structure, error) {
	atomic.AddInt32(&f.optimisedCalls, 1)
	return models.Structure{Format: models.FormatMMCIF, Text: "data_optimised " + key.String()}, nil
}

func (f *fakeAPI) DownloadFiles(ctx context.Context, key models.JobKey) ([]byte, error) {
	atomic.AddInt32(&f.downloadCalls, 1)
	return []byte("PK"), nil
}

func (f *fakeAPI) ResiduesLogs(ctx context.Context, key models.JobKey) (string, error) {
	atomic.AddInt32(&f.logsCalls, 1)
	return "log", nil
}

func (f *fakeAPI) Results(ctx context.Context, key models.JobKey) (string, error) {
	return "results", nil
}

func (f *fakeAPI) ResultsStats(ctx context.Context) (string, error) { return "stats", nil }

func (f *fakeAPI) InputHints(ctx context.Context, value string) ([]string, error) {
	return nil, nil
}

func (f *fakeAPI) submissions() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

func running(p float64) models.ProgressSnapshot {
	return models.ProgressSnapshot{Status: models.StatusRunning, Percent: p}
}

func finished() models.ProgressSnapshot {
	return models.ProgressSnapshot{Status: models.StatusFinished, Percent: 100}
}

// recordingPublisher captures published topics.
type recordingPublisher struct {
	mu     sync.Mutex
	topics []string
}

func (r *recordingPublisher) Publish(topic string, payload []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, topic)
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}
