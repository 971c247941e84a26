package jobs

import (
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// StartScheduler starts the background sweep of finished job trackers.
// It returns nil when the interval is 0, which disables sweeping.
func StartScheduler(m *Manager, intervalMinutes int, lg *zap.SugaredLogger) *gocron.Scheduler {
	if intervalMinutes == 0 {
		lg.Info("Tracker sweep interval is 0, scheduled sweep is disabled.")
		return nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	jobID := "tracker-sweep"
	lg.Infof("Scheduling job: '%s' to run every %d minutes.", jobID, intervalMinutes)
	_, err := s.Every(intervalMinutes).Minutes().Do(func() {
		if n := m.Sweep(time.Now()); n > 0 {
			lg.Infow("Swept finished job trackers", "count", n)
		}
	})
	if err != nil {
		lg.Errorf("Error scheduling '%s' job: %v", jobID, err)
		return nil
	}

	lg.Info("Starting background job scheduler...")
	s.StartAsync()
	return s
}
