package models

// ProgressStatus is the lifecycle state reported by the backend for a job.
type ProgressStatus string

const (
	StatusRunning  ProgressStatus = "running"
	StatusFinished ProgressStatus = "finished"
	StatusError    ProgressStatus = "error"
)

// ProgressSnapshot is a point-in-time progress report. Each poll replaces
// the previous snapshot entirely.
type ProgressSnapshot struct {
	Status  ProgressStatus `json:"status"`
	Percent float64        `json:"percent"`
	Message string         `json:"message,omitempty"`
}

// IsTerminal reports whether polling should stop.
func (p ProgressSnapshot) IsTerminal() bool {
	return p.Status == StatusFinished || p.Status == StatusError
}

// ProgressResponse is the wire form of GET /api/running_progress.
type ProgressResponse struct {
	Status       string  `json:"status"`
	PercentValue float64 `json:"percent_value"`
	PercentText  string  `json:"percent_text"`
	Message      string  `json:"message"`
	Error        string  `json:"error"`
}

// Snapshot normalises the backend response.
func (r ProgressResponse) Snapshot() ProgressSnapshot {
	snap := ProgressSnapshot{
		Status:  StatusRunning,
		Percent: r.PercentValue,
		Message: r.PercentText,
	}
	if snap.Message == "" {
		snap.Message = r.Message
	}
	switch {
	case r.Status == "finished":
		snap.Status = StatusFinished
	case r.Status == "error" || r.Status == "failed" || r.Error != "":
		snap.Status = StatusError
		if r.Error != "" && snap.Message == "" {
			snap.Message = r.Error
		}
	}
	return snap
}
