package jobs

import (
	"context"
	"fmt"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/sb-ncbr/proptimus-web/internal/proptimus"
	"go.uber.org/zap"
)

// JobSubmitter is the backend write used by Submitter.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, req models.JobRequest) (string, error)
}

// Submitter sends optimisation jobs and derives their keys.
type Submitter struct {
	api JobSubmitter
	lg  *zap.SugaredLogger
}

// NewSubmitter creates a Submitter.
func NewSubmitter(api JobSubmitter, lg *zap.SugaredLogger) *Submitter {
	return &Submitter{api: api, lg: lg}
}

// Submit validates req, posts it once and returns the job key. Invalid
// requests never reach the network. Backend failures are returned as-is.
func (s *Submitter) Submit(ctx context.Context, req models.JobRequest) (models.JobKey, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}

	body, err := s.api.SubmitJob(ctx, req)
	if err != nil {
		return "", err
	}

	var key models.JobKey
	switch req.Input.Kind {
	case models.InputUpload:
		key, err = proptimus.ExtractJobID(body)
		if err != nil {
			return "", fmt.Errorf("submitted %s: %w", req.Input.Name, err)
		}
	default:
		key = models.DeriveJobKey(req.Input.Code, req.PH)
	}
	s.lg.Infow("job submitted", "job_key", key, "input", req.Input.Kind)
	return key, nil
}
