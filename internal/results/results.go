// Package results turns the tracked state of one job into the view the
// results page shows. Exactly one view kind applies at a time.
package results

import (
	"regexp"

	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/models"
)

// Kind selects what the results page renders.
type Kind string

// Kinds in precedence order.
const (
	KindMissingJobKey      Kind = "missing_job_key"
	KindProgressError      Kind = "progress_error"
	KindOptimizationFailed Kind = "optimization_failed"
	KindLoading            Kind = "loading"
	KindStructureError     Kind = "structure_error"
	KindComparison         Kind = "comparison"
)

const (
	defaultFailureMessage = "An error occurred during protein optimization."
	structuresLoadingText = "Loading protein structures..."
)

// View is the derived, render-ready state of the results page.
type View struct {
	Kind        Kind                  `json:"kind"`
	JobKey      models.JobKey         `json:"job_key,omitempty"`
	Identifier  string                `json:"identifier,omitempty"`
	PH          string                `json:"ph,omitempty"`
	EntryURL    string                `json:"entry_url,omitempty"`
	Status      models.ProgressStatus `json:"status,omitempty"`
	Percent     float64               `json:"percent"`
	Message     string                `json:"message,omitempty"`
	Error       string                `json:"error,omitempty"`
	ContainerID string                `json:"container_id,omitempty"`
	DownloadURL string                `json:"download_url,omitempty"`
}

// Derive applies the fixed precedence: missing key, progress fetch error,
// optimisation failure, loading, structure fetch error, comparison.
func Derive(key models.JobKey, st jobs.State) View {
	if key.IsZero() {
		return View{Kind: KindMissingJobKey}
	}

	id, ph := key.Split()
	if ph == "" {
		ph = "N/A"
	}
	v := View{
		JobKey:     key,
		Identifier: id,
		PH:         ph,
		EntryURL:   EntryURL(id),
		Status:     models.StatusRunning,
	}
	if st.Progress != nil {
		v.Status = st.Progress.Status
		v.Percent = st.Progress.Percent
		v.Message = st.Progress.Message
	}

	switch {
	case st.ProgressError != "":
		v.Kind = KindProgressError
		v.Error = "Failed to load optimization progress: " + st.ProgressError
	case st.Progress != nil && st.Progress.Status == models.StatusError:
		v.Kind = KindOptimizationFailed
		if v.Message == "" {
			v.Message = defaultFailureMessage
		}
	case st.ProgressLoading() || st.Progress.Status == models.StatusRunning:
		v.Kind = KindLoading
		v.Message = StatusMessage(v.Percent, v.Status, v.Message)
	case st.OriginalError != "" || st.OptimisedError != "":
		v.Kind = KindStructureError
		msg := st.OriginalError
		if msg == "" {
			msg = st.OptimisedError
		}
		v.Error = "Failed to load protein structures: " + msg
	case st.Original == nil || st.Optimised == nil:
		v.Kind = KindLoading
		v.Percent = 100
		v.Status = models.StatusFinished
		v.Message = structuresLoadingText
	default:
		v.Kind = KindComparison
		v.ContainerID = ContainerID(key)
		v.DownloadURL = "/api/jobs/" + key.String() + "/download"
	}
	return v
}

// StatusMessage is the caption shown under the progress bar.
func StatusMessage(percent float64, status models.ProgressStatus, message string) string {
	switch {
	case status == models.StatusError:
		return "Optimization failed"
	case status == models.StatusFinished:
		return "Optimization complete!"
	case message != "":
		return message
	case percent < 20:
		return "Initializing protein structure..."
	case percent < 40:
		return "Analyzing molecular bonds..."
	case percent < 60:
		return "Optimizing geometry..."
	case percent < 80:
		return "Refining structure..."
	case percent < 95:
		return "Finalizing optimization..."
	}
	return "Completing optimization..."
}

// DownloadName is the file name offered for a job's result bundle.
func DownloadName(key models.JobKey) string {
	return "optimized_structure_" + key.String() + ".zip"
}

// EntryURL links an identifier to its AlphaFold DB entry page.
func EntryURL(identifier string) string {
	if identifier == "" {
		return ""
	}
	return "https://alphafold.ebi.ac.uk/entry/" + identifier
}

var unsafeContainerChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// ContainerID is the viewer container of a job's comparison.
func ContainerID(key models.JobKey) string {
	return "comparison-" + unsafeContainerChars.ReplaceAllString(key.String(), "-")
}

// ComparisonDescriptors builds the overlay of the original (muted, behind)
// and the optimised structure, both with an identity superposition.
func ComparisonDescriptors(original, optimised models.Structure) []models.Protein {
	identity := func() *models.Superposition {
		return &models.Superposition{Rotation: models.IdentityRotation}
	}
	return []models.Protein{
		{
			Source:         models.UploadSource("original.pdb", []byte(original.Text)),
			Superposition:  identity(),
			Representation: &models.Representation{Type: "ball_and_stick", Color: "element_symbol", Opacity: 0.7},
		},
		{
			Source:         models.UploadSource("optimized.cif", []byte(optimised.Text)),
			Superposition:  identity(),
			Representation: &models.Representation{Type: "ball_and_stick", Color: "element_symbol", Opacity: 1},
		},
	}
}
