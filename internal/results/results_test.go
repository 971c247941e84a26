package results

import (
	"testing"

	"github.com/sb-ncbr/proptimus-web/internal/jobs"
	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func snap(status models.ProgressStatus, percent float64, msg string) *models.ProgressSnapshot {
	return &models.ProgressSnapshot{Status: status, Percent: percent, Message: msg}
}

func finishedState() jobs.State {
	return jobs.State{
		Key:               "P69905_7.0",
		Progress:          snap(models.StatusFinished, 100, ""),
		StructuresEnabled: true,
		Original:          &models.Structure{Format: models.FormatPDB, Text: "ATOM"},
		Optimised:         &models.Structure{Format: models.FormatMMCIF, Text: "data_"},
	}
}

func TestDerive_Precedence(t *testing.T) {
	tests := []struct {
		name  string
		key   models.JobKey
		state jobs.State
		want  Kind
	}{
		{"missing key wins over everything", "", jobs.State{ProgressError: "boom"}, KindMissingJobKey},
		{"progress error before status", "P69905_7.0", jobs.State{ProgressError: "boom", Progress: snap(models.StatusError, 0, "")}, KindProgressError},
		{"optimisation failed", "P69905_7.0", jobs.State{Progress: snap(models.StatusError, 40, "")}, KindOptimizationFailed},
		{"no snapshot yet", "P69905_7.0", jobs.State{}, KindLoading},
		{"running", "P69905_7.0", jobs.State{Progress: snap(models.StatusRunning, 55, "")}, KindLoading},
		{"structures loading", "P69905_7.0", jobs.State{Progress: snap(models.StatusFinished, 100, ""), StructuresEnabled: true}, KindLoading},
		{"structure error", "P69905_7.0", jobs.State{Progress: snap(models.StatusFinished, 100, ""), StructuresEnabled: true, OriginalError: "404 Not Found"}, KindStructureError},
		{"comparison", "P69905_7.0", finishedState(), KindComparison},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.key, tt.state).Kind)
		})
	}
}

func TestDerive_Details(t *testing.T) {
	t.Run("comparison carries identifiers", func(t *testing.T) {
		v := Derive("P69905_7.0", finishedState())
		assert.Equal(t, "P69905", v.Identifier)
		assert.Equal(t, "7.0", v.PH)
		assert.Equal(t, "https://alphafold.ebi.ac.uk/entry/P69905", v.EntryURL)
		assert.Equal(t, "comparison-P69905_7.0", v.ContainerID)
		assert.Equal(t, "/api/jobs/P69905_7.0/download", v.DownloadURL)
	})

	t.Run("missing pH shows N/A", func(t *testing.T) {
		v := Derive("srv-42", jobs.State{})
		assert.Equal(t, "srv-42", v.Identifier)
		assert.Equal(t, "N/A", v.PH)
	})

	t.Run("failure message defaults", func(t *testing.T) {
		v := Derive("P69905_7.0", jobs.State{Progress: snap(models.StatusError, 0, "")})
		assert.Equal(t, defaultFailureMessage, v.Message)
		v = Derive("P69905_7.0", jobs.State{Progress: snap(models.StatusError, 0, "did not converge")})
		assert.Equal(t, "did not converge", v.Message)
	})

	t.Run("structures loading is shown complete", func(t *testing.T) {
		v := Derive("P69905_7.0", jobs.State{Progress: snap(models.StatusFinished, 100, "")})
		assert.Equal(t, KindLoading, v.Kind)
		assert.Equal(t, float64(100), v.Percent)
		assert.Equal(t, structuresLoadingText, v.Message)
	})

	t.Run("structure error message", func(t *testing.T) {
		st := finishedState()
		st.Optimised = nil
		st.OptimisedError = "timeout"
		v := Derive("P69905_7.0", st)
		assert.Equal(t, "Failed to load protein structures: timeout", v.Error)
	})
}

func TestStatusMessage(t *testing.T) {
	assert.Equal(t, "Optimization failed", StatusMessage(50, models.StatusError, "x"))
	assert.Equal(t, "Optimization complete!", StatusMessage(100, models.StatusFinished, ""))
	assert.Equal(t, "custom", StatusMessage(10, models.StatusRunning, "custom"))
	assert.Equal(t, "Initializing protein structure...", StatusMessage(10, models.StatusRunning, ""))
	assert.Equal(t, "Optimizing geometry...", StatusMessage(55, models.StatusRunning, ""))
	assert.Equal(t, "Completing optimization...", StatusMessage(99, models.StatusRunning, ""))
}

func TestDownloadName(t *testing.T) {
	assert.Equal(t, "optimized_structure_P69905_7.0.zip", DownloadName("P69905_7.0"))
}

func TestContainerID_Sanitizes(t *testing.T) {
	assert.Equal(t, "comparison-a-b_7.0", ContainerID("a/b_7.0"))
}

func TestComparisonDescriptors(t *testing.T) {
	ps := ComparisonDescriptors(
		models.Structure{Format: models.FormatPDB, Text: "ATOM 1"},
		models.Structure{Format: models.FormatMMCIF, Text: "data_opt"},
	)
	require.Len(t, ps, 2)
	assert.Equal(t, "original.pdb", ps[0].Source.Name)
	assert.Equal(t, models.SourceUpload, ps[0].Source.Kind)
	assert.Equal(t, []byte("ATOM 1"), ps[0].Source.Data)
	assert.Equal(t, "optimized.cif", ps[1].Source.Name)
	assert.Equal(t, models.IdentityRotation, ps[1].Transform().Rotation)
	assert.Equal(t, models.Vector3D{}, ps[1].Transform().Translation)
}
