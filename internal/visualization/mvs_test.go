package visualization

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticResolver(p models.Protein) (string, error) {
	if p.Source.Kind == models.SourceUpload {
		return "/blobs/" + p.Source.Name, nil
	}
	return StructureURL(p.Source)
}

func TestAssignColors(t *testing.T) {
	assert.Nil(t, AssignColors(0))
	assert.Equal(t, []string{AccentColor}, AssignColors(1))
	assert.Equal(t, []string{MutedColor, AccentColor}, AssignColors(2))
	assert.Equal(t, []string{MutedColor, AccentColor, AccentColor, AccentColor}, AssignColors(4))
}

func TestStructureURL(t *testing.T) {
	tests := []struct {
		code string
		want string
	}{
		{"P69905", "https://alphafold.ebi.ac.uk/files/AF-P69905-F1-model_v4.cif"},
		{"AF-Q8W3K0-F1", "https://alphafold.ebi.ac.uk/files/AF-Q8W3K0-F1-model_v4.cif"},
		{"1CRN", "https://files.rcsb.org/download/1crn.cif"},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got, err := StructureURL(models.AccessionSource(tt.code))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := StructureURL(models.UploadSource("a.pdb", nil))
	assert.Error(t, err)
}

func TestTransposeAndFlatten(t *testing.T) {
	m := models.Matrix3D{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}}
	assert.Equal(t, []float64{1, 4, 7, 2, 5, 8, 3, 6, 9}, TransposeAndFlatten(m))
}

func TestBuildSpec_Empty(t *testing.T) {
	_, err := BuildSpec(nil, staticResolver, time.Now())
	assert.ErrorIs(t, err, ErrEmptyDescriptors)
}

func TestBuildSpec_ResolverError(t *testing.T) {
	boom := errors.New("no url")
	_, err := BuildSpec([]models.Protein{{Source: models.AccessionSource("P69905")}},
		func(models.Protein) (string, error) { return "", boom }, time.Now())
	assert.ErrorIs(t, err, boom)
}

func TestBuildSpec_Single(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	spec, err := BuildSpec([]models.Protein{{Source: models.AccessionSource("P69905"), Chain: "A"}}, staticResolver, ts)
	require.NoError(t, err)

	assert.Equal(t, "single", spec.Kind)
	assert.Equal(t, "root", spec.Root.Kind)
	assert.Equal(t, "1.4", spec.Metadata.Version)
	assert.Equal(t, "Protein Visualization", spec.Metadata.Title)
	assert.Equal(t, "Visualization of 1 protein(s)", spec.Metadata.Description)
	assert.Equal(t, "2026-01-02T03:04:05Z", spec.Metadata.Timestamp)
	require.Len(t, spec.Root.Children, 1)

	download := spec.Root.Children[0]
	assert.Equal(t, "download", download.Kind)
	assert.Equal(t, "https://alphafold.ebi.ac.uk/files/AF-P69905-F1-model_v4.cif", download.Params["url"])

	parse := download.Children[0]
	assert.Equal(t, "mmcif", parse.Params["format"])

	structure := parse.Children[0]
	assert.Equal(t, map[string]any{"type": "model"}, structure.Params)
	require.Len(t, structure.Children, 2)

	transform := structure.Children[0]
	assert.Equal(t, "transform", transform.Kind)
	assert.Equal(t, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1}, transform.Params["rotation"])
	assert.Equal(t, models.Vector3D{}, transform.Params["translation"])

	component := structure.Children[1]
	assert.Equal(t, map[string]string{"auth_asym_id": "A"}, component.Params["selector"])

	rep := component.Children[0]
	assert.Equal(t, map[string]any{"type": "ball_and_stick"}, rep.Params)
	require.Len(t, rep.Children, 1, "a lone structure gets one flat colour and no opacity")
	assert.Equal(t, AccentColor, rep.Children[0].Params["color"])
	assert.Equal(t, "all", rep.Children[0].Params["selector"])
}

func TestBuildSpec_Comparison(t *testing.T) {
	rot := models.Matrix3D{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}}
	proteins := []models.Protein{
		{Source: models.UploadSource("original.pdb", []byte("ATOM")), Chain: "B"},
		{
			Source:        models.UploadSource("optimized.cif", []byte("data_")),
			Superposition: &models.Superposition{Rotation: rot, Translation: models.Vector3D{1, 2, 3}},
		},
	}
	spec, err := BuildSpec(proteins, staticResolver, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "Protein Comparison", spec.Metadata.Title)
	assert.Equal(t, "Visualization of 2 protein(s)", spec.Metadata.Description)
	require.Len(t, spec.Root.Children, 2)

	first := spec.Root.Children[0]
	assert.Equal(t, "/blobs/original.pdb", first.Params["url"])
	assert.Equal(t, "pdb", first.Children[0].Params["format"])
	structure := first.Children[0].Children[0]
	assert.Equal(t, map[string]any{"type": "model", "block_header": nil, "block_index": 0, "model_index": 0}, structure.Params)
	component := structure.Children[1]
	assert.Equal(t, map[string]string{"label_asym_id": "B"}, component.Params["selector"])
	rep := component.Children[0]
	assert.Equal(t, 0.2, rep.Params["size_factor"])
	require.Len(t, rep.Children, 2)
	assert.Equal(t, MutedColor, rep.Children[0].Params["color"])
	assert.Equal(t, "opacity", rep.Children[1].Kind)
	assert.Equal(t, 0.5, rep.Children[1].Params["opacity"])

	second := spec.Root.Children[1]
	assert.Equal(t, "mmcif", second.Children[0].Params["format"])
	transform := second.Children[0].Children[0].Children[0]
	assert.Equal(t, []float64{0, 1, 0, -1, 0, 0, 0, 0, 1}, transform.Params["rotation"])
	assert.Equal(t, models.Vector3D{1, 2, 3}, transform.Params["translation"])
	colors := second.Children[0].Children[0].Children[1].Children[0].Children
	require.Len(t, colors, len(elementColors))
	assert.Equal(t, CarbonColor, colors[0].Params["color"])
	assert.Equal(t, map[string]string{"type_symbol": "C"}, colors[0].Params["selector"])
	assert.Equal(t, map[string]string{"type_symbol": "*"}, colors[len(colors)-1].Params["selector"])
}

func TestBuildSpec_ManyProteinsShareAccent(t *testing.T) {
	proteins := []models.Protein{
		{Source: models.AccessionSource("1CRN")},
		{Source: models.AccessionSource("P69905")},
		{Source: models.AccessionSource("P01308")},
	}
	spec, err := BuildSpec(proteins, staticResolver, time.Now())
	require.NoError(t, err)

	third := spec.Root.Children[2].Children[0].Children[0].Children[1].Children[0]
	require.Len(t, third.Children, 1)
	assert.Equal(t, AccentColor, third.Children[0].Params["color"])
}

func TestBuildSpec_JSONShape(t *testing.T) {
	spec, err := BuildSpec([]models.Protein{{Source: models.UploadSource("x.cif", []byte("data_"))}}, staticResolver, time.Now())
	require.NoError(t, err)
	raw, err := json.Marshal(spec)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"block_header":null`)
	assert.Contains(t, string(raw), `"kind":"single"`)
	assert.NotContains(t, string(raw), `"params":{}`)
}
