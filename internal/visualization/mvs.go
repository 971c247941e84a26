package visualization

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
)

// ErrEmptyDescriptors is returned when there is nothing to show.
var ErrEmptyDescriptors = errors.New("no protein descriptors to visualize")

const mvsVersion = "1.4"

// Node is one node of a MolViewSpec tree.
type Node struct {
	Kind     string         `json:"kind"`
	Params   map[string]any `json:"params,omitempty"`
	Children []*Node        `json:"children,omitempty"`
}

// Metadata describes a MolViewSpec document.
type Metadata struct {
	Timestamp   string `json:"timestamp"`
	Version     string `json:"version"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Spec is a MolViewSpec ("mvsj") document.
type Spec struct {
	Kind     string   `json:"kind"`
	Root     *Node    `json:"root"`
	Metadata Metadata `json:"metadata"`
}

// Resolver maps a descriptor to the URL the viewer downloads it from.
type Resolver func(p models.Protein) (string, error)

// StructureURL resolves accession descriptors to their public archive file.
func StructureURL(src models.StructureSource) (string, error) {
	if src.Kind != models.SourceAccession || src.Accession == "" {
		return "", fmt.Errorf("%q is not an accession", src.String())
	}
	switch src.Database {
	case models.DatabaseAlphaFold:
		id := strings.Replace(src.Accession, "AF-", "", 1)
		id = strings.Replace(id, "-F1", "", 1)
		return "https://alphafold.ebi.ac.uk/files/AF-" + id + "-F1-model_v4.cif", nil
	default:
		return "https://files.rcsb.org/download/" + strings.ToLower(src.Accession) + ".cif", nil
	}
}

// TransposeAndFlatten lays out a row-major rotation column by column.
func TransposeAndFlatten(m models.Matrix3D) []float64 {
	out := make([]float64, 0, 9)
	for col := 0; col < 3; col++ {
		for row := 0; row < 3; row++ {
			out = append(out, m[row][col])
		}
	}
	return out
}

// BuildSpec builds the document that shows proteins in one scene.
func BuildSpec(proteins []models.Protein, resolve Resolver, now time.Time) (*Spec, error) {
	if len(proteins) == 0 {
		return nil, ErrEmptyDescriptors
	}
	colors := AssignColors(len(proteins))

	root := &Node{Kind: "root"}
	for i, p := range proteins {
		url, err := resolve(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p.Source.String(), err)
		}
		root.Children = append(root.Children, proteinNode(i, len(proteins), colors[i], url, p))
	}

	title := "Protein Visualization"
	if len(proteins) > 1 {
		title = "Protein Comparison"
	}
	return &Spec{
		Kind: "single",
		Root: root,
		Metadata: Metadata{
			Timestamp:   now.UTC().Format(time.RFC3339Nano),
			Version:     mvsVersion,
			Title:       title,
			Description: fmt.Sprintf("Visualization of %d protein(s)", len(proteins)),
		},
	}, nil
}

func proteinNode(index, count int, color, url string, p models.Protein) *Node {
	upload := p.Source.Kind == models.SourceUpload

	format := string(models.FormatMMCIF)
	if upload && strings.HasSuffix(p.Source.Name, ".pdb") {
		format = string(models.FormatPDB)
	}

	structureParams := map[string]any{"type": "model"}
	if upload {
		structureParams["block_header"] = nil
		structureParams["block_index"] = 0
		structureParams["model_index"] = 0
	}

	t := p.Transform()
	transform := &Node{Kind: "transform", Params: map[string]any{
		"rotation":    TransposeAndFlatten(t.Rotation),
		"translation": t.Translation,
	}}

	return &Node{
		Kind:   "download",
		Params: map[string]any{"url": url},
		Children: []*Node{{
			Kind:   "parse",
			Params: map[string]any{"format": format},
			Children: []*Node{{
				Kind:     "structure",
				Params:   structureParams,
				Children: []*Node{transform, componentNode(index, count, color, p)},
			}},
		}},
	}
}

func selector(p models.Protein) any {
	if p.Chain == "" {
		return "all"
	}
	if p.Source.Kind == models.SourceUpload {
		return map[string]string{"label_asym_id": p.Chain}
	}
	return map[string]string{"auth_asym_id": p.Chain}
}

func componentNode(index, count int, color string, p models.Protein) *Node {
	repParams := map[string]any{"type": "ball_and_stick"}
	if p.Source.Kind == models.SourceUpload {
		repParams["size_factor"] = 0.2
	}

	var styling []*Node
	if index == 1 {
		for _, ec := range elementColors {
			styling = append(styling, &Node{Kind: "color", Params: map[string]any{
				"color":    ec.color,
				"selector": map[string]string{"type_symbol": ec.symbol},
			}})
		}
	} else {
		styling = append(styling, &Node{Kind: "color", Params: map[string]any{
			"color":    color,
			"selector": "all",
		}})
	}
	// A lone structure is not a reference and stays opaque.
	if index == 0 && count > 1 {
		styling = append(styling, &Node{Kind: "opacity", Params: map[string]any{"opacity": referenceOpacity}})
	}

	return &Node{
		Kind:   "component",
		Params: map[string]any{"selector": selector(p)},
		Children: []*Node{{
			Kind:     "representation",
			Params:   repParams,
			Children: styling,
		}},
	}
}
