package models

import (
	"regexp"
	"strings"
)

// StructureFormat is the text format of a structure payload.
type StructureFormat string

const (
	FormatPDB   StructureFormat = "pdb"
	FormatMMCIF StructureFormat = "mmcif"
)

// Structure is an opaque structure file fetched from the backend.
type Structure struct {
	Format StructureFormat `json:"format"`
	Text   string          `json:"text"`
}

// Database names the public archive an accession belongs to.
type Database string

const (
	DatabaseAlphaFold Database = "alphafold"
	DatabasePDB       Database = "pdb"
)

var alphaFoldAccession = regexp.MustCompile(`^[A-Z0-9]{6,}$`)

// ClassifyAccession decides once, at input time, which archive serves an
// accession: AF- prefixed or six-plus uppercase alphanumerics are AlphaFold
// models, everything else is a deposited PDB entry.
func ClassifyAccession(code string) Database {
	if len(code) >= 6 && (strings.HasPrefix(code, "AF-") || alphaFoldAccession.MatchString(code)) {
		return DatabaseAlphaFold
	}
	return DatabasePDB
}

// SourceKind tags the StructureSource variant.
type SourceKind string

const (
	SourceAccession SourceKind = "accession"
	SourceUpload    SourceKind = "upload"
)

// StructureSource is where the viewer gets atoms from.
type StructureSource struct {
	Kind      SourceKind `json:"kind"`
	Accession string     `json:"accession,omitempty"`
	Database  Database   `json:"database,omitempty"`
	Name      string     `json:"name,omitempty"`
	Data      []byte     `json:"data,omitempty"`
}

// AccessionSource classifies code and returns an accession source.
func AccessionSource(code string) StructureSource {
	return StructureSource{Kind: SourceAccession, Accession: code, Database: ClassifyAccession(code)}
}

// UploadSource wraps file bytes.
func UploadSource(name string, data []byte) StructureSource {
	return StructureSource{Kind: SourceUpload, Name: name, Data: data}
}

func (s StructureSource) String() string {
	if s.Kind == SourceUpload {
		return s.Name
	}
	return s.Accession
}

type (
	Matrix3D [3][3]float64
	Vector3D [3]float64
)

// IdentityRotation is the rotation used when no superposition is given.
var IdentityRotation = Matrix3D{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Superposition is a rigid transform used for pre-aligned display.
type Superposition struct {
	Rotation    Matrix3D `json:"rotation"`
	Translation Vector3D `json:"translation"`
}

// Representation overrides the default rendering style.
type Representation struct {
	Type    string  `json:"type,omitempty"`
	Color   string  `json:"color,omitempty"`
	Opacity float64 `json:"opacity,omitempty"`
}

// Protein describes one structure to display.
type Protein struct {
	Source         StructureSource `json:"source"`
	Chain          string          `json:"chain,omitempty"`
	Superposition  *Superposition  `json:"superposition,omitempty"`
	Representation *Representation `json:"representation,omitempty"`
}

// Transform returns the superposition, defaulting to identity.
func (p Protein) Transform() Superposition {
	if p.Superposition == nil {
		return Superposition{Rotation: IdentityRotation}
	}
	return *p.Superposition
}
