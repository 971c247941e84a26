package models

import (
	"errors"
	"strings"
)

var (
	// ErrEmptySubmission is returned for a request with no identifier, no file, or no pH.
	ErrEmptySubmission = errors.New("submission requires an identifier or a structure file and a pH value")
	// ErrAmbiguousInput is returned when both an identifier and a file are present.
	ErrAmbiguousInput = errors.New("submission must carry either an identifier or a structure file, not both")
)

// InputKind tags which variant of InputSource is populated.
type InputKind string

const (
	InputAccession InputKind = "accession"
	InputUpload    InputKind = "upload"
)

// InputSource is what the user asked to optimise: a database accession or an
// uploaded structure file. Exactly one of Code or Data is meaningful,
// selected by Kind.
type InputSource struct {
	Kind InputKind `json:"kind"`
	Code string    `json:"code,omitempty"`
	Name string    `json:"name,omitempty"`
	Data []byte    `json:"-"`
}

// AccessionInput builds an accession input.
func AccessionInput(code string) InputSource {
	return InputSource{Kind: InputAccession, Code: strings.TrimSpace(code)}
}

// UploadInput builds an upload input.
func UploadInput(name string, data []byte) InputSource {
	return InputSource{Kind: InputUpload, Name: name, Data: data}
}

// JobRequest is a single optimisation submission.
type JobRequest struct {
	Input InputSource `json:"input"`
	PH    string      `json:"ph"`
}

// NewJobRequest builds a request from raw form values. Both a code and a
// file may be passed; Validate reports that as ambiguous.
func NewJobRequest(code string, fileName string, fileData []byte, ph string) JobRequest {
	req := JobRequest{PH: strings.TrimSpace(ph)}
	code = strings.TrimSpace(code)
	switch {
	case code != "" && len(fileData) > 0:
		req.Input = InputSource{Kind: InputAccession, Code: code, Name: fileName, Data: fileData}
	case len(fileData) > 0:
		req.Input = UploadInput(fileName, fileData)
	case code != "":
		req.Input = AccessionInput(code)
	}
	return req
}

// Validate checks the submission boundary invariants.
func (r JobRequest) Validate() error {
	hasCode := r.Input.Code != ""
	hasFile := len(r.Input.Data) > 0
	if hasCode && hasFile {
		return ErrAmbiguousInput
	}
	if (!hasCode && !hasFile) || strings.TrimSpace(r.PH) == "" {
		return ErrEmptySubmission
	}
	switch r.Input.Kind {
	case InputAccession:
		if !hasCode {
			return ErrEmptySubmission
		}
	case InputUpload:
		if !hasFile {
			return ErrEmptySubmission
		}
	default:
		return ErrEmptySubmission
	}
	return nil
}

// JobKey is the sole correlation handle for a submitted job.
type JobKey string

// DeriveJobKey builds the client-side key for an accession submission.
func DeriveJobKey(identifier, ph string) JobKey {
	return JobKey(identifier + "_" + ph)
}

// Split returns the identifier and pH encoded in a derived key. Keys
// assigned by the server for uploads usually carry no pH; ph is empty then.
func (k JobKey) Split() (identifier, ph string) {
	s := string(k)
	if i := strings.Index(s, "_"); i >= 0 {
		return s[:i], s[i+1:]
	}
	return s, ""
}

func (k JobKey) String() string { return string(k) }

// IsZero reports an empty key.
func (k JobKey) IsZero() bool { return strings.TrimSpace(string(k)) == "" }
