// Package proptimus talks to the PROPTIMus compute backend and to the
// external input-hinting service. Calls are single-shot: no retry, no
// auth, no backoff.
package proptimus

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sb-ncbr/proptimus-web/internal/models"
)

var (
	// ErrUnexpectedStatus matches every *StatusError.
	ErrUnexpectedStatus = errors.New("unexpected response status")
	// ErrMalformedResponse is returned when a JSON body cannot be decoded.
	ErrMalformedResponse = errors.New("malformed response body")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Op     string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Status)
}

func (e *StatusError) Is(target error) bool { return target == ErrUnexpectedStatus }

// API is the set of backend operations the rest of the application uses.
type API interface {
	SubmitJob(ctx context.Context, req models.JobRequest) (string, error)
	RunningProgress(ctx context.Context, key models.JobKey) (models.ProgressSnapshot, error)
	OriginalStructure(ctx context.Context, key models.JobKey) (models.Structure, error)
	OptimisedStructure(ctx context.Context, key models.JobKey) (models.Structure, error)
	DownloadFiles(ctx context.Context, key models.JobKey) ([]byte, error)
	ResiduesLogs(ctx context.Context, key models.JobKey) (string, error)
	Results(ctx context.Context, key models.JobKey) (string, error)
	ResultsStats(ctx context.Context) (string, error)
	InputHints(ctx context.Context, value string) ([]string, error)
}

// Client implements API over HTTP.
type Client struct {
	client     *http.Client
	baseURL    string
	hintingURL string
}

// New creates a client for the backend at baseURL and the hinting service at hintingURL.
func New(baseURL, hintingURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		hintingURL: strings.TrimRight(hintingURL, "/"),
	}
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string { return c.baseURL }

func (c *Client) url(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.baseURL + path
}

// do executes req and returns the body of a 2xx response.
func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Op: op, Code: resp.StatusCode, Status: resp.Status}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: reading body: %w", op, err)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path, op string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url(path), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return c.do(req, op)
}

// SubmitJob posts a job. Accessions are sent form-encoded as code and ph;
// uploads go out as multipart with the file under "file". The raw response
// text is returned because the backend may answer with HTML.
func (c *Client) SubmitJob(ctx context.Context, jr models.JobRequest) (string, error) {
	const op = "submit job"
	var (
		body        io.Reader
		contentType string
	)
	switch jr.Input.Kind {
	case models.InputUpload:
		buf := new(bytes.Buffer)
		mw := multipart.NewWriter(buf)
		fw, err := mw.CreateFormFile("file", jr.Input.Name)
		if err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if _, err := fw.Write(jr.Input.Data); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if err := mw.WriteField("ph", jr.PH); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		if err := mw.Close(); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
		body, contentType = buf, mw.FormDataContentType()
	default:
		form := url.Values{}
		form.Set("code", jr.Input.Code)
		form.Set("ph", jr.PH)
		body, contentType = strings.NewReader(form.Encode()), "application/x-www-form-urlencoded"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url("/"), body)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Content-Type", contentType)
	data, err := c.do(req, op)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// RunningProgress fetches one progress snapshot.
func (c *Client) RunningProgress(ctx context.Context, key models.JobKey) (models.ProgressSnapshot, error) {
	const op = "fetch optimization progress"
	data, err := c.get(ctx, "/api/running_progress?ID="+url.QueryEscape(key.String()), op)
	if err != nil {
		return models.ProgressSnapshot{}, err
	}
	var apiResponse models.ProgressResponse
	if err := json.Unmarshal(data, &apiResponse); err != nil {
		return models.ProgressSnapshot{}, fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return apiResponse.Snapshot(), nil
}

// OriginalStructure fetches the input structure (PDB).
func (c *Client) OriginalStructure(ctx context.Context, key models.JobKey) (models.Structure, error) {
	data, err := c.get(ctx, "/original_structure/"+url.PathEscape(key.String()), "fetch original structure")
	if err != nil {
		return models.Structure{}, err
	}
	return models.Structure{Format: models.FormatPDB, Text: string(data)}, nil
}

// OptimisedStructure fetches the optimised structure (mmCIF).
func (c *Client) OptimisedStructure(ctx context.Context, key models.JobKey) (models.Structure, error) {
	data, err := c.get(ctx, "/optimised_structure/"+url.PathEscape(key.String()), "fetch optimised structure")
	if err != nil {
		return models.Structure{}, err
	}
	return models.Structure{Format: models.FormatMMCIF, Text: string(data)}, nil
}

// DownloadFiles fetches the zipped result bundle.
func (c *Client) DownloadFiles(ctx context.Context, key models.JobKey) ([]byte, error) {
	return c.get(ctx, "/download_files?ID="+url.QueryEscape(key.String()), "download files")
}

// ResiduesLogs fetches the per-residue optimisation log.
func (c *Client) ResiduesLogs(ctx context.Context, key models.JobKey) (string, error) {
	data, err := c.get(ctx, "/residues_logs/"+url.PathEscape(key.String()), "fetch residues logs")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Results fetches the results report of one job as plain text.
func (c *Client) Results(ctx context.Context, key models.JobKey) (string, error) {
	data, err := c.get(ctx, "/results?ID="+url.QueryEscape(key.String()), "fetch results")
	if err != nil {
		return "", err
	}
	return VisibleText(data), nil
}

// ResultsStats fetches the service-wide statistics page as plain text.
func (c *Client) ResultsStats(ctx context.Context) (string, error) {
	data, err := c.get(ctx, "/results", "fetch results stats")
	if err != nil {
		return "", err
	}
	return VisibleText(data), nil
}

// InputHints asks the hinting service for identifier completions.
func (c *Client) InputHints(ctx context.Context, value string) ([]string, error) {
	const op = "fetch hints"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/api/input-hinting?value=%s", c.hintingURL, url.QueryEscape(value)), nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	data, err := c.do(req, op)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return []string{}, nil
	}
	var hints []string
	if err := json.Unmarshal(data, &hints); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", op, ErrMalformedResponse, err)
	}
	return hints, nil
}
