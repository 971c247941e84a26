package proptimus

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/sb-ncbr/proptimus-web/internal/models"
)

// ErrNoJobID is returned when a submission response carries no job id.
var ErrNoJobID = errors.New("submission response does not contain a job id")

// ExtractJobID finds the server-assigned job id in a submission response.
// JSON bodies carry it as "ID"; HTML bodies link to results?ID=... or carry
// a hidden input named ID.
func ExtractJobID(body string) (models.JobKey, error) {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var payload struct {
			ID string `json:"ID"`
		}
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil && payload.ID != "" {
			return models.JobKey(payload.ID), nil
		}
		return "", ErrNoJobID
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return "", err
	}
	var id string
	doc.Find("a[href], form[action], meta[http-equiv]").EachWithBreak(func(i int, s *goquery.Selection) bool {
		for _, attr := range []string{"href", "action", "content"} {
			if v, ok := s.Attr(attr); ok {
				if found := idFromLink(v); found != "" {
					id = found
					return false
				}
			}
		}
		return true
	})
	if id == "" {
		if v, ok := doc.Find(`input[name="ID"]`).First().Attr("value"); ok {
			id = strings.TrimSpace(v)
		}
	}
	if id == "" {
		return "", ErrNoJobID
	}
	return models.JobKey(id), nil
}

func idFromLink(v string) string {
	// meta refresh content looks like "0; url=/results?ID=..."
	if i := strings.Index(strings.ToLower(v), "url="); i >= 0 {
		v = v[i+len("url="):]
	}
	u, err := url.Parse(strings.TrimSpace(v))
	if err != nil || !strings.Contains(u.Path, "results") {
		return ""
	}
	return u.Query().Get("ID")
}

// VisibleText reduces an HTML document to its visible text. Non-HTML input
// is returned unchanged.
func VisibleText(data []byte) string {
	trimmed := bytes.TrimSpace(data)
	if !bytes.HasPrefix(trimmed, []byte("<")) {
		return string(data)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return string(data)
	}
	doc.Find("script, style, head").Remove()
	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
