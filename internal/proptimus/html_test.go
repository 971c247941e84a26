package proptimus

import (
	"testing"

	"github.com/sb-ncbr/proptimus-web/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestExtractJobID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want models.JobKey
	}{
		{"json", `{"ID": "abc123"}`, "abc123"},
		{"link", `<html><body><a href="/results?ID=xyz_7.0">see results</a></body></html>`, "xyz_7.0"},
		{"meta refresh", `<html><head><meta http-equiv="refresh" content="0; url=/results?ID=r42"></head></html>`, "r42"},
		{"hidden input", `<form><input type="hidden" name="ID" value="h7"></form>`, "h7"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJobID(tt.body)
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ExtractJobID(`{"status": "ok"}`)
	assert.ErrorIs(t, err, ErrNoJobID)
	_, err = ExtractJobID(`<html><a href="/about">about</a></html>`)
	assert.ErrorIs(t, err, ErrNoJobID)
}

func TestVisibleText(t *testing.T) {
	assert.Equal(t, "plain text", VisibleText([]byte("plain text")))
	assert.Equal(t, "A\nB", VisibleText([]byte("<div><p>A</p>\n<style>p{}</style>\n<p>B</p></div>")))
}
