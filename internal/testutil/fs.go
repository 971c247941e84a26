package testutil

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"
)

// CreateTestZip builds an in-memory zip archive holding the given files.
// Entries are written in name order.
func CreateTestZip(t *testing.T, files map[string]string) []byte {
	t.Helper()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	buf := new(bytes.Buffer)
	zipWriter := zip.NewWriter(buf)
	for _, name := range names {
		w, err := zipWriter.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry '%s' in zip: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("Failed to write entry '%s': %v", name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("Failed to close zip: %v", err)
	}
	return buf.Bytes()
}
