// Package archive reads the results bundle the backend returns for a job.
// The bundle is usually a zip file, but any format the archives library
// recognises is accepted.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mholt/archives"
	"github.com/sb-ncbr/proptimus-web/internal/util"
)

// ErrNotArchive is returned when the data is not a recognised archive.
var ErrNotArchive = errors.New("data is not a supported archive")

// Entry is one file in a bundle.
type Entry struct {
	Name string `json:"name"`
	Size int64  `json:"size"`
}

func extractor(ctx context.Context, name string, data []byte) (archives.Extractor, error) {
	format, _, err := archives.Identify(ctx, name, bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return nil, ErrNotArchive
		}
		return nil, fmt.Errorf("identify %s: %w", name, err)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return nil, ErrNotArchive
	}
	return ex, nil
}

// List returns the regular files in the bundle in natural name order.
func List(ctx context.Context, name string, data []byte) ([]Entry, error) {
	ex, err := extractor(ctx, name, data)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	err = ex.Extract(ctx, bytes.NewReader(data), func(ctx context.Context, f archives.FileInfo) error {
		if f.IsDir() {
			return nil
		}
		entries = append(entries, Entry{Name: f.NameInArchive, Size: f.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", name, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return util.NaturalLess(entries[i].Name, entries[j].Name)
	})
	return entries, nil
}

// Extract writes the bundle's files under dir and returns their paths.
// Entries that would escape dir are rejected.
func Extract(ctx context.Context, name string, data []byte, dir string) ([]string, error) {
	ex, err := extractor(ctx, name, data)
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	var written []string
	err = ex.Extract(ctx, bytes.NewReader(data), func(ctx context.Context, f archives.FileInfo) error {
		target := filepath.Join(root, filepath.FromSlash(f.NameInArchive))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes the destination", f.NameInArchive)
		}
		if f.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		if !f.Mode().IsRegular() {
			return nil
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		if err := writeEntry(f, target); err != nil {
			return err
		}
		written = append(written, target)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", name, err)
	}
	sort.Slice(written, func(i, j int) bool { return util.NaturalLess(written[i], written[j]) })
	return written, nil
}

func writeEntry(f archives.FileInfo, target string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}
