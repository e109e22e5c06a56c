// Package ingest pushes collector archives into a BloodHound instance.
package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DataExtension marks the archive entries that are uploaded
const DataExtension = ".json"

// Extract unpacks archivePath into a freshly emptied stagingDir and returns the
// extracted data files in archive order.
func Extract(archivePath, stagingDir string) ([]string, error) {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive %s: %w", archivePath, err)
	}
	defer r.Close() //nolint:errcheck

	// Files from a previous run must not leak into this one
	if err := os.RemoveAll(stagingDir); err != nil {
		return nil, fmt.Errorf("failed to clear staging directory: %w", err)
	}
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}

	root := filepath.Clean(stagingDir) + string(os.PathSeparator)

	var selected []string
	for _, f := range r.File {
		dest := filepath.Join(stagingDir, f.Name)
		if !strings.HasPrefix(dest, root) {
			return nil, fmt.Errorf("archive entry %q escapes the staging directory", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(dest, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create %s: %w", dest, err)
			}
			continue
		}

		if err := extractFile(f, dest); err != nil {
			return nil, err
		}

		if strings.EqualFold(filepath.Ext(f.Name), DataExtension) {
			selected = append(selected, dest)
		}
	}

	return selected, nil
}

func extractFile(f *zip.File, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(dest), err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open archive entry %s: %w", f.Name, err)
	}
	defer src.Close() //nolint:errcheck

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		return fmt.Errorf("failed to extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// ReadData returns the file contents as UTF-8, dropping a byte order mark.
// UTF-16 input with a BOM is converted.
func ReadData(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	data, err := io.ReadAll(transform.NewReader(f, decoder))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return data, nil
}
