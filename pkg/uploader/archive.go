package uploader

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// ZipDirectory compresses every regular file under dir into a single
// in-memory zip archive. Entry names are the files' forward-slash relative
// paths so an archive produced on Windows extracts identically on Linux.
// Directories, symlinks, and special files are not recorded as entries.
//
// The archive is fully buffered in memory before it is returned; very large
// result directories are a known limitation of this layer.
func ZipDirectory(dir string) ([]byte, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, &NotFoundError{Kind: "results directory", Path: dir}
	}

	var buf bytes.Buffer

	zw := zip.NewWriter(&buf)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if !d.Type().IsRegular() {
			return nil
		}

		relPath, err := filepath.Rel(dir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		w, err := zw.Create(filepath.ToSlash(relPath))
		if err != nil {
			return fmt.Errorf("creating entry %s: %w", relPath, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", relPath, err)
		}

		if _, err := io.Copy(w, f); err != nil {
			_ = f.Close()

			return fmt.Errorf("compressing %s: %w", relPath, err)
		}

		return f.Close()
	})
	if err != nil {
		_ = zw.Close()

		return nil, fmt.Errorf("archiving %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalizing archive: %w", err)
	}

	return buf.Bytes(), nil
}
