package uploader

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	entries := make(map[string]string, len(zr.File))

	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)

		content, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())

		entries[f.Name] = string(content)
	}

	return entries
}

func TestZipDirectory_RoundTrip(t *testing.T) {
	files := map[string]string{
		"result.json":            `{"status":"passed"}`,
		"attachments/log.txt":    "line one\nline two\n",
		"attachments/deep/x.bin": string([]byte{0x00, 0xff, 0x10, 0x42}),
		"categories.json":        "[]",
	}

	dir := t.TempDir()
	writeTree(t, dir, files)

	// Empty directories must not become entries.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "empty", "nested"), 0o755))

	data, err := ZipDirectory(dir)
	require.NoError(t, err)

	entries := readZip(t, data)
	assert.Len(t, entries, len(files))

	for name, content := range files {
		assert.Equal(t, content, entries[name], "entry %s", name)
	}
}

func TestZipDirectory_EntryNamesUseForwardSlashes(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"a/b/c.txt": "x"})

	data, err := ZipDirectory(dir)
	require.NoError(t, err)

	entries := readZip(t, data)
	require.Len(t, entries, 1)
	assert.Contains(t, entries, "a/b/c.txt")
}

func TestZipDirectory_SkipsSymlinks(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"real.json": "{}"})

	if err := os.Symlink(
		filepath.Join(dir, "real.json"), filepath.Join(dir, "link.json"),
	); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	data, err := ZipDirectory(dir)
	require.NoError(t, err)

	entries := readZip(t, data)
	assert.Len(t, entries, 1)
	assert.Contains(t, entries, "real.json")
}

func TestZipDirectory_NotFound(t *testing.T) {
	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{
			name: "missing path",
			path: func(t *testing.T) string {
				return filepath.Join(t.TempDir(), "does-not-exist")
			},
		},
		{
			name: "file instead of directory",
			path: func(t *testing.T) string {
				p := filepath.Join(t.TempDir(), "file.json")
				require.NoError(t, os.WriteFile(p, []byte("{}"), 0o644))

				return p
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ZipDirectory(tt.path(t))

			var notFound *NotFoundError
			require.ErrorAs(t, err, &notFound)
			assert.Equal(t, "results directory", notFound.Kind)
		})
	}
}

func TestZipDirectory_EmptyDirectory(t *testing.T) {
	data, err := ZipDirectory(t.TempDir())
	require.NoError(t, err)

	entries := readZip(t, data)
	assert.Empty(t, entries)
}
