package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allureops/uploadoor/pkg/config"
)

func TestResolvePrefix(t *testing.T) {
	tests := []struct {
		name    string
		prefix  string
		project string
		stamp   string
		want    string
	}{
		{
			name:    "default prefix",
			prefix:  "",
			project: "web-tests",
			stamp:   "20260824T120000Z",
			want:    "allure/runs/web-tests/20260824T120000Z",
		},
		{
			name:    "custom prefix",
			prefix:  "qa/reports",
			project: "api-tests",
			stamp:   "20260824T120000Z",
			want:    "qa/reports/api-tests/20260824T120000Z",
		},
		{
			name:    "trailing slash stripped",
			prefix:  "qa/reports/",
			project: "p1",
			stamp:   "s1",
			want:    "qa/reports/p1/s1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u := &s3Uploader{
				cfg: &config.MirrorConfig{Prefix: tt.prefix},
			}
			got := u.resolvePrefix(tt.project, tt.stamp)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantPrefix string
	}{
		{
			name:       "json file",
			path:       "results/result.json",
			wantPrefix: "application/json",
		},
		{
			name:       "no extension",
			path:       "results/Makefile",
			wantPrefix: "application/octet-stream",
		},
		{
			name:       "html file",
			path:       "results/index.html",
			wantPrefix: "text/html",
		},
		{
			name:       "txt file",
			path:       "results/notes.txt",
			wantPrefix: "text/plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectContentType(tt.path)
			assert.Contains(t, got, tt.wantPrefix)
		})
	}
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{
		"result.json",
		filepath.Join("attachments", "log.txt"),
		filepath.Join("attachments", "deep", "x.bin"),
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}

	files, err := collectFiles(dir)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		"result.json",
		filepath.Join("attachments", "log.txt"),
		filepath.Join("attachments", "deep", "x.bin"),
	}, files)
}
