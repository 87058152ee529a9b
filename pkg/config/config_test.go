package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	return path
}

func TestLoad_FileValues(t *testing.T) {
	path := writeConfig(t, `
upload:
  url: https://allure.example.com
  project: web-tests
  results_dir: ./out/allure-results
  timeout_seconds: 30
  insecure: true
  headers:
    X-Api-Token: secret
  config:
    file: ./allure.config.mjs
mirror:
  enabled: true
  bucket: test-reports
server:
  listen: ":9000"
  database:
    driver: sqlite
    sqlite:
      path: /tmp/runs.db
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://allure.example.com", cfg.Upload.URL)
	assert.Equal(t, "web-tests", cfg.Upload.Project)
	assert.Equal(t, "./out/allure-results", cfg.Upload.ResultsDir)
	assert.Equal(t, float64(30), cfg.Upload.TimeoutSeconds)
	assert.True(t, cfg.Upload.Insecure)
	assert.Equal(t, "secret", cfg.Upload.Headers["X-Api-Token"])
	assert.Equal(t, "./allure.config.mjs", cfg.Upload.Config.File)

	require.NotNil(t, cfg.Mirror)
	assert.Equal(t, "test-reports", cfg.Mirror.Bucket)

	require.NotNil(t, cfg.Server)
	assert.Equal(t, ":9000", cfg.Server.Listen)
	assert.Equal(t, "/tmp/runs.db", cfg.Server.Database.SQLite.Path)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
upload:
  url: https://allure.example.com
  project: p1
mirror:
  enabled: true
  bucket: b
server: {}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DefaultResultsDir, cfg.Upload.ResultsDir)
	assert.Equal(t, float64(DefaultTimeoutSeconds), cfg.Upload.TimeoutSeconds)
	assert.Equal(t, DefaultMirrorPrefix, cfg.Mirror.Prefix)
	assert.Equal(t, DefaultMirrorConcurrency, cfg.Mirror.Concurrency)
	assert.Equal(t, DefaultListen, cfg.Server.Listen)
	assert.Equal(t, DefaultDataDir, cfg.Server.DataDir)
	assert.Equal(t, "sqlite", cfg.Server.Database.Driver)
	assert.Equal(t, DefaultDataDir+"/uploadoor.db", cfg.Server.Database.SQLite.Path)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultResultsDir, cfg.Upload.ResultsDir)
	assert.Nil(t, cfg.Mirror)
	assert.Nil(t, cfg.Server)
}

func TestLoad_EnvVarOverrides(t *testing.T) {
	path := writeConfig(t, `
upload:
  url: https://from-file.example.com
  project: from-file
  timeout_seconds: 30
`)

	tests := []struct {
		name     string
		envVars  map[string]string
		validate func(t *testing.T, cfg *Config)
	}{
		{
			name:    "no env vars uses yaml values",
			envVars: map[string]string{},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://from-file.example.com", cfg.Upload.URL)
				assert.Equal(t, "from-file", cfg.Upload.Project)
			},
		},
		{
			name: "string override - url",
			envVars: map[string]string{
				"UPLOADOOR_UPLOAD_URL": "https://from-env.example.com",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "https://from-env.example.com", cfg.Upload.URL)
				assert.Equal(t, "from-file", cfg.Upload.Project)
			},
		},
		{
			name: "numeric override - timeout",
			envVars: map[string]string{
				"UPLOADOOR_UPLOAD_TIMEOUT_SECONDS": "15",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.Equal(t, float64(15), cfg.Upload.TimeoutSeconds)
			},
		},
		{
			name: "boolean override - insecure",
			envVars: map[string]string{
				"UPLOADOOR_UPLOAD_INSECURE": "true",
			},
			validate: func(t *testing.T, cfg *Config) {
				assert.True(t, cfg.Upload.Insecure)
			},
		},
		{
			name: "mirror section created from env alone",
			envVars: map[string]string{
				"UPLOADOOR_MIRROR_ENABLED": "true",
				"UPLOADOOR_MIRROR_BUCKET":  "env-bucket",
			},
			validate: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.Mirror)
				assert.True(t, cfg.Mirror.Enabled)
				assert.Equal(t, "env-bucket", cfg.Mirror.Bucket)
				assert.Equal(t, DefaultMirrorPrefix, cfg.Mirror.Prefix)
			},
		},
		{
			name: "nested override - sqlite path",
			envVars: map[string]string{
				"UPLOADOOR_SERVER_LISTEN":      ":7000",
				"UPLOADOOR_SERVER_SQLITE_PATH": "/tmp/env.db",
			},
			validate: func(t *testing.T, cfg *Config) {
				require.NotNil(t, cfg.Server)
				assert.Equal(t, ":7000", cfg.Server.Listen)
				assert.Equal(t, "/tmp/env.db", cfg.Server.Database.SQLite.Path)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := Load(path)
			require.NoError(t, err)

			tt.validate(t, cfg)
		})
	}
}

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:    "missing url",
			mutate:  func(cfg *Config) { cfg.Upload.URL = "" },
			wantErr: "upload.url",
		},
		{
			name:    "missing project",
			mutate:  func(cfg *Config) { cfg.Upload.Project = "" },
			wantErr: "upload.project",
		},
		{
			name:    "non-positive timeout",
			mutate:  func(cfg *Config) { cfg.Upload.TimeoutSeconds = -1 },
			wantErr: "timeout_seconds",
		},
		{
			name: "inline and file together",
			mutate: func(cfg *Config) {
				cfg.Upload.Config = ConfigPart{Inline: "x", File: "y"}
			},
			wantErr: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				Upload: UploadConfig{
					URL:            "https://allure.example.com",
					Project:        "p1",
					TimeoutSeconds: 60,
				},
			}
			tt.mutate(cfg)

			err := cfg.ValidateUpload()

			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateMirror(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateMirror())

	cfg.Mirror = &MirrorConfig{Enabled: false, Bucket: "b"}
	assert.Error(t, cfg.ValidateMirror())

	cfg.Mirror.Enabled = true
	assert.NoError(t, cfg.ValidateMirror())

	cfg.Mirror.Bucket = ""
	assert.Error(t, cfg.ValidateMirror())
}

func TestValidateServer(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.ValidateServer())

	cfg.Server = &ServerConfig{Database: DatabaseConfig{Driver: "mysql"}}
	assert.Error(t, cfg.ValidateServer())

	cfg.Server.Database.Driver = "sqlite"
	assert.NoError(t, cfg.ValidateServer())

	cfg.Server.Database.Driver = "postgres"
	assert.NoError(t, cfg.ValidateServer())
}
