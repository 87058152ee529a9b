package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultResultsDir is where test runners drop report artifacts.
	DefaultResultsDir = "allure-results"

	// DefaultTimeoutSeconds bounds the upload round trip.
	DefaultTimeoutSeconds = 60

	// DefaultListen is the local ingest server address.
	DefaultListen = ":8586"

	// DefaultDataDir is where the ingest server stores received archives.
	DefaultDataDir = "./uploadoor-data"

	// DefaultMirrorPrefix is the S3 key prefix for mirrored runs.
	DefaultMirrorPrefix = "allure/runs"

	// DefaultMirrorConcurrency bounds parallel S3 puts while mirroring.
	DefaultMirrorConcurrency = 4
)

// Config is the root configuration for uploadoor.
type Config struct {
	Upload UploadConfig  `yaml:"upload" mapstructure:"upload"`
	Mirror *MirrorConfig `yaml:"mirror,omitempty" mapstructure:"mirror"`
	Server *ServerConfig `yaml:"server,omitempty" mapstructure:"server"`
}

// UploadConfig describes the upload target and transport settings.
type UploadConfig struct {
	URL            string            `yaml:"url" mapstructure:"url"`
	Project        string            `yaml:"project" mapstructure:"project"`
	ResultsDir     string            `yaml:"results_dir" mapstructure:"results_dir"`
	TimeoutSeconds float64           `yaml:"timeout_seconds,omitempty" mapstructure:"timeout_seconds"`
	Insecure       bool              `yaml:"insecure" mapstructure:"insecure"`
	Headers        map[string]string `yaml:"headers,omitempty" mapstructure:"headers"`
	Config         ConfigPart        `yaml:"config,omitempty" mapstructure:"config"`
}

// ConfigPart selects the optional report config attachment. At most one of
// Inline and File may be set.
type ConfigPart struct {
	Inline string `yaml:"inline,omitempty" mapstructure:"inline"`
	File   string `yaml:"file,omitempty" mapstructure:"file"`
}

// MirrorConfig contains S3-compatible storage settings for run mirroring.
type MirrorConfig struct {
	Enabled         bool   `yaml:"enabled" mapstructure:"enabled"`
	EndpointURL     string `yaml:"endpoint_url,omitempty" mapstructure:"endpoint_url"`
	Region          string `yaml:"region,omitempty" mapstructure:"region"`
	Bucket          string `yaml:"bucket" mapstructure:"bucket"`
	AccessKeyID     string `yaml:"access_key_id,omitempty" mapstructure:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key,omitempty" mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `yaml:"force_path_style" mapstructure:"force_path_style"`
	Prefix          string `yaml:"prefix,omitempty" mapstructure:"prefix"`
	StorageClass    string `yaml:"storage_class,omitempty" mapstructure:"storage_class"`
	ACL             string `yaml:"acl,omitempty" mapstructure:"acl"`
	Concurrency     int    `yaml:"concurrency,omitempty" mapstructure:"concurrency"`
}

// ServerConfig contains settings for the local ingest server.
type ServerConfig struct {
	Listen      string         `yaml:"listen" mapstructure:"listen"`
	DataDir     string         `yaml:"data_dir" mapstructure:"data_dir"`
	CORSOrigins []string       `yaml:"cors_origins,omitempty" mapstructure:"cors_origins"`
	Database    DatabaseConfig `yaml:"database" mapstructure:"database"`
}

// DatabaseConfig contains database connection settings for the ingest store.
type DatabaseConfig struct {
	Driver   string         `yaml:"driver" mapstructure:"driver"`
	SQLite   SQLiteConfig   `yaml:"sqlite,omitempty" mapstructure:"sqlite"`
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`
}

// SQLiteConfig contains SQLite-specific settings.
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty" mapstructure:"ssl_mode"`
}

// Load reads and parses a configuration file, then applies environment
// overrides and defaults. An empty path starts from a zero config so the
// CLI can run on flags and environment alone.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}

		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(&cfg, os.Getenv); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// applyDefaults sets default values for unspecified configuration options.
func (c *Config) applyDefaults() {
	if c.Upload.ResultsDir == "" {
		c.Upload.ResultsDir = DefaultResultsDir
	}

	if c.Upload.TimeoutSeconds == 0 {
		c.Upload.TimeoutSeconds = DefaultTimeoutSeconds
	}

	if c.Mirror != nil {
		if c.Mirror.Prefix == "" {
			c.Mirror.Prefix = DefaultMirrorPrefix
		}

		if c.Mirror.Concurrency <= 0 {
			c.Mirror.Concurrency = DefaultMirrorConcurrency
		}
	}

	if c.Server != nil {
		if c.Server.Listen == "" {
			c.Server.Listen = DefaultListen
		}

		if c.Server.DataDir == "" {
			c.Server.DataDir = DefaultDataDir
		}

		if c.Server.Database.Driver == "" {
			c.Server.Database.Driver = "sqlite"
		}

		if c.Server.Database.Driver == "sqlite" && c.Server.Database.SQLite.Path == "" {
			c.Server.Database.SQLite.Path = c.Server.DataDir + "/uploadoor.db"
		}
	}
}

// ValidateUpload checks the settings required by the upload command.
func (c *Config) ValidateUpload() error {
	if c.Upload.URL == "" {
		return fmt.Errorf("upload.url is required")
	}

	if c.Upload.Project == "" {
		return fmt.Errorf("upload.project is required")
	}

	if c.Upload.TimeoutSeconds <= 0 {
		return fmt.Errorf("upload.timeout_seconds must be positive")
	}

	if c.Upload.Config.Inline != "" && c.Upload.Config.File != "" {
		return fmt.Errorf("upload.config: inline and file are mutually exclusive")
	}

	return nil
}

// ValidateMirror checks the settings required by the mirror command.
func (c *Config) ValidateMirror() error {
	if c.Mirror == nil || !c.Mirror.Enabled {
		return fmt.Errorf("mirror is not configured or not enabled")
	}

	if c.Mirror.Bucket == "" {
		return fmt.Errorf("mirror.bucket is required")
	}

	return nil
}

// ValidateServer checks the settings required by the serve command.
func (c *Config) ValidateServer() error {
	if c.Server == nil {
		return fmt.Errorf("server section is required")
	}

	switch c.Server.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("server.database.driver must be sqlite or postgres, got %q",
			c.Server.Database.Driver)
	}

	return nil
}
