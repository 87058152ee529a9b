package config

import (
	"strings"

	"github.com/mitchellh/mapstructure"
)

// EnvPrefix namespaces all environment overrides.
const EnvPrefix = "UPLOADOOR_"

// envOverrides maps environment variable suffixes to config paths. The list
// is explicit because field names themselves contain underscores, which
// makes generic splitting ambiguous.
var envOverrides = map[string]string{
	"UPLOAD_URL":               "upload.url",
	"UPLOAD_PROJECT":           "upload.project",
	"UPLOAD_RESULTS_DIR":       "upload.results_dir",
	"UPLOAD_TIMEOUT_SECONDS":   "upload.timeout_seconds",
	"UPLOAD_INSECURE":          "upload.insecure",
	"UPLOAD_CONFIG_FILE":       "upload.config.file",
	"MIRROR_ENABLED":           "mirror.enabled",
	"MIRROR_ENDPOINT_URL":      "mirror.endpoint_url",
	"MIRROR_REGION":            "mirror.region",
	"MIRROR_BUCKET":            "mirror.bucket",
	"MIRROR_ACCESS_KEY_ID":     "mirror.access_key_id",
	"MIRROR_SECRET_ACCESS_KEY": "mirror.secret_access_key",
	"MIRROR_FORCE_PATH_STYLE":  "mirror.force_path_style",
	"MIRROR_PREFIX":            "mirror.prefix",
	"SERVER_LISTEN":            "server.listen",
	"SERVER_DATA_DIR":          "server.data_dir",
	"SERVER_DATABASE_DRIVER":   "server.database.driver",
	"SERVER_SQLITE_PATH":       "server.database.sqlite.path",
}

// applyEnvOverrides decodes UPLOADOOR_* environment variables onto cfg.
// String values are weakly typed so "true" and "30" land in bool and
// numeric fields.
func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	values := map[string]any{}

	for suffix, path := range envOverrides {
		v := getenv(EnvPrefix + suffix)
		if v == "" {
			continue
		}

		setPath(values, path, v)
	}

	if len(values) == 0 {
		return nil
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}

	return dec.Decode(values)
}

// setPath inserts value into a nested map at the dot-separated path.
func setPath(m map[string]any, path string, value string) {
	parts := strings.Split(path, ".")

	for _, p := range parts[:len(parts)-1] {
		child, ok := m[p].(map[string]any)
		if !ok {
			child = map[string]any{}
			m[p] = child
		}

		m = child
	}

	m[parts[len(parts)-1]] = value
}
