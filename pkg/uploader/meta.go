package uploader

import (
	"os"
	"time"
)

// EnvProvider supplies environment lookups for metadata defaults so tests
// can inject fixed values instead of reading the process environment.
type EnvProvider interface {
	Getenv(key string) string
}

// OSEnv is the EnvProvider backed by the process environment.
type OSEnv struct{}

// Getenv returns the value of the named environment variable.
func (OSEnv) Getenv(key string) string { return os.Getenv(key) }

// DefaultMeta builds the baseline run metadata from CI environment
// variables, preferring GitLab CI names and falling back to GitHub Actions.
// Branch and commit are null when neither CI variable is set; trigger falls
// back to "local".
func DefaultMeta(env EnvProvider) map[string]any {
	return map[string]any{
		"trigger": firstNonEmpty(
			env.Getenv("CI_PIPELINE_SOURCE"),
			env.Getenv("GITHUB_EVENT_NAME"),
			"local",
		),
		"branch": nullable(firstNonEmpty(
			env.Getenv("CI_COMMIT_REF_NAME"),
			env.Getenv("GITHUB_REF_NAME"),
		)),
		"commit": nullable(firstNonEmpty(
			env.Getenv("CI_COMMIT_SHA"),
			env.Getenv("GITHUB_SHA"),
		)),
		"started_at": time.Now().UTC().Format(time.RFC3339),
	}
}

// firstNonEmpty returns the first non-empty value, or "".
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}

// nullable maps "" to JSON null so absent CI variables stay visible in the
// uploaded metadata document.
func nullable(s string) any {
	if s == "" {
		return nil
	}

	return s
}
