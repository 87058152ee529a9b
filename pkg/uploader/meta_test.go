package uploader

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mapEnv is an EnvProvider over a fixed map.
type mapEnv map[string]string

func (m mapEnv) Getenv(key string) string { return m[key] }

func TestDefaultMeta(t *testing.T) {
	tests := []struct {
		name        string
		env         mapEnv
		wantTrigger string
		wantBranch  any
		wantCommit  any
	}{
		{
			name: "gitlab variables win",
			env: mapEnv{
				"CI_PIPELINE_SOURCE": "merge_request_event",
				"GITHUB_EVENT_NAME":  "push",
				"CI_COMMIT_REF_NAME": "feature/x",
				"GITHUB_REF_NAME":    "main",
				"CI_COMMIT_SHA":      "abc123",
				"GITHUB_SHA":         "def456",
			},
			wantTrigger: "merge_request_event",
			wantBranch:  "feature/x",
			wantCommit:  "abc123",
		},
		{
			name: "github fallback",
			env: mapEnv{
				"GITHUB_EVENT_NAME": "pull_request",
				"GITHUB_REF_NAME":   "main",
				"GITHUB_SHA":        "def456",
			},
			wantTrigger: "pull_request",
			wantBranch:  "main",
			wantCommit:  "def456",
		},
		{
			name:        "bare environment",
			env:         mapEnv{},
			wantTrigger: "local",
			wantBranch:  nil,
			wantCommit:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			meta := DefaultMeta(tt.env)

			assert.Equal(t, tt.wantTrigger, meta["trigger"])
			assert.Equal(t, tt.wantBranch, meta["branch"])
			assert.Equal(t, tt.wantCommit, meta["commit"])

			startedAt, ok := meta["started_at"].(string)
			require.True(t, ok)

			parsed, err := time.Parse(time.RFC3339, startedAt)
			require.NoError(t, err)
			assert.WithinDuration(t, time.Now().UTC(), parsed, time.Minute)
		})
	}
}
