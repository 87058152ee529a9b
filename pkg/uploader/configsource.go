package uploader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// inlineConfigName is the filename reported for inline config parts.
const inlineConfigName = "allure.config.mjs"

// ConfigSource selects where the optional report config attachment comes
// from: literal text or a file on disk. The zero value attaches nothing.
type ConfigSource struct {
	inline string
	path   string
}

// InlineConfig attaches the given text as the config part. Surrounding
// whitespace is trimmed; text that is empty after trimming attaches nothing.
func InlineConfig(text string) ConfigSource {
	return ConfigSource{inline: text}
}

// ConfigFile attaches the contents of the file at path as the config part,
// using the file's base name.
func ConfigFile(path string) ConfigSource {
	return ConfigSource{path: path}
}

// resolve returns the part filename and body. present is false when no
// config part should be attached at all.
func (c ConfigSource) resolve() (name string, data []byte, present bool, err error) {
	if c.path != "" {
		info, statErr := os.Stat(c.path)
		if statErr != nil || !info.Mode().IsRegular() {
			return "", nil, false, &NotFoundError{Kind: "config file", Path: c.path}
		}

		data, err = os.ReadFile(c.path)
		if err != nil {
			return "", nil, false, fmt.Errorf("reading config file: %w", err)
		}

		return filepath.Base(c.path), data, true, nil
	}

	text := strings.TrimSpace(c.inline)
	if text == "" {
		return "", nil, false, nil
	}

	return inlineConfigName, []byte(text), true, nil
}
