// Package config loads the server configuration consumed by the
// processing core.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

const schema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"properties": {
		"parallelPluginLoad": {"type": "boolean"},
		"numRecents": {"type": "integer", "minimum": 1},
		"pluginPaths": {"type": "array", "items": {"type": "string"}},
		"tapDir": {"type": "string"}
	},
	"additionalProperties": false
}`

// Config carries the server flags the processing core consumes.
type Config struct {
	// ParallelPluginLoad allows concurrent plugin loads; when false, loads
	// and unload releases serialize on a process-wide mutex.
	ParallelPluginLoad bool `json:"parallelPluginLoad"`
	// NumRecents bounds each remote host's MRU list.
	NumRecents int `json:"numRecents"`
	// PluginPaths are the catalog's search roots.
	PluginPaths []string `json:"pluginPaths"`
	// TapDir, when set, enables per-session WAV capture of processed
	// output.
	TapDir string `json:"tapDir"`
}

func Default() *Config {
	return &Config{
		ParallelPluginLoad: true,
		NumRecents:         10,
	}
}

// Load reads and validates the configuration file. A missing file yields
// the defaults; a present but invalid file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return nil, fmt.Errorf("invalid config %s: %s", path, strings.Join(details, "; "))
	}
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}
