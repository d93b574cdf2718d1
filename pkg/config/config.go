// Package config loads webchat server configuration from a YAML file,
// command-line flags and WEBCHAT_* environment variables, with a single
// effective source chosen at startup.
package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// RuntimeConfig holds derived runtime values other packages may query
// after startup.
type RuntimeConfig struct {
	ParticipantKeys map[string]struct{}
	EditorKeys      map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

// GetParticipantKeys returns a copy of the configured participant keys.
func GetParticipantKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.ParticipantKeys == nil {
		return out
	}
	for k := range runtimeCfg.ParticipantKeys {
		out[k] = struct{}{}
	}
	return out
}

// GetEditorKeys returns a copy of the configured editor keys.
func GetEditorKeys() map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil || runtimeCfg.EditorKeys == nil {
		return out
	}
	for k := range runtimeCfg.EditorKeys {
		out[k] = struct{}{}
	}
	return out
}

// Load reads and parses a YAML config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
