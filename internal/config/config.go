// Package config loads the Configuration collaborator described in
// spec.md §6.3: storage mode, retention policy, ignore patterns, tier
// runtime parameters, and per-agent schema overrides. Grounded on the
// teacher's settings package: a base file plus an optional ".local.json"
// override, merged key-by-key from a raw JSON map so only present keys
// override the base.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rewindhq/rewind/internal/jsonutil"
	"github.com/rewindhq/rewind/internal/paths"
)

// SchemaVersion is the config.json schema version this binary understands
// (internal/versioncheck compares it against what's on disk).
const SchemaVersion = "1.0.0"

// Retention bounds how many checkpoints (and how old) the Store keeps
// (spec.md §4.1 prune).
type Retention struct {
	MaxCount   int `json:"max_count"`
	MaxAgeDays int `json:"max_age_days"`
}

// Ignore controls which files the Store's scan_working_tree skips
// (spec.md §4.1).
type Ignore struct {
	Patterns       []string `json:"patterns"`
	Additional     []string `json:"additional,omitempty"`
	ForceInclude   []string `json:"force_include,omitempty"`
	HonorGitignore bool     `json:"honor_gitignore"`
}

// TierRuntime holds the Hook Policy's anti-spam cooldown and optional
// significance threshold (spec.md §4.5).
type TierRuntime struct {
	AntiSpamSeconds int `json:"anti_spam_seconds"`
	MinChangeSize   int `json:"min_change_size,omitempty"`
}

// AgentSchema is the per-agent descriptor the Transcript Manager consumes
// (spec.md §4.2).
type AgentSchema struct {
	EventIDField      []string `json:"event_id_field"`
	TitlePrefixPolicy bool     `json:"title_prefix_policy"`
}

// Config is the full Configuration collaborator (spec.md §6.3).
type Config struct {
	SchemaVersion string                 `json:"schema_version"`
	StorageMode   paths.StorageMode      `json:"storage_mode"`
	Retention     Retention              `json:"retention"`
	Ignore        Ignore                 `json:"ignore"`
	TierRuntime   TierRuntime            `json:"tier_runtime"`
	AgentSchemas  map[string]AgentSchema `json:"agent_schemas,omitempty"`
	// Telemetry is nil when unconfigured, which the telemetry client treats
	// as disabled (spec.md §10).
	Telemetry *bool `json:"telemetry,omitempty"`
}

// Default returns the configuration used when no config.json exists yet.
func Default() *Config {
	return &Config{
		SchemaVersion: SchemaVersion,
		StorageMode:   paths.ModeProject,
		Retention:     Retention{MaxCount: 50, MaxAgeDays: 30},
		Ignore: Ignore{
			Patterns:       []string{".agent/", ".rewind/", ".git/", "node_modules/"},
			HonorGitignore: true,
		},
		TierRuntime: TierRuntime{AntiSpamSeconds: 30},
		AgentSchemas: map[string]AgentSchema{
			"claude-code": {EventIDField: []string{"uuid", "id"}, TitlePrefixPolicy: true},
			"gemini-cli":  {EventIDField: []string{"id"}, TitlePrefixPolicy: false},
			"generic":     {EventIDField: []string{"id", "uuid"}, TitlePrefixPolicy: false},
		},
	}
}

// localFileName is the uncommitted override file, merged over the base.
const localFileName = "config.local.json"

// Load reads storageRoot/config.json, applies storageRoot/config.local.json
// overrides if present, and fills in defaults for anything still unset.
// Returns Default() if neither file exists.
func Load(storageRoot string) (*Config, error) {
	cfg := Default()

	basePath := filepath.Join(storageRoot, paths.ConfigFileName)
	if err := jsonutil.ReadJSON(basePath, cfg); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	localPath := filepath.Join(storageRoot, localFileName)
	localData, err := os.ReadFile(localPath) //nolint:gosec // path built from storage root
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading local config override: %w", err)
		}
		return cfg, nil
	}

	if err := mergeOverride(cfg, localData); err != nil {
		return nil, fmt.Errorf("merging local config override: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to storageRoot/config.json atomically.
func Save(storageRoot string, cfg *Config) error {
	return jsonutil.WriteAtomic(filepath.Join(storageRoot, paths.ConfigFileName), cfg)
}

// mergeOverride merges only the keys present in data into cfg, so a partial
// override file (e.g. just {"retention": {"max_count": 10}}) doesn't wipe
// out the rest of the base config.
func mergeOverride(cfg *Config, data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing override JSON: %w", err)
	}

	if v, ok := raw["storage_mode"]; ok {
		if err := json.Unmarshal(v, &cfg.StorageMode); err != nil {
			return fmt.Errorf("parsing storage_mode: %w", err)
		}
	}
	if v, ok := raw["retention"]; ok {
		if err := json.Unmarshal(v, &cfg.Retention); err != nil {
			return fmt.Errorf("parsing retention: %w", err)
		}
	}
	if v, ok := raw["ignore"]; ok {
		if err := json.Unmarshal(v, &cfg.Ignore); err != nil {
			return fmt.Errorf("parsing ignore: %w", err)
		}
	}
	if v, ok := raw["tier_runtime"]; ok {
		if err := json.Unmarshal(v, &cfg.TierRuntime); err != nil {
			return fmt.Errorf("parsing tier_runtime: %w", err)
		}
	}
	if v, ok := raw["telemetry"]; ok {
		if err := json.Unmarshal(v, &cfg.Telemetry); err != nil {
			return fmt.Errorf("parsing telemetry: %w", err)
		}
	}
	if v, ok := raw["agent_schemas"]; ok {
		overrides := map[string]AgentSchema{}
		if err := json.Unmarshal(v, &overrides); err != nil {
			return fmt.Errorf("parsing agent_schemas: %w", err)
		}
		if cfg.AgentSchemas == nil {
			cfg.AgentSchemas = map[string]AgentSchema{}
		}
		for k, s := range overrides {
			cfg.AgentSchemas[k] = s
		}
	}
	return nil
}
