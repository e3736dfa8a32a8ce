package runtimeconfig

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables consulted when the matching config value is empty.
const (
	EnvAPIKey      = "NOTION_API_KEY"
	EnvDatabaseID  = "NOTION_DATABASE_ID"
	EnvDSN         = "MIRROR_DSN"
	EnvStorageRoot = "IMAGE_HOST_STORAGE_PATH"
	EnvWebBasePath = "IMAGE_WEB_BASE_PATH"
)

// LoadFile overlays the YAML document at path on DefaultConfig and then
// fills empty secrets from the environment. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()
	if strings.TrimSpace(path) != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := Decode(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("decode config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	return cfg, nil
}

// Decode unmarshals YAML onto cfg, leaving fields absent from raw untouched.
func Decode(raw []byte, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("decode config: nil target")
	}
	return yaml.Unmarshal(raw, cfg)
}

// ApplyEnv fills empty values from lookup.
func (cfg *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	fill := func(target *string, key string) {
		if strings.TrimSpace(*target) != "" {
			return
		}
		if value, ok := lookup(key); ok {
			*target = strings.TrimSpace(value)
		}
	}
	fill(&cfg.Source.APIKey, EnvAPIKey)
	fill(&cfg.Source.DatabaseID, EnvDatabaseID)
	// Storage locations take the environment value whenever it is set.
	override := func(target *string, key string) {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*target = strings.TrimSpace(value)
		}
	}
	override(&cfg.Storage.DSN, EnvDSN)
	override(&cfg.Assets.StorageRoot, EnvStorageRoot)
	override(&cfg.Assets.WebBasePath, EnvWebBasePath)
}
