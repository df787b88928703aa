package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigYAML is the default configuration content.
const DefaultConfigYAML = `# SpellStock Configuration

rules:
  min_confidence: 0.6
  max_days_out: 7      # 0 keeps same-day events only; -1 disables the limit
  ignored_ingredients: []
  # restaurant_id: 1 (defaults to the selected restaurant)

autopilot:
  mode: "off"          # off | guarded | full
  schedule: "*/15 * * * *"

dedup:
  window: 24h

llm:
  provider: openai
  model: gpt-4o-mini
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

embedder:
  provider: openai
  model: text-embedding-3-small
  # api_key: your-api-key (or set OPENAI_API_KEY env var)

qdrant:
  # host: localhost (leave unset to disable the alert index)
  port: 6334
  # api_key: your-api-key (for Qdrant Cloud)

executor:
  # base_url: https://ops.example.com/api (leave unset for the simulated executor)
  # token: your-token (or set SPELLSTOCK_EXECUTOR_TOKEN env var)
  timeout: 10s

history:
  # base_url: https://history.example.com
  timeout: 5s

server:
  addr: ":8080"
`

// WriteDefault creates the .spellstock directory and writes a default config file.
func WriteDefault(basePath string) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	configFile := filepath.Join(configDir, DefaultConfigFile)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists: %s", configFile)
	}

	if err := os.WriteFile(configFile, []byte(DefaultConfigYAML), 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Write writes the given config to the config file. The file may hold API
// keys, so it is written owner-only.
func Write(basePath string, cfg *Config) error {
	configDir := filepath.Join(basePath, DefaultConfigDir)
	configFile := filepath.Join(configDir, DefaultConfigFile)

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configFile, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// Exists checks if a spellstock config exists in the given path.
func Exists(basePath string) bool {
	_, err := os.Stat(ConfigFilePath(basePath))
	return err == nil
}
