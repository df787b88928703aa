// Package config provides configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigDir is the directory name for spellstock configuration.
	DefaultConfigDir = ".spellstock"
	// DefaultConfigFile is the default config file name.
	DefaultConfigFile = "config.yaml"
	// DefaultRestaurantsFile is the default restaurants registry file name.
	DefaultRestaurantsFile = "restaurants.yaml"
	// DefaultEnvFile is loaded from the base path before env overrides apply.
	DefaultEnvFile = ".env"
)

var (
	// reNonAlphanumeric matches characters that aren't alphanumeric or underscore.
	reNonAlphanumeric = regexp.MustCompile(`[^a-z0-9_]`)
	// reMultipleUnderscores matches consecutive underscores.
	reMultipleUnderscores = regexp.MustCompile(`_+`)
)

// Config holds static configuration (read-only after init).
type Config struct {
	Rules     RulesConfig     `yaml:"rules"`
	Autopilot AutopilotConfig `yaml:"autopilot"`
	Dedup     DedupConfig     `yaml:"dedup"`
	LLM       LLMConfig       `yaml:"llm,omitempty"`
	Embedder  EmbedderConfig  `yaml:"embedder,omitempty"`
	Qdrant    QdrantConfig    `yaml:"qdrant,omitempty"`
	SQLite    SQLiteConfig    `yaml:"sqlite,omitempty"`
	Executor  ExecutorConfig  `yaml:"executor,omitempty"`
	History   HistoryConfig   `yaml:"history,omitempty"`
	Server    ServerConfig    `yaml:"server,omitempty"`
}

// RulesConfig holds the rule engine thresholds and scope.
type RulesConfig struct {
	MinConfidence      float64  `yaml:"min_confidence"`
	MaxDaysOut         int      `yaml:"max_days_out"`
	IgnoredIngredients []string `yaml:"ignored_ingredients,omitempty"`
	// RestaurantID scopes the engine to one restaurant. Zero means the
	// restaurant selected on the command line.
	RestaurantID int `yaml:"restaurant_id,omitempty"`
}

// AutopilotConfig holds the autopilot mode and its cron schedule.
type AutopilotConfig struct {
	Mode     string `yaml:"mode"`
	Schedule string `yaml:"schedule,omitempty"`
}

// DedupConfig holds the alert deduplication window.
type DedupConfig struct {
	Window time.Duration `yaml:"window"`
}

// LLMConfig holds configuration for the intent translator.
type LLMConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	// BaseURL points at an OpenAI-compatible endpoint. Empty uses OpenAI.
	BaseURL string `yaml:"base_url,omitempty"`
}

// EmbedderConfig holds configuration for the embedding provider.
type EmbedderConfig struct {
	Provider string `yaml:"provider,omitempty"`
	Model    string `yaml:"model,omitempty"`
	APIKey   string `yaml:"api_key,omitempty"`
	BaseURL  string `yaml:"base_url,omitempty"`
}

// QdrantConfig holds configuration for the alert index. An empty Host
// disables it.
type QdrantConfig struct {
	Host       string `yaml:"host,omitempty"`
	Port       int    `yaml:"port,omitempty"`
	Collection string `yaml:"collection,omitempty"`
	APIKey     string `yaml:"api_key,omitempty"`
}

// SQLiteConfig holds configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the file path to the SQLite database.
	// For per-restaurant databases, this is computed using SQLitePathForRestaurant.
	Path string `yaml:"path,omitempty"`
}

// ExecutorConfig holds the side-effect executor endpoint. An empty BaseURL
// selects the simulated executor.
type ExecutorConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Token   string        `yaml:"token,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// HistoryConfig holds the historical-context service endpoint. An empty
// BaseURL means no history is available.
type HistoryConfig struct {
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// ServerConfig holds the HTTP API listen address.
type ServerConfig struct {
	Addr string `yaml:"addr,omitempty"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Rules: RulesConfig{
			MinConfidence: 0.6,
			MaxDaysOut:    7,
		},
		Autopilot: AutopilotConfig{
			Mode:     "off",
			Schedule: "*/15 * * * *",
		},
		Dedup: DedupConfig{
			Window: 24 * time.Hour,
		},
		LLM: LLMConfig{
			Provider: "openai",
			Model:    "gpt-4o-mini",
		},
		Embedder: EmbedderConfig{
			Provider: "openai",
			Model:    "text-embedding-3-small",
		},
		Qdrant: QdrantConfig{
			Port: 6334,
		},
		Executor: ExecutorConfig{
			Timeout: 10 * time.Second,
		},
		History: HistoryConfig{
			Timeout: 5 * time.Second,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

// Load loads configuration from the .spellstock directory in the given path.
func Load(basePath string) (*Config, error) {
	configFile := filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)

	data, err := os.ReadFile(configFile)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s (run 'spellstock init' first)", configFile)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Start with defaults
	cfg := Default()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := LoadEnvFile(basePath); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from .env in basePath into the process
// environment. Variables already set are kept. A missing file is not an error.
func LoadEnvFile(basePath string) error {
	err := godotenv.Load(filepath.Join(basePath, DefaultEnvFile))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading env file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.LLM.APIKey == "" {
			c.LLM.APIKey = key
		}
		if c.Embedder.APIKey == "" {
			c.Embedder.APIKey = key
		}
	}
	if key := os.Getenv("QDRANT_API_KEY"); key != "" && c.Qdrant.APIKey == "" {
		c.Qdrant.APIKey = key
	}
	if token := os.Getenv("SPELLSTOCK_EXECUTOR_TOKEN"); token != "" && c.Executor.Token == "" {
		c.Executor.Token = token
	}
}

// Validate checks values the services cannot recover from.
func (c *Config) Validate() error {
	if c.Rules.MinConfidence < 0 || c.Rules.MinConfidence > 1 {
		return fmt.Errorf("rules.min_confidence must be within [0,1], got %v", c.Rules.MinConfidence)
	}
	if c.Rules.MaxDaysOut < -1 {
		return fmt.Errorf("rules.max_days_out must be -1 (no limit) or more, got %d", c.Rules.MaxDaysOut)
	}
	switch c.Autopilot.Mode {
	case "", "off", "guarded", "full":
	default:
		return fmt.Errorf("autopilot.mode must be off, guarded or full, got %q", c.Autopilot.Mode)
	}
	if c.Dedup.Window <= 0 {
		return fmt.Errorf("dedup.window must be positive, got %s", c.Dedup.Window)
	}
	return nil
}

// ConfigDir returns the path to the .spellstock config directory.
func ConfigDir(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir)
}

// ConfigFilePath returns the path to the config file.
func ConfigFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultConfigFile)
}

// RestaurantsFilePath returns the path to the restaurants registry.
func RestaurantsFilePath(basePath string) string {
	return filepath.Join(basePath, DefaultConfigDir, DefaultRestaurantsFile)
}

// SanitizeName converts a restaurant name to a valid directory and collection suffix.
func SanitizeName(name string) string {
	name = strings.ToLower(name)

	// Replace spaces and hyphens with underscores
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")

	name = reNonAlphanumeric.ReplaceAllString(name, "")
	name = reMultipleUnderscores.ReplaceAllString(name, "_")
	name = strings.Trim(name, "_")

	if name == "" {
		return "default"
	}

	return name
}

// GenerateCollectionName creates the alert collection name for a restaurant.
func GenerateCollectionName(restaurantName string) string {
	return "spellstock_alerts_" + SanitizeName(restaurantName)
}

// RestaurantDir returns the directory path for a given restaurant.
func RestaurantDir(basePath, restaurantName string) string {
	return filepath.Join(basePath, DefaultConfigDir, "restaurants", SanitizeName(restaurantName))
}

// SQLitePathForRestaurant returns the SQLite database path for a given restaurant.
func SQLitePathForRestaurant(basePath, restaurantName string) string {
	return filepath.Join(RestaurantDir(basePath, restaurantName), "spellstock.db")
}
