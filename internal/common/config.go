package common

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Logging     LoggingConfig   `toml:"logging"`
	Engine      EngineConfig    `toml:"engine"`
	Catalog     CatalogConfig   `toml:"catalog"`
	Gemini      GeminiConfig    `toml:"gemini"`
	Claude      ClaudeConfig    `toml:"claude"`
	LLM         LLMConfig       `toml:"llm"`
	YouTube     YouTubeConfig   `toml:"youtube"`
	Identity    IdentityConfig  `toml:"identity"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// EngineConfig configures the durable run engine
type EngineConfig struct {
	MaxConcurrentSteps int          `toml:"max_concurrent_steps" validate:"min=1"`
	Badger             BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"` // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

// CatalogConfig configures the content repository client
type CatalogConfig struct {
	APIURL            string  `toml:"api_url" validate:"required,url"`
	GraphQLURL        string  `toml:"graphql_url" validate:"required,url"`
	APIToken          string  `toml:"api_token"`
	Locale            string  `toml:"locale"`              // Target translation locale, e.g. "de"
	RequestsPerSecond float64 `toml:"requests_per_second"` // Client-side rate limit (0 = unlimited)
}

type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Temperature float32 `toml:"temperature"`
	MaxTokens   int     `toml:"max_tokens"`
}

// LLMConfig selects the default text-generation provider
type LLMConfig struct {
	DefaultProvider string `toml:"default_provider" validate:"oneof=gemini claude"`
}

type YouTubeConfig struct {
	APIKey     string `toml:"api_key"`
	MaxResults int    `toml:"max_results"`
}

// IdentityConfig holds the Microsoft identity platform credential set used by
// the token cache and the To Do queue feed.
type IdentityConfig struct {
	TenantID     string `toml:"tenant_id"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RefreshToken string `toml:"refresh_token"`
	TaskListID   string `toml:"task_list_id"`
}

// SchedulerConfig configures the queue scheduler loop
type SchedulerConfig struct {
	Enabled        bool          `toml:"enabled"`
	Schedule       string        `toml:"schedule"`        // Cron schedule for queue iterations
	IngestSchedule string        `toml:"ingest_schedule"` // Cron schedule for the To Do queue feed
	DebounceDelay  time.Duration `toml:"debounce_delay"`  // Wait before marking an item pending
	SettleDelay    time.Duration `toml:"settle_delay"`    // Wait after success before deleting the item
	AllowNewTags   bool          `toml:"allow_new_tags"`  // Default for scheduler-driven enrichment runs
}

// DefaultConfig returns a config with sensible defaults applied
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Engine: EngineConfig{
			MaxConcurrentSteps: 10,
			Badger: BadgerConfig{
				Path: "./data/ditare",
			},
		},
		Catalog: CatalogConfig{
			Locale:            "de",
			RequestsPerSecond: 5,
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-pro",
			Temperature: 0.7,
		},
		Claude: ClaudeConfig{
			Model:       "claude-sonnet-4-20250514",
			Temperature: 0.7,
			MaxTokens:   4096,
		},
		LLM: LLMConfig{
			DefaultProvider: "gemini",
		},
		YouTube: YouTubeConfig{
			MaxResults: 10,
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			Schedule:       "*/1 * * * *",
			IngestSchedule: "*/5 * * * *",
			DebounceDelay:  2 * time.Second,
			SettleDelay:    15 * time.Second,
		},
	}
}

// LoadConfig loads configuration in priority order: defaults -> file(s) -> env.
// Later files override earlier ones.
func LoadConfig(paths ...string) (*Config, error) {
	config := DefaultConfig()

	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides for secrets and
// endpoints so credentials never need to live in the config file.
func applyEnvOverrides(config *Config) {
	overrides := map[string]*string{
		"CATALOG_API_URL":       &config.Catalog.APIURL,
		"CATALOG_GRAPHQL_URL":   &config.Catalog.GraphQLURL,
		"CATALOG_API_TOKEN":     &config.Catalog.APIToken,
		"GEMINI_API_KEY":        &config.Gemini.APIKey,
		"ANTHROPIC_API_KEY":     &config.Claude.APIKey,
		"YOUTUBE_API_KEY":       &config.YouTube.APIKey,
		"AZURE_TENANT_ID":       &config.Identity.TenantID,
		"AZURE_CLIENT_ID":       &config.Identity.ClientID,
		"AZURE_CLIENT_SECRET":   &config.Identity.ClientSecret,
		"AZURE_REFRESH_TOKEN":   &config.Identity.RefreshToken,
		"MICROSOFT_TASK_LIST":   &config.Identity.TaskListID,
		"DITARE_LOG_LEVEL":      &config.Logging.Level,
		"DITARE_LLM_PROVIDER":   &config.LLM.DefaultProvider,
		"DITARE_CATALOG_LOCALE": &config.Catalog.Locale,
	}

	for key, target := range overrides {
		if value := os.Getenv(key); value != "" {
			*target = value
		}
	}
}

func validateConfig(config *Config) error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Catalog.Locale == "" {
		return fmt.Errorf("invalid configuration: catalog locale is required")
	}
	return nil
}
