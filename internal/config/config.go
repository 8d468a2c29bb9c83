// Package config defines the application configuration, loaded from
// environment variables or a YAML file by pkg/config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	pkgconfig "github.com/tiempoactualizado/mail-assistant/pkg/config"
	"github.com/tiempoactualizado/mail-assistant/pkg/logger"
)

// Supported LLM providers.
const (
	ProviderOpenAI = "openai"
	ProviderClaude = "claude"
)

// Supported storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// AppConfig holds all application configuration.
type AppConfig struct {
	// Service configuration
	ServiceName string `env:"SERVICE_NAME" yaml:"service_name" default:"mail-assistant"`
	Version     string `env:"VERSION" yaml:"version" default:"dev"`
	Environment string `env:"ENVIRONMENT" yaml:"environment" default:"development"`
	LogFormat   string `env:"LOG_FORMAT" yaml:"log_format" default:"json"`

	Common  pkgconfig.CommonConfig     `yaml:"common,inline"`
	HTTP    pkgconfig.HTTPServerConfig `yaml:"http,inline"`
	Metrics pkgconfig.MetricsConfig    `yaml:"metrics,inline"`

	LLM       LLMConfig       `yaml:"llm,inline"`
	OpenAI    OpenAIConfig    `yaml:"openai,inline"`
	Anthropic AnthropicConfig `yaml:"anthropic,inline"`
	Storage   StorageConfig   `yaml:"storage,inline"`
	Gmail     GmailConfig     `yaml:"gmail,inline"`
	Weather   WeatherConfig   `yaml:"weather,inline"`
	Memory    MemoryConfig    `yaml:"memory,inline"`
}

// LLMConfig selects the completion provider and bounds turns.
type LLMConfig struct {
	Provider    string        `env:"LLM_PROVIDER" yaml:"provider" default:"openai"`
	TurnTimeout time.Duration `env:"TURN_TIMEOUT" yaml:"turn_timeout" default:"60s"`
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `env:"OPENAI_API_KEY" yaml:"api_key"`
	Model   string `env:"OPENAI_MODEL" yaml:"model" default:"gpt-4o"`
	BaseURL string `env:"OPENAI_BASE_URL" yaml:"base_url"`
}

// AnthropicConfig holds Anthropic-specific configuration.
type AnthropicConfig struct {
	APIKey string `env:"ANTHROPIC_API_KEY" yaml:"api_key"`
	Model  string `env:"CLAUDE_MODEL" yaml:"model" default:"claude-sonnet-4-5"`
}

// StorageConfig selects where conversation records live.
type StorageConfig struct {
	Backend  string `env:"STORAGE_BACKEND" yaml:"backend" default:"local"`
	LocalDir string `env:"STORAGE_LOCAL_DIR" yaml:"local_dir" default:"data"`
	S3Bucket  string `env:"STORAGE_S3_BUCKET" yaml:"s3_bucket"`
	S3Prefix  string `env:"STORAGE_S3_PREFIX" yaml:"s3_prefix"`
	S3Region  string `env:"STORAGE_S3_REGION" yaml:"s3_region"`
	S3Profile string `env:"STORAGE_S3_PROFILE" yaml:"s3_profile"`
}

// GmailConfig holds the inbox polling configuration.
type GmailConfig struct {
	// AccessToken authenticates against the Gmail API. Inbox processing
	// is disabled when empty.
	AccessToken string `env:"GMAIL_ACCESS_TOKEN" yaml:"access_token"`

	TargetAddress string `env:"GMAIL_TARGET_ADDRESS" yaml:"target_address" default:"tiempoactualizado@gmail.com"`
	LabelName     string `env:"GMAIL_LABEL_NAME" yaml:"label_name" default:"AutoRespondido"`
	ReplySubject  string `env:"GMAIL_REPLY_SUBJECT" yaml:"reply_subject" default:"Tiempo Actual"`
	MaxResults    int    `env:"GMAIL_MAX_RESULTS" yaml:"max_results" default:"10"`

	// BaseURL overrides the Gmail API endpoint. Used by tests.
	BaseURL string `env:"GMAIL_BASE_URL" yaml:"base_url"`
}

// Enabled reports whether inbox processing is configured.
func (g GmailConfig) Enabled() bool {
	return g.AccessToken != ""
}

// WeatherConfig holds the Open-Meteo tool configuration.
type WeatherConfig struct {
	BaseURL string        `env:"WEATHER_BASE_URL" yaml:"base_url" default:"https://api.open-meteo.com"`
	Timeout time.Duration `env:"WEATHER_TIMEOUT" yaml:"timeout" default:"10s"`
}

// MemoryConfig tunes the conversation memory window.
type MemoryConfig struct {
	CompactionThreshold int  `env:"MEMORY_COMPACTION_THRESHOLD" yaml:"compaction_threshold" default:"12"`
	RetainedTail        int  `env:"MEMORY_RETAINED_TAIL" yaml:"retained_tail" default:"5"`
	RecentWindow        int  `env:"MEMORY_RECENT_WINDOW" yaml:"recent_window" default:"5"`
	IncludeSummary      bool `env:"MEMORY_INCLUDE_SUMMARY" yaml:"include_summary" default:"true"`
}

// Validate validates the configuration and returns an aggregated error.
func (c *AppConfig) Validate() error {
	var result error

	if err := c.Common.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.HTTP.Validate(); err != nil {
		result = multierror.Append(result, err)
	}
	if err := c.Metrics.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if c.LogFormat != "json" && c.LogFormat != "text" {
		result = multierror.Append(result, fmt.Errorf("log_format must be either 'json' or 'text', got %q", c.LogFormat))
	}

	switch strings.ToLower(c.LLM.Provider) {
	case ProviderOpenAI:
		if c.OpenAI.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("OPENAI_API_KEY is required when llm provider is %q", ProviderOpenAI))
		}
	case ProviderClaude:
		if c.Anthropic.APIKey == "" {
			result = multierror.Append(result, fmt.Errorf("ANTHROPIC_API_KEY is required when llm provider is %q", ProviderClaude))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("llm provider must be one of [%s, %s], got %q", ProviderOpenAI, ProviderClaude, c.LLM.Provider))
	}

	if c.LLM.TurnTimeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("turn_timeout must be greater than 0"))
	}

	switch c.Storage.Backend {
	case StorageLocal:
		if c.Storage.LocalDir == "" {
			result = multierror.Append(result, fmt.Errorf("local_dir is required for local storage"))
		}
	case StorageS3:
		if c.Storage.S3Bucket == "" {
			result = multierror.Append(result, fmt.Errorf("s3_bucket is required for s3 storage"))
		}
		if c.Storage.S3Region == "" {
			result = multierror.Append(result, fmt.Errorf("s3_region is required for s3 storage"))
		}
	default:
		result = multierror.Append(result, fmt.Errorf("storage backend must be one of [%s, %s], got %q", StorageLocal, StorageS3, c.Storage.Backend))
	}

	if c.Gmail.MaxResults <= 0 {
		result = multierror.Append(result, fmt.Errorf("gmail max_results must be greater than 0"))
	}

	if c.Weather.Timeout <= 0 {
		result = multierror.Append(result, fmt.Errorf("weather timeout must be greater than 0"))
	}

	if c.Memory.CompactionThreshold <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory compaction_threshold must be greater than 0"))
	}
	if c.Memory.RetainedTail <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory retained_tail must be greater than 0"))
	}
	if c.Memory.RetainedTail > c.Memory.CompactionThreshold {
		result = multierror.Append(result, fmt.Errorf("memory retained_tail must not exceed compaction_threshold"))
	}
	if c.Memory.RecentWindow <= 0 {
		result = multierror.Append(result, fmt.Errorf("memory recent_window must be greater than 0"))
	}

	return result
}

// GetLogLevel returns the parsed logger level.
func (c *AppConfig) GetLogLevel() logger.Level {
	switch strings.ToLower(c.Common.LogLevel) {
	case "debug":
		return logger.DebugLevel
	case "warn", "warning":
		return logger.WarnLevel
	case "error":
		return logger.ErrorLevel
	default:
		return logger.InfoLevel
	}
}

// IsProduction returns true if running in the production environment.
func (c *AppConfig) IsProduction() bool {
	return strings.ToLower(c.Environment) == "production"
}

// IsDevelopment returns true if running in a development environment.
func (c *AppConfig) IsDevelopment() bool {
	env := strings.ToLower(c.Environment)
	return env == "development" || env == "dev"
}

// LogConfig logs the current configuration without sensitive data.
func (c *AppConfig) LogConfig(log logger.Logger) {
	log.Info("Application configuration loaded",
		logger.StringField("service_name", c.ServiceName),
		logger.StringField("version", c.Version),
		logger.StringField("environment", c.Environment),
		logger.IntField("port", c.HTTP.Port),
		logger.StringField("llm_provider", c.LLM.Provider),
		logger.StringField("storage_backend", c.Storage.Backend),
		logger.StringField("log_level", c.Common.LogLevel),
		logger.StringField("log_format", c.LogFormat),
		logger.BoolField("metrics_exposed", c.Metrics.ExposeMetrics),
		logger.StringField("gmail_target", c.Gmail.TargetAddress),
	)
}
