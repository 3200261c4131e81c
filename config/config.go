// Package config provides unified configuration loading for the council
// service. Precedence: defaults, then YAML file, then environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Auth       AuthConfig       `yaml:"auth"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Council    CouncilConfig    `yaml:"council"`
	Log        LogConfig        `yaml:"log"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	HTTPPort    int           `yaml:"http_port"`
	MetricsPort int           `yaml:"metrics_port"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	// WriteTimeout must stay zero (disabled) unless SSE streaming is not
	// used: a council run can stream for minutes.
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps"`
	RateLimitBurst  int           `yaml:"rate_limit_burst"`
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	// Disabled skips token verification; requests run as user "local".
	Disabled bool `yaml:"disabled"`
	// Issuer is the token issuer base URL; its /.well-known/jwks.json is
	// used for key discovery when JWKSURL is empty.
	Issuer  string `yaml:"issuer"`
	JWKSURL string `yaml:"jwks_url"`
}

// JWKSEndpoint returns the explicit JWKS URL, or the issuer's well-known
// JWKS path when only an issuer is configured.
func (a AuthConfig) JWKSEndpoint() string {
	if a.JWKSURL != "" {
		return a.JWKSURL
	}
	if a.Issuer == "" {
		return ""
	}
	return strings.TrimRight(a.Issuer, "/") + "/.well-known/jwks.json"
}

// OpenRouterConfig holds upstream API settings.
type OpenRouterConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	Referer string        `yaml:"referer"`
	Title   string        `yaml:"title"`
}

// CouncilConfig holds orchestration settings.
type CouncilConfig struct {
	// Models is the legacy council roster, used when a user has no agents
	// configured.
	Models []string `yaml:"models"`
	// ChairmanModel synthesizes the final answer when no chairman agent is
	// designated.
	ChairmanModel string `yaml:"chairman_model"`
	// TitleModel generates conversation titles; fast and cheap by intent.
	TitleModel   string        `yaml:"title_model"`
	TitleTimeout time.Duration `yaml:"title_timeout"`
	// DataDir is the base directory for user-scoped JSON storage.
	DataDir string `yaml:"data_dir"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPPort:        8001,
			MetricsPort:     9091,
			ReadTimeout:     30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			AllowedOrigins:  []string{"http://localhost:5173", "http://localhost:3000"},
			RateLimitRPS:    10,
			RateLimitBurst:  30,
		},
		Auth: AuthConfig{
			Disabled: false,
		},
		OpenRouter: OpenRouterConfig{
			BaseURL: "https://openrouter.ai/api",
			Timeout: 120 * time.Second,
		},
		Council: CouncilConfig{
			Models: []string{
				"openai/gpt-5.1",
				"google/gemini-3-pro-preview",
				"anthropic/claude-sonnet-4.5",
				"x-ai/grok-4",
			},
			ChairmanModel: "google/gemini-3-pro-preview",
			TitleModel:    "google/gemini-2.5-flash",
			TitleTimeout:  30 * time.Second,
			DataDir:       "data",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("COUNCIL_HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.HTTPPort = port
		}
	}
	if v := os.Getenv("COUNCIL_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.MetricsPort = port
		}
	}
	// OPENROUTER_API_KEY is the conventional variable name for the upstream
	// service, honored alongside the prefixed form.
	if v := os.Getenv("OPENROUTER_API_KEY"); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv("COUNCIL_OPENROUTER_API_KEY"); v != "" {
		c.OpenRouter.APIKey = v
	}
	if v := os.Getenv("COUNCIL_OPENROUTER_BASE_URL"); v != "" {
		c.OpenRouter.BaseURL = v
	}
	if v := os.Getenv("COUNCIL_AUTH_ISSUER"); v != "" {
		c.Auth.Issuer = v
	}
	if v := os.Getenv("COUNCIL_AUTH_JWKS_URL"); v != "" {
		c.Auth.JWKSURL = v
	}
	if v := os.Getenv("COUNCIL_AUTH_DISABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			c.Auth.Disabled = b
		}
	}
	if v := os.Getenv("COUNCIL_DATA_DIR"); v != "" {
		c.Council.DataDir = v
	}
	if v := os.Getenv("COUNCIL_MODELS"); v != "" {
		models := strings.Split(v, ",")
		for i := range models {
			models[i] = strings.TrimSpace(models[i])
		}
		c.Council.Models = models
	}
	if v := os.Getenv("COUNCIL_CHAIRMAN_MODEL"); v != "" {
		c.Council.ChairmanModel = v
	}
	if v := os.Getenv("COUNCIL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the configuration for invalid combinations.
func (c *Config) Validate() error {
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid http_port: %d", c.Server.HTTPPort)
	}
	if c.Council.ChairmanModel == "" {
		return fmt.Errorf("council.chairman_model must not be empty")
	}
	if c.Council.DataDir == "" {
		return fmt.Errorf("council.data_dir must not be empty")
	}
	if len(c.Council.Models) == 0 {
		return fmt.Errorf("council.models must not be empty")
	}
	return nil
}
