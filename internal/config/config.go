// Package config provides configuration types and helpers for guardrails.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application-wide configuration.
type Config struct {
	Format     string           `mapstructure:"format"`
	Verbose    bool             `mapstructure:"verbose"`
	LogLevel   string           `mapstructure:"log_level"`
	PII        PIIConfig        `mapstructure:"pii"`
	Injection  InjectionConfig  `mapstructure:"injection"`
	Bias       BiasConfig       `mapstructure:"bias"`
	Validation ValidationConfig `mapstructure:"validation"`
	LLM        LLMConfig        `mapstructure:"llm"`
	Server     ServerConfig     `mapstructure:"server"`
}

// PIIConfig controls redaction of prompts and restoration of replies.
type PIIConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Labels restricts redaction to these rules; empty means all.
	// Available: SSN, CREDIT_CARD, EMAIL, PHONE, IP_ADDRESS, DATE_OF_BIRTH, NAME
	Labels []string `mapstructure:"labels"`
}

// InjectionConfig controls prompt-injection screening.
type InjectionConfig struct {
	Enabled   bool    `mapstructure:"enabled"`
	Threshold float64 `mapstructure:"threshold"`

	// RulesFile replaces the built-in rules with a YAML rule file.
	RulesFile string `mapstructure:"rules_file"`
}

// BiasConfig controls bias scoring of replies.
type BiasConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ValidationConfig controls output validation of replies.
type ValidationConfig struct {
	Enabled                bool     `mapstructure:"enabled"`
	JSONSchema             string   `mapstructure:"json_schema"`
	MaxLength              int      `mapstructure:"max_length"`
	CheckHallucination     bool     `mapstructure:"check_hallucination"`
	HallucinationThreshold float64  `mapstructure:"hallucination_threshold"`
	RequiredKeywords       []string `mapstructure:"required_keywords"`
	BlockedKeywords        []string `mapstructure:"blocked_keywords"`
}

// LLMConfig holds configuration for the model called between the input
// and output guards.
type LLMConfig struct {
	// Provider selects which LLM to use: "ollama", or empty for none
	Provider string `mapstructure:"provider"`

	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`

	Ollama OllamaConfig `mapstructure:"ollama"`
}

// OllamaConfig holds Ollama-specific settings.
type OllamaConfig struct {
	Host      string `mapstructure:"host"`       // API endpoint
	Model     string `mapstructure:"model"`      // Default model name
	KeepAlive string `mapstructure:"keep_alive"` // e.g., "5m"
	NumCtx    int    `mapstructure:"num_ctx"`    // Context window size
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr           string          `mapstructure:"addr"`
	ReadTimeout    time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration   `mapstructure:"write_timeout"`
	RequestTimeout time.Duration   `mapstructure:"request_timeout"`
	RateLimit      RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig is a per-client token bucket. RPS of zero disables it.
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Format:   "text",
		LogLevel: "error",
		PII:      PIIConfig{Enabled: true},
		Injection: InjectionConfig{
			Enabled:   true,
			Threshold: 0.5,
		},
		Bias: BiasConfig{Enabled: true},
		Validation: ValidationConfig{
			Enabled:                true,
			CheckHallucination:     true,
			HallucinationThreshold: 0.6,
		},
		LLM: LLMConfig{
			Provider: "ollama",
			Ollama: OllamaConfig{
				Host:  "http://localhost:11434",
				Model: "llama3.2",
			},
		},
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   120 * time.Second,
			RequestTimeout: 60 * time.Second,
			RateLimit:      RateLimitConfig{RPS: 10, Burst: 20},
		},
	}
}

// SetDefaults registers the values of Default on v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("format", d.Format)
	v.SetDefault("verbose", d.Verbose)
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("pii.enabled", d.PII.Enabled)
	v.SetDefault("pii.labels", []string{})

	v.SetDefault("injection.enabled", d.Injection.Enabled)
	v.SetDefault("injection.threshold", d.Injection.Threshold)
	v.SetDefault("injection.rules_file", "")

	v.SetDefault("bias.enabled", d.Bias.Enabled)

	v.SetDefault("validation.enabled", d.Validation.Enabled)
	v.SetDefault("validation.json_schema", "")
	v.SetDefault("validation.max_length", 0)
	v.SetDefault("validation.check_hallucination", d.Validation.CheckHallucination)
	v.SetDefault("validation.hallucination_threshold", d.Validation.HallucinationThreshold)
	v.SetDefault("validation.required_keywords", []string{})
	v.SetDefault("validation.blocked_keywords", []string{})

	v.SetDefault("llm.provider", d.LLM.Provider)
	v.SetDefault("llm.temperature", d.LLM.Temperature)
	v.SetDefault("llm.max_tokens", d.LLM.MaxTokens)
	v.SetDefault("llm.ollama.host", d.LLM.Ollama.Host)
	v.SetDefault("llm.ollama.model", d.LLM.Ollama.Model)

	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)
	v.SetDefault("server.rate_limit.rps", d.Server.RateLimit.RPS)
	v.SetDefault("server.rate_limit.burst", d.Server.RateLimit.Burst)
}

// Load unmarshals v into a Config and checks it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports settings that are out of range.
func (c *Config) Validate() error {
	var errs []error
	if c.Injection.Threshold < 0 || c.Injection.Threshold > 1 {
		errs = append(errs, fmt.Errorf("injection.threshold must be within [0, 1], got %v", c.Injection.Threshold))
	}
	if c.Validation.HallucinationThreshold < 0 || c.Validation.HallucinationThreshold > 1 {
		errs = append(errs, fmt.Errorf("validation.hallucination_threshold must be within [0, 1], got %v", c.Validation.HallucinationThreshold))
	}
	if c.Validation.MaxLength < 0 {
		errs = append(errs, fmt.Errorf("validation.max_length must not be negative, got %d", c.Validation.MaxLength))
	}
	if c.Server.RateLimit.RPS < 0 {
		errs = append(errs, fmt.Errorf("server.rate_limit.rps must not be negative, got %v", c.Server.RateLimit.RPS))
	}
	if _, ok := ParseLogLevel(c.LogLevel); !ok && c.LogLevel != "" {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}
	return errors.Join(errs...)
}

// ParseLogLevel converts a level name to a slog.Level.
func ParseLogLevel(s string) (slog.Level, bool) {
	switch strings.ToLower(s) {
	case "debug", "dbg":
		return slog.LevelDebug, true
	case "info", "inf":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error", "err":
		return slog.LevelError, true
	default:
		return slog.LevelError, false
	}
}
