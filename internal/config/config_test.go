package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   slog.Level
		wantOK bool
	}{
		{"debug lowercase", "debug", slog.LevelDebug, true},
		{"info lowercase", "info", slog.LevelInfo, true},
		{"warn lowercase", "warn", slog.LevelWarn, true},
		{"warning lowercase", "warning", slog.LevelWarn, true},
		{"error lowercase", "error", slog.LevelError, true},

		{"DEBUG uppercase", "DEBUG", slog.LevelDebug, true},
		{"WARNING uppercase", "WARNING", slog.LevelWarn, true},
		{"Info mixed", "Info", slog.LevelInfo, true},

		{"dbg abbrev", "dbg", slog.LevelDebug, true},
		{"inf abbrev", "inf", slog.LevelInfo, true},
		{"err abbrev", "err", slog.LevelError, true},

		{"empty", "", slog.LevelError, false},
		{"unknown", "verbose", slog.LevelError, false},
		{"fatal is not a slog level", "fatal", slog.LevelError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseLogLevel(tt.input)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLogLevel(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error = %v", err)
	}
}

func TestLoadDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	d := Default()
	if cfg.Injection.Threshold != d.Injection.Threshold {
		t.Errorf("Injection.Threshold = %v, want %v", cfg.Injection.Threshold, d.Injection.Threshold)
	}
	if !cfg.PII.Enabled || !cfg.Bias.Enabled || !cfg.Validation.Enabled {
		t.Errorf("expected all guards enabled by default, got %+v", cfg)
	}
	if cfg.LLM.Ollama.Model != "llama3.2" {
		t.Errorf("LLM.Ollama.Model = %q, want llama3.2", cfg.LLM.Ollama.Model)
	}
	if cfg.Server.ReadTimeout != 15*time.Second {
		t.Errorf("Server.ReadTimeout = %v, want 15s", cfg.Server.ReadTimeout)
	}
}

func TestLoadFromYAML(t *testing.T) {
	const doc = `
format: json
pii:
  labels: [EMAIL, SSN]
injection:
  threshold: 0.7
validation:
  max_length: 200
  blocked_keywords: [password]
server:
  addr: ":9090"
  read_timeout: 2s
  rate_limit:
    rps: 0
`
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(bytes.NewBufferString(doc)); err != nil {
		t.Fatalf("ReadConfig() error = %v", err)
	}

	cfg, err := Load(v)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Format != "json" {
		t.Errorf("Format = %q, want json", cfg.Format)
	}
	if len(cfg.PII.Labels) != 2 || cfg.PII.Labels[0] != "EMAIL" {
		t.Errorf("PII.Labels = %v, want [EMAIL SSN]", cfg.PII.Labels)
	}
	if !cfg.PII.Enabled {
		t.Error("PII.Enabled should keep its default")
	}
	if cfg.Injection.Threshold != 0.7 {
		t.Errorf("Injection.Threshold = %v, want 0.7", cfg.Injection.Threshold)
	}
	if cfg.Validation.MaxLength != 200 {
		t.Errorf("Validation.MaxLength = %d, want 200", cfg.Validation.MaxLength)
	}
	if cfg.Server.Addr != ":9090" || cfg.Server.ReadTimeout != 2*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.RateLimit.RPS != 0 || cfg.Server.RateLimit.Burst != 20 {
		t.Errorf("Server.RateLimit = %+v, want rps 0 burst 20", cfg.Server.RateLimit)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"threshold above one", func(c *Config) { c.Injection.Threshold = 1.5 }, "injection.threshold"},
		{"threshold negative", func(c *Config) { c.Injection.Threshold = -0.1 }, "injection.threshold"},
		{"hallucination threshold", func(c *Config) { c.Validation.HallucinationThreshold = 2 }, "validation.hallucination_threshold"},
		{"negative max length", func(c *Config) { c.Validation.MaxLength = -1 }, "validation.max_length"},
		{"negative rps", func(c *Config) { c.Server.RateLimit.RPS = -5 }, "server.rate_limit.rps"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}
