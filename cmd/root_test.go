package cmd

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/melroyanthony/llm-guardrails/internal/config"
)

// newTestCmd builds a command with the same flags as the real one, writing
// to out.
func newTestCmd(use string, out *bytes.Buffer, addFlags func(*cobra.Command)) *cobra.Command {
	cmd := &cobra.Command{Use: use}
	cmd.SetOut(out)
	cmd.SetErr(out)
	if addFlags != nil {
		addFlags(cmd)
	}
	return cmd
}

func setFlag(t *testing.T, cmd *cobra.Command, name, value string) {
	t.Helper()
	if err := cmd.Flags().Set(name, value); err != nil {
		t.Fatalf("Set(%s) error = %v", name, err)
	}
}

func writeTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	viper.Reset()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	want := config.Default()
	if cfg.Format != want.Format || cfg.Injection.Threshold != want.Injection.Threshold {
		t.Errorf("loadConfig() = %+v, want defaults", cfg)
	}
	if !cfg.PII.Enabled || !cfg.Validation.Enabled || !cfg.Bias.Enabled {
		t.Error("guards should be enabled by default")
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")
	viper.Set("injection.threshold", 0.8)
	viper.Set("pii.labels", []string{"EMAIL"})

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}
	if cfg.Format != "json" || cfg.Injection.Threshold != 0.8 || len(cfg.PII.Labels) != 1 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	viper.Reset()
	viper.Set("injection.threshold", 1.5)

	if _, err := loadConfig(); err == nil {
		t.Error("loadConfig() should reject an out-of-range threshold")
	}
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		logLevel  string
		verbose   bool
		wantDebug bool
		wantError bool
	}{
		{name: "default", logLevel: "error", wantError: true},
		{name: "info", logLevel: "info", wantError: true},
		{name: "verbose", logLevel: "error", verbose: true, wantDebug: true, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.LogLevel = tt.logLevel
			cfg.Verbose = tt.verbose

			logger := newLogger(cfg)
			if got := logger.Enabled(t.Context(), slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("debug enabled = %v, want %v", got, tt.wantDebug)
			}
			if got := logger.Enabled(t.Context(), slog.LevelError); got != tt.wantError {
				t.Errorf("error enabled = %v, want %v", got, tt.wantError)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name   string
		format string
		short  bool
		want   string
	}{
		{name: "text", format: "text", want: "guardrails dev (commit: none, built: unknown)\n"},
		{name: "short", format: "json", short: true, want: "dev\n"},
		{name: "json", format: "json", want: "{\n  \"version\": \"dev\",\n  \"commit\": \"none\",\n  \"built\": \"unknown\"\n}\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			viper.Reset()
			viper.Set("format", tt.format)

			var out bytes.Buffer
			cmd := newTestCmd("version", &out, func(c *cobra.Command) {
				c.Flags().Bool("short", false, "")
			})
			if tt.short {
				setFlag(t, cmd, "short", "true")
			}

			if err := runVersion(cmd, nil); err != nil {
				t.Fatalf("runVersion() error = %v", err)
			}
			if got := out.String(); got != tt.want {
				t.Errorf("version output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"redact", "restore", "injection", "bias", "validate", "guard", "ask", "serve", "tail", "version"}
	for _, name := range want {
		if _, _, err := rootCmd.Find([]string{name}); err != nil {
			t.Errorf("command %q not registered: %v", name, err)
		}
	}
}
