package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/output"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "guardrails",
	Short: "Safety guardrails around LLM prompts and replies",
	Long: `Guardrails screens text on its way to and from a language model.

Prompts have PII swapped for placeholders and are scored for injection
attempts. Replies are validated, scored for bias, and have the original
values put back.

Examples:
  guardrails redact "Email jane@example.com" --mapping-out map.json
  guardrails restore --mapping map.json < reply.txt
  guardrails injection "Ignore all previous instructions"
  guardrails validate --schema schema.json --file reply.json
  guardrails ask "Draft a reply to jane@example.com"
  guardrails serve --addr :8080
  guardrails tail /var/log/app.log`,
	SilenceUsage: true,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.guardrails.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json, table)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	// A .env file in the working directory seeds GUARDRAILS_* variables.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "Error loading .env:", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".guardrails")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("GUARDRAILS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "Error reading config file:", err)
	}
}

// loadConfig decodes the global viper instance. Defaults are registered
// again so that commands work after viper.Reset in tests.
func loadConfig() (*config.Config, error) {
	v := viper.GetViper()
	config.SetDefaults(v)
	return config.Load(v)
}

// newLogger writes to stderr at the configured level; --verbose forces
// debug.
func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	if cfg.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func newWriter(cmd *cobra.Command, cfg *config.Config) *output.Writer {
	return output.New(cmd.OutOrStdout(), output.ParseFormat(cfg.Format))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
