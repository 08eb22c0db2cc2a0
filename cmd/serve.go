package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/guard"
	"github.com/melroyanthony/llm-guardrails/internal/llm"
	"github.com/melroyanthony/llm-guardrails/internal/metrics"
	"github.com/melroyanthony/llm-guardrails/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the guardrails HTTP API",
	Long: `Serve the guard pipeline over HTTP.

Endpoints:
  GET  /health               liveness and version
  POST /guard/input          redact and screen a prompt
  POST /guard/output         validate, score, and restore a reply
  POST /guard/full           both, around a simulated or real model reply
  GET  /v1/injection/rules   the injection rules and threshold
  POST /v1/redact            redact text
  POST /v1/restore           restore text from a mapping
  GET  /metrics              Prometheus metrics

By default /guard/full uses a simulated reply. With --llm it calls the
configured model instead, unless the request carries its own
simulated_llm_response.

Examples:
  guardrails serve
  guardrails serve --addr 127.0.0.1:9000 --llm`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "address to listen on")
	serveCmd.Flags().Bool("llm", false, "answer /guard/full with the configured LLM")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	if !cfg.Verbose && cfg.LogLevel == "error" {
		// Startup and shutdown are logged at info.
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := newServer(ctx, cmd, cfg, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx, cfg.Server)
}

// newServer wires the pipeline, metrics, and optional model into a Server.
func newServer(ctx context.Context, cmd *cobra.Command, cfg *config.Config, logger *slog.Logger) (*server.Server, error) {
	collector := metrics.NewCollector()

	p, err := guard.FromConfig(cfg, guard.WithLogger(logger), guard.WithObserver(collector))
	if err != nil {
		return nil, err
	}

	opts := []server.Option{
		server.WithMetrics(collector),
		server.WithVersion(version),
		server.WithRateLimit(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst),
		server.WithRequestTimeout(cfg.Server.RequestTimeout),
	}

	if useLLM, _ := cmd.Flags().GetBool("llm"); useLLM {
		provider, err := llm.NewProvider(cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create LLM provider: %w", err)
		}
		if err := provider.Heartbeat(ctx); err != nil {
			logger.Warn("LLM provider not reachable yet; /guard/full will fail until it is", "host", cfg.LLM.Ollama.Host, "error", err)
		}
		opts = append(opts, server.WithResponder(guard.LLMResponder{
			Provider: provider,
			Options:  llm.OptionsFromConfig(cfg),
			System:   buildAskSystemPrompt(nil),
		}))
	}

	return server.New(p, logger, opts...)
}
