package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/guard"
	"github.com/melroyanthony/llm-guardrails/internal/llm"
	"github.com/melroyanthony/llm-guardrails/internal/output"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send a guarded prompt to the configured LLM",
	Long: `Send a prompt to the LLM with guardrails on both sides.

The prompt has its PII replaced by placeholders and is screened for
injection; a blocked prompt never reaches the model. The reply is streamed
with the original values restored as it arrives, then validated and
scored for bias.

Examples:
  guardrails ask "Write a birthday note for Jane Doe"
  guardrails ask --model mistral "Summarise this ticket from bob@example.com"
  guardrails ask -f json "Reply to 555-123-4567 about the refund"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	addAskFlags(askCmd)
	rootCmd.AddCommand(askCmd)
}

func addAskFlags(cmd *cobra.Command) {
	cmd.Flags().String("model", "", "model to use (default from config)")
}

// askResult is the JSON form of an ask run.
type askResult struct {
	guard.FullResult
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

func runAsk(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")
	ctx := commandContext(cmd)

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)
	format := output.ParseFormat(cfg.Format)
	w := newWriter(cmd, cfg).WithColor(output.ColorAuto)

	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	pre := p.PreProcess(prompt)
	logger.Debug("prompt sanitised", "redactions", pre.Mapping.Len(), "injection_score", pre.Injection.Score)
	if pre.Blocked {
		if format == output.FormatJSON {
			if err := w.WriteJSON(askResult{FullResult: guard.FullResult{Input: pre, Blocked: true}, Provider: cfg.LLM.Provider}); err != nil {
				return err
			}
		} else if err := w.WritePre(pre); err != nil {
			return err
		}
		return fmt.Errorf("%w (score %.2f, rules: %s)", guard.ErrBlocked, pre.Injection.Score, strings.Join(pre.Injection.MatchedRules, ", "))
	}

	provider, err := llm.NewProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create LLM provider: %w\n\nTroubleshooting:\n- Ensure Ollama is running: ollama serve\n- Check llm settings in ~/.guardrails.yaml", err)
	}
	if err := provider.Heartbeat(ctx); err != nil {
		return fmt.Errorf("cannot connect to Ollama at %s: %w\n\nStart Ollama with: ollama serve", cfg.LLM.Ollama.Host, err)
	}

	opts := llm.OptionsFromConfig(cfg)
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		opts.Model = model
	}

	messages := []llm.Message{
		{Role: "system", Content: buildAskSystemPrompt(pre.Mapping.Placeholders())},
		{Role: "user", Content: pre.SanitisedText},
	}
	stream, err := provider.ChatStream(ctx, messages, opts)
	if err != nil {
		if errors.Is(err, llm.ErrModelNotFound) {
			return fmt.Errorf("%w\n\nPull it with: ollama pull %s", err, opts.Model)
		}
		return fmt.Errorf("failed to start LLM stream: %w", err)
	}

	// Text output streams the restored reply; JSON waits for the result.
	var live io.Writer = io.Discard
	if format != output.FormatJSON {
		fmt.Fprintln(cmd.OutOrStdout(), "=== Answer ===")
		fmt.Fprintln(cmd.OutOrStdout())
		live = cmd.OutOrStdout()
	}
	restoring := pii.NewRestoringWriter(live, pre.Mapping)

	var reply strings.Builder
	for event := range stream {
		if event.Error != nil {
			if reply.Len() > 0 {
				_ = restoring.Close()
				fmt.Fprintf(os.Stderr, "\n\nError during streaming: %v\n", event.Error)
			}
			return event.Error
		}
		if event.Content != "" {
			reply.WriteString(event.Content)
			if _, err := io.WriteString(restoring, event.Content); err != nil {
				return err
			}
		}
	}
	if err := restoring.Close(); err != nil {
		return err
	}

	post := p.PostProcess(reply.String(), pre.Mapping)
	if format == output.FormatJSON {
		return w.WriteJSON(askResult{
			FullResult: guard.FullResult{Input: pre, Output: &post},
			Provider:   cfg.LLM.Provider,
			Model:      opts.Model,
		})
	}

	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintln(cmd.OutOrStdout(), "=== Checks ===")
	return writeChecks(w, post, cfg)
}

// writeChecks reports the output checks that are enabled.
func writeChecks(w *output.Writer, post guard.PostResult, cfg *config.Config) error {
	if cfg.Validation.Enabled {
		if err := w.WriteValidation(post.Validation); err != nil {
			return err
		}
	}
	if cfg.Bias.Enabled {
		return w.WriteBias(post.Bias)
	}
	return nil
}
