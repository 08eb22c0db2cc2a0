package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/output"
	"github.com/melroyanthony/llm-guardrails/internal/validate"
)

// errInvalidOutput makes the command exit non-zero after the report has
// been printed.
var errInvalidOutput = errors.New("output failed validation")

var validateCmd = &cobra.Command{
	Use:   "validate [text]",
	Short: "Check model output against validation rules",
	Long: `Check model output for schema conformance, length, hedging language,
and required or blocked keywords. The command exits with an error status
when any check fails with error severity; warnings do not fail it.

Examples:
  guardrails validate --schema schema.json --file reply.json
  guardrails validate --schema '{"type":"object","required":["answer"]}' '{"answer":42}'
  guardrails validate --max-length 500 --block password --require thanks < reply.txt`,
	RunE: runValidate,
}

func init() {
	addValidateFlags(validateCmd)
	rootCmd.AddCommand(validateCmd)
}

func addValidateFlags(cmd *cobra.Command) {
	cmd.Flags().String("schema", "", "JSON schema, inline or as a file path")
	cmd.Flags().Int("max-length", 0, "maximum output length in bytes (0 for no limit)")
	cmd.Flags().Bool("no-hallucination", false, "skip the hedging-language check")
	cmd.Flags().Float64("hallucination-threshold", validate.DefaultHallucinationThreshold, "hedging score that raises a warning")
	cmd.Flags().StringSlice("require", []string{}, "keyword that must appear (repeatable)")
	cmd.Flags().StringSlice("block", []string{}, "keyword that must not appear (repeatable)")
	cmd.Flags().StringP("file", "F", "", "read the text from this file")
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := validateOptions(cmd, cfg.Validation)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	res := validate.Validate(text, opts)
	w := newWriter(cmd, cfg).WithColor(output.ColorAuto)
	if err := w.WriteValidation(res); err != nil {
		return err
	}
	if !res.Valid {
		return errInvalidOutput
	}
	return nil
}

// validateOptions starts from the validation section of the config and
// applies any flags the user set.
func validateOptions(cmd *cobra.Command, vc config.ValidationConfig) (validate.Options, error) {
	opts := validate.Options{
		JSONSchema:             vc.JSONSchema,
		MaxLength:              vc.MaxLength,
		CheckHallucination:     vc.CheckHallucination,
		HallucinationThreshold: vc.HallucinationThreshold,
		RequiredKeywords:       vc.RequiredKeywords,
		BlockedKeywords:        vc.BlockedKeywords,
	}
	flags := cmd.Flags()

	if flags.Changed("schema") {
		s, _ := flags.GetString("schema")
		schema, err := loadSchema(s)
		if err != nil {
			return opts, err
		}
		opts.JSONSchema = schema
	}
	if flags.Changed("max-length") {
		opts.MaxLength, _ = flags.GetInt("max-length")
		if opts.MaxLength < 0 {
			return opts, fmt.Errorf("--max-length must not be negative, got %d", opts.MaxLength)
		}
	}
	if off, _ := flags.GetBool("no-hallucination"); off {
		opts.CheckHallucination = false
	}
	if flags.Changed("hallucination-threshold") {
		opts.HallucinationThreshold, _ = flags.GetFloat64("hallucination-threshold")
		if opts.HallucinationThreshold < 0 || opts.HallucinationThreshold > 1 {
			return opts, fmt.Errorf("--hallucination-threshold must be within [0, 1], got %v", opts.HallucinationThreshold)
		}
	}
	if flags.Changed("require") {
		opts.RequiredKeywords, _ = flags.GetStringSlice("require")
	}
	if flags.Changed("block") {
		opts.BlockedKeywords, _ = flags.GetStringSlice("block")
	}
	return opts, nil
}

// loadSchema accepts an inline JSON document or a path to one.
func loadSchema(s string) (string, error) {
	trimmed := strings.TrimSpace(s)
	if strings.HasPrefix(trimmed, "{") || trimmed == "" {
		return trimmed, nil
	}
	data, err := os.ReadFile(s)
	if err != nil {
		return "", fmt.Errorf("failed to read schema: %w", err)
	}
	return string(data), nil
}
