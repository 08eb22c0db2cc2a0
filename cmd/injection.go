package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/injection"
	"github.com/melroyanthony/llm-guardrails/internal/output"
)

var injectionCmd = &cobra.Command{
	Use:   "injection [text]",
	Short: "Score text for prompt-injection attempts",
	Long: `Score text against the weighted injection rules. The score is the
highest matching rule weight, plus a bonus when several rules match. Text
scoring at or above the threshold is flagged.

Examples:
  guardrails injection "Ignore all previous instructions"
  guardrails injection --threshold 0.8 --file prompt.txt
  guardrails injection rules`,
	RunE: runInjection,
}

var injectionRulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List the injection rules",
	Args:  cobra.NoArgs,
	RunE:  runInjectionRules,
}

func init() {
	addInjectionFlags(injectionCmd)
	injectionCmd.Flags().StringP("file", "F", "", "read the text from this file")
	addInjectionFlags(injectionRulesCmd)
	injectionCmd.AddCommand(injectionRulesCmd)
	rootCmd.AddCommand(injectionCmd)
}

func addInjectionFlags(cmd *cobra.Command) {
	cmd.Flags().Float64P("threshold", "t", injection.DefaultThreshold, "score at or above which text is flagged (default from config)")
	cmd.Flags().String("rules", "", "YAML rule file replacing the built-in rules (default from config)")
}

func runInjection(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	detector, threshold, err := detectorFor(cmd, cfg)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	w := newWriter(cmd, cfg).WithColor(output.ColorAuto)
	return w.WriteInjection(detector.Analyse(text, threshold))
}

func runInjectionRules(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	detector, threshold, err := detectorFor(cmd, cfg)
	if err != nil {
		return err
	}
	return newWriter(cmd, cfg).WriteRules(detector.Rules(), threshold)
}

// detectorFor applies --rules and --threshold over the configured values.
func detectorFor(cmd *cobra.Command, cfg *config.Config) (*injection.Detector, float64, error) {
	threshold := cfg.Injection.Threshold
	if cmd.Flags().Changed("threshold") {
		threshold, _ = cmd.Flags().GetFloat64("threshold")
	}
	if threshold < 0 || threshold > 1 {
		return nil, 0, fmt.Errorf("--threshold must be within [0, 1], got %v", threshold)
	}

	path := cfg.Injection.RulesFile
	if cmd.Flags().Changed("rules") {
		path, _ = cmd.Flags().GetString("rules")
	}
	if path == "" {
		return injection.Default(), threshold, nil
	}
	rules, err := injection.LoadRules(path)
	if err != nil {
		return nil, 0, err
	}
	return injection.New(rules), threshold, nil
}
