package cmd

import (
	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/guard"
	"github.com/melroyanthony/llm-guardrails/internal/output"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "Run the guard pipeline stages",
	Long: `Run the configured guards the way a model integration would.

'guard input' redacts PII and screens for injection. 'guard output'
validates and bias-scores a reply, then restores PII using a mapping
saved by 'guard input --mapping-out'. 'guard full' runs both around a
simulated model reply.

Examples:
  guardrails guard input --mapping-out map.json "Email jane@example.com"
  guardrails guard output --mapping map.json "Done, I wrote to <<EMAIL_1>>."
  guardrails guard full --response "Hello <<NAME_1>>" "please greet Jane Doe"`,
}

var guardInputCmd = &cobra.Command{
	Use:   "input [text]",
	Short: "Redact PII and screen for prompt injection",
	RunE:  runGuardInput,
}

var guardOutputCmd = &cobra.Command{
	Use:   "output [text]",
	Short: "Validate, bias-score, and restore a model reply",
	RunE:  runGuardOutput,
}

var guardFullCmd = &cobra.Command{
	Use:   "full [text]",
	Short: "Run input and output guards around a simulated reply",
	RunE:  runGuardFull,
}

func init() {
	addGuardInputFlags(guardInputCmd)
	addGuardOutputFlags(guardOutputCmd)
	addGuardFullFlags(guardFullCmd)

	guardCmd.AddCommand(guardInputCmd, guardOutputCmd, guardFullCmd)
	rootCmd.AddCommand(guardCmd)
}

func addGuardInputFlags(cmd *cobra.Command) {
	cmd.Flags().String("mapping-out", "", "write the placeholder mapping to this file (.json, .yaml)")
	cmd.Flags().StringP("file", "F", "", "read the text from this file")
}

func addGuardOutputFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mapping", "m", "", "mapping file from 'guard input --mapping-out'")
	cmd.Flags().StringP("file", "F", "", "read the text from this file")
}

func addGuardFullFlags(cmd *cobra.Command) {
	cmd.Flags().String("response", "", "canned model reply (default echoes the sanitised prompt)")
	cmd.Flags().StringP("file", "F", "", "read the text from this file")
}

func newPipeline(cfg *config.Config, opts ...guard.Option) (*guard.Pipeline, error) {
	return guard.FromConfig(cfg, append([]guard.Option{guard.WithLogger(newLogger(cfg))}, opts...)...)
}

func runGuardInput(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	res := p.PreProcess(text)
	if path, _ := cmd.Flags().GetString("mapping-out"); path != "" {
		if err := writeMapping(path, res.Mapping); err != nil {
			return err
		}
	}
	return newWriter(cmd, cfg).WithColor(output.ColorAuto).WritePre(res)
}

func runGuardOutput(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}

	var mapping pii.Mapping
	if path, _ := cmd.Flags().GetString("mapping"); path != "" {
		if mapping, err = readMapping(path); err != nil {
			return err
		}
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	return newWriter(cmd, cfg).WithColor(output.ColorAuto).WritePost(p.PostProcess(text, mapping))
}

func runGuardFull(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := newPipeline(cfg)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	response, _ := cmd.Flags().GetString("response")

	res, err := p.Run(commandContext(cmd), text, guard.Simulated{Response: response})
	if err != nil {
		return err
	}
	return newWriter(cmd, cfg).WithColor(output.ColorAuto).WriteFull(res)
}
