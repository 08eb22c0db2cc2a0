package cmd

import (
	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/bias"
	"github.com/melroyanthony/llm-guardrails/internal/output"
)

var biasCmd = &cobra.Command{
	Use:   "bias [text]",
	Short: "Score text for stereotyping and overgeneralisation",
	Long: `Score text for bias on a 0 to 1 scale and list what was flagged:
occupational stereotypes, gendered pronoun imbalance, and sweeping
generalisations about groups.

Examples:
  guardrails bias "All women are bad at maths"
  guardrails bias --file reply.txt -f json`,
	RunE: runBias,
}

func init() {
	biasCmd.Flags().StringP("file", "F", "", "read the text from this file")
	rootCmd.AddCommand(biasCmd)
}

func runBias(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	return newWriter(cmd, cfg).WithColor(output.ColorAuto).WriteBias(bias.Score(text))
}
