package cmd

import (
	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

var restoreCmd = &cobra.Command{
	Use:   "restore [text] --mapping <file>",
	Short: "Put original values back in place of placeholders",
	Long: `Replace every placeholder found in the mapping file with its original
value. Placeholders missing from the mapping are left as they are.

Examples:
  guardrails restore --mapping map.json "Reply sent to <<EMAIL_1>>"
  guardrails restore --mapping map.yaml --file reply.txt`,
	RunE: runRestore,
}

func init() {
	addRestoreFlags(restoreCmd)
	rootCmd.AddCommand(restoreCmd)
}

func addRestoreFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("mapping", "m", "", "mapping file written by --mapping-out (required)")
	cmd.Flags().StringP("file", "F", "", "read the text from this file")
	_ = cmd.MarkFlagRequired("mapping")
}

func runRestore(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	mappingPath, _ := cmd.Flags().GetString("mapping")

	mapping, err := readMapping(mappingPath)
	if err != nil {
		return err
	}
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	return newWriter(cmd, cfg).WriteRestored(pii.Restore(text, mapping))
}
