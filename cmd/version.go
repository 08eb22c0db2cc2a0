package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/output"
)

// Set with -ldflags "-X .../cmd.version=..." at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

type buildInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Built   string `json:"built"`
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().Bool("short", false, "print only the version number")
	rootCmd.AddCommand(versionCmd)
}

func runVersion(cmd *cobra.Command, _ []string) error {
	if short, _ := cmd.Flags().GetBool("short"); short {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	w := newWriter(cmd, cfg)
	if output.ParseFormat(cfg.Format) == output.FormatJSON {
		return w.WriteJSON(buildInfo{Version: version, Commit: commit, Built: date})
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "guardrails %s (commit: %s, built: %s)\n", version, commit, date)
	return err
}
