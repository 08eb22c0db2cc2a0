package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/melroyanthony/llm-guardrails/internal/output"
	"github.com/melroyanthony/llm-guardrails/internal/tail"
)

var tailCmd = &cobra.Command{
	Use:   "tail [flags] <file>",
	Short: "Live-tail a file with PII redacted",
	Long: `Watch a file in real-time, similar to 'tail -f', with every line
redacted before it is printed. Each line is redacted on its own, so
placeholder numbers restart on every line.

The --pattern filter is matched against the redacted line; use a
placeholder prefix such as "<<EMAIL_" to see only lines that held email
addresses.

Examples:
  guardrails tail /var/log/app.log
  guardrails tail --labels EMAIL,PHONE /var/log/app.log
  guardrails tail --pattern "<<CREDIT_CARD_" --no-follow -n 100 app.log
  guardrails tail --follow-rotate /var/log/app.log`,
	Args: cobra.ExactArgs(1),
	RunE: runTail,
}

func init() {
	addTailFlags(tailCmd)
	rootCmd.AddCommand(tailCmd)
}

func addTailFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("pattern", "p", "", "only show lines whose redacted text matches this regex")
	cmd.Flags().IntP("lines", "n", 10, "number of initial lines to show")
	cmd.Flags().Bool("no-follow", false, "print last N lines and exit (don't follow)")
	cmd.Flags().Bool("follow-rotate", false, "follow through log rotations (continue when file is renamed/removed)")
	cmd.Flags().Bool("no-color", false, "disable colored output")
	cmd.Flags().StringSlice("labels", []string{}, "only redact these labels (default from config, else all)")
}

func runTail(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	lines, _ := cmd.Flags().GetInt("lines")
	noFollow, _ := cmd.Flags().GetBool("no-follow")
	followRotate, _ := cmd.Flags().GetBool("follow-rotate")
	noColor, _ := cmd.Flags().GetBool("no-color")
	patternStr, _ := cmd.Flags().GetString("pattern")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if _, err := os.Stat(filePath); err != nil {
		return fmt.Errorf("file does not exist: %s", filePath)
	}

	var pattern *regexp.Regexp
	if patternStr != "" {
		pattern, err = regexp.Compile(patternStr)
		if err != nil {
			return fmt.Errorf("invalid pattern: %w", err)
		}
	}

	redactor, err := redactorFor(cmd, cfg)
	if err != nil {
		return err
	}

	colorMode := output.ColorAuto
	if noColor {
		colorMode = output.ColorNever
	}
	w := newWriter(cmd, cfg).WithColor(colorMode)

	tailer, err := tail.New(tail.Options{
		FilePath:     filePath,
		Lines:        lines,
		Follow:       !noFollow,
		FollowRotate: followRotate,
		Pattern:      pattern,
		Redactor:     redactor,
		Logger:       newLogger(cfg),
		OutputFunc:   w.WriteLine,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = tailer.Run(ctx)
	if errors.Is(err, tail.ErrRotated) {
		fmt.Fprintf(os.Stderr, "%s was rotated; use --follow-rotate to keep following\n", filePath)
		return nil
	}
	return err
}
