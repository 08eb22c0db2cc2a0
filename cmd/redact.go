package cmd

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/output"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

var redactCmd = &cobra.Command{
	Use:   "redact [text]",
	Short: "Replace PII with reversible placeholders",
	Long: `Replace personally identifiable information with placeholders such
as <<EMAIL_1>>. The mapping from placeholders back to the original values
can be saved with --mapping-out and fed to 'guardrails restore'.

Input is taken from the arguments, from --file (repeatable, globs allowed,
"-" for stdin), or from stdin; arguments and --file cannot be combined.
Files are redacted concurrently and each file gets its own mapping.

Examples:
  guardrails redact "Call Jane Doe on 555-123-4567"
  guardrails redact --labels EMAIL,PHONE --mapping-out map.yaml < prompt.txt
  guardrails redact --file "logs/*.log" -f json`,
	RunE: runRedact,
}

func init() {
	addRedactFlags(redactCmd)
	rootCmd.AddCommand(redactCmd)
}

func addRedactFlags(cmd *cobra.Command) {
	cmd.Flags().StringSliceP("file", "F", []string{}, "file(s) to redact (repeatable, globs allowed, - for stdin)")
	cmd.Flags().String("mapping-out", "", "write the placeholder mapping to this file (.json, .yaml)")
	cmd.Flags().StringSlice("labels", []string{}, "only redact these labels (default from config, else all)")
}

// redactedFile is the outcome of redacting one input.
type redactedFile struct {
	File         string      `json:"file"`
	RedactedText string      `json:"redacted_text"`
	Mapping      pii.Mapping `json:"pii_mapping"`
}

func runRedact(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	files, _ := cmd.Flags().GetStringSlice("file")
	mappingOut, _ := cmd.Flags().GetString("mapping-out")

	redactor, err := redactorFor(cmd, cfg)
	if err != nil {
		return err
	}
	if len(files) > 0 && len(args) > 0 {
		return errors.New("pass text as arguments or with --file, not both")
	}
	w := newWriter(cmd, cfg).WithColor(output.ColorAuto)

	if len(files) == 0 {
		text, err := readInput(cmd, args)
		if err != nil {
			return err
		}
		redacted, mapping := redactor.Redact(text)
		if mappingOut != "" {
			if err := writeMapping(mappingOut, mapping); err != nil {
				return err
			}
		}
		return w.WriteRedaction(redacted, mapping)
	}

	expanded, err := config.ExpandGlobs(files)
	if err != nil {
		return err
	}
	if mappingOut != "" && len(expanded) > 1 {
		return errors.New("--mapping-out needs a single input; each file has its own mapping")
	}

	results, err := redactFiles(cmd, redactor, expanded)
	if err != nil {
		return err
	}

	if mappingOut != "" {
		if err := writeMapping(mappingOut, results[0].Mapping); err != nil {
			return err
		}
	}

	if len(results) == 1 {
		return w.WriteRedaction(results[0].RedactedText, results[0].Mapping)
	}
	if output.ParseFormat(cfg.Format) == output.FormatJSON {
		return w.WriteJSON(results)
	}
	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "==> %s <==\n", r.File)
		if err := w.WriteRedaction(r.RedactedText, r.Mapping); err != nil {
			return err
		}
	}
	return nil
}

// redactFiles reads and redacts files concurrently. Results keep the
// order of files.
func redactFiles(cmd *cobra.Command, redactor *pii.Redactor, files []string) ([]redactedFile, error) {
	results := make([]redactedFile, len(files))

	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, file := range files {
		g.Go(func() error {
			text, err := readSource(cmd, file)
			if err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}
			redacted, mapping := redactor.Redact(text)
			results[i] = redactedFile{File: file, RedactedText: redacted, Mapping: mapping}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// redactorFor honours --labels, falling back to pii.labels from config.
func redactorFor(cmd *cobra.Command, cfg *config.Config) (*pii.Redactor, error) {
	labels := cfg.PII.Labels
	if cmd.Flags().Changed("labels") {
		labels, _ = cmd.Flags().GetStringSlice("labels")
	}
	for i, l := range labels {
		labels[i] = strings.ToUpper(strings.TrimSpace(l))
	}
	r, err := pii.NewRedactor(labels...)
	if err != nil {
		return nil, fmt.Errorf("invalid --labels: %w", err)
	}
	return r, nil
}
