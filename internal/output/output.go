// Package output renders guard results for the terminal. It supports
// text, JSON, and table formats.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/melroyanthony/llm-guardrails/internal/bias"
	"github.com/melroyanthony/llm-guardrails/internal/guard"
	"github.com/melroyanthony/llm-guardrails/internal/injection"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
	"github.com/melroyanthony/llm-guardrails/internal/tail"
	"github.com/melroyanthony/llm-guardrails/internal/validate"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w        io.Writer
	format   Format
	colorize bool
}

// New creates a new output Writer. Color is off until WithColor is called.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// WithColor enables ANSI colors according to mode.
func (wr *Writer) WithColor(mode ColorMode) *Writer {
	wr.colorize = shouldColorize(mode, wr.w)
	return wr
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

type redactionJSON struct {
	RedactedText string      `json:"redacted_text"`
	Mapping      pii.Mapping `json:"pii_mapping"`
}

// WriteRedaction outputs redacted text and the mapping that restores it.
// Text format prints only the redacted text.
func (wr *Writer) WriteRedaction(redacted string, m pii.Mapping) error {
	switch wr.format {
	case FormatJSON:
		if m == nil {
			m = pii.Mapping{}
		}
		return wr.WriteJSON(redactionJSON{RedactedText: redacted, Mapping: m})
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "PLACEHOLDER\tLABEL\tVALUE")
		fmt.Fprintln(tw, "-----------\t-----\t-----")
		for _, ph := range m.Placeholders() {
			label, _, _ := pii.ParsePlaceholder(ph)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", ph, label, m[ph])
		}
		return tw.Flush()
	default:
		_, err := fmt.Fprintln(wr.w, wr.placeholders(redacted))
		return err
	}
}

// WriteRestored outputs text with placeholders substituted back.
func (wr *Writer) WriteRestored(text string) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(map[string]string{"restored_text": text})
	}
	_, err := fmt.Fprintln(wr.w, text)
	return err
}

// WriteInjection outputs an injection verdict.
func (wr *Writer) WriteInjection(res injection.Result) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(res)
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tVERDICT\tMATCHED RULES")
		fmt.Fprintln(tw, "-----\t-------\t-------------")
		fmt.Fprintf(tw, "%.2f\t%s\t%s\n", res.Score, verdict(res.IsInjection), joinOrDash(res.MatchedRules))
		return tw.Flush()
	default:
		fmt.Fprintf(wr.w, "Verdict:   %s\n", wr.verdict(res.IsInjection))
		fmt.Fprintf(wr.w, "Score:     %.2f\n", res.Score)
		_, err := fmt.Fprintf(wr.w, "Matched:   %s\n", joinOrDash(res.MatchedRules))
		return err
	}
}

type rulesJSON struct {
	Threshold float64              `json:"threshold"`
	Rules     []injection.RuleInfo `json:"rules"`
}

// WriteRules lists injection rules and the blocking threshold.
func (wr *Writer) WriteRules(rules []injection.RuleInfo, threshold float64) error {
	if wr.format == FormatJSON {
		return wr.WriteJSON(rulesJSON{Threshold: threshold, Rules: rules})
	}

	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tWEIGHT\tEXPLANATION")
	fmt.Fprintln(tw, "-----\t------\t-----------")
	for _, r := range rules {
		fmt.Fprintf(tw, "%s\t%.2f\t%s\n", r.Label, r.Weight, r.Explanation)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(wr.w, "\nBlocking threshold: %.2f\n", threshold)
	return err
}

// WriteBias outputs a bias report.
func (wr *Writer) WriteBias(rep bias.Report) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(rep)
	case FormatTable:
		tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SCORE\tFLAG")
		fmt.Fprintln(tw, "-----\t----")
		if len(rep.Flags) == 0 {
			fmt.Fprintf(tw, "%.2f\t-\n", rep.Score)
		}
		for i, f := range rep.Flags {
			score := ""
			if i == 0 {
				score = fmt.Sprintf("%.2f", rep.Score)
			}
			fmt.Fprintf(tw, "%s\t%s\n", score, f)
		}
		return tw.Flush()
	default:
		fmt.Fprintf(wr.w, "Bias score: %.2f\n", rep.Score)
		for _, f := range rep.Flags {
			fmt.Fprintf(wr.w, "  - %s\n", wr.severity(validate.SeverityWarning, f))
		}
		return nil
	}
}

// WriteValidation outputs a validation result.
func (wr *Writer) WriteValidation(res validate.Result) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(res)
	case FormatTable:
		return wr.issueTable(res.Issues)
	default:
		wr.writeValidationText(res)
		return nil
	}
}

func (wr *Writer) writeValidationText(res validate.Result) {
	status := "valid"
	if !res.Valid {
		status = "invalid"
	}
	fmt.Fprintf(wr.w, "Output is %s (hallucination score %.2f)\n", wr.status(!res.Valid, status), res.HallucinationScore)
	for _, is := range res.Issues {
		fmt.Fprintf(wr.w, "  [%s] %s: %s\n", wr.severity(is.Severity, is.Severity), is.Rule, is.Message)
	}
}

func (wr *Writer) issueTable(issues []validate.Issue) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tRULE\tMESSAGE")
	fmt.Fprintln(tw, "--------\t----\t-------")
	for _, is := range issues {
		msg := is.Message
		if len(msg) > 80 {
			msg = msg[:77] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", is.Severity, is.Rule, msg)
	}
	return tw.Flush()
}

// WritePre outputs the result of the input guard.
func (wr *Writer) WritePre(res guard.PreResult) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(res)
	case FormatTable:
		return wr.summaryTable(&res, nil)
	default:
		wr.writePreText(res)
		return nil
	}
}

func (wr *Writer) writePreText(res guard.PreResult) {
	fmt.Fprintf(wr.w, "Input:     %s\n", wr.verdict(res.Blocked))
	fmt.Fprintf(wr.w, "Sanitised: %s\n", wr.placeholders(res.SanitisedText))
	fmt.Fprintf(wr.w, "Injection: %.2f (%s)\n", res.Injection.Score, joinOrDash(res.Injection.MatchedRules))
	if n := res.Mapping.Len(); n > 0 {
		fmt.Fprintf(wr.w, "Redacted:  %s\n", formatCounts(res.Mapping.Counts()))
	}
}

// WritePost outputs the result of the output guard.
func (wr *Writer) WritePost(res guard.PostResult) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(res)
	case FormatTable:
		return wr.summaryTable(nil, &res)
	default:
		wr.writePostText(res)
		return nil
	}
}

func (wr *Writer) writePostText(res guard.PostResult) {
	fmt.Fprintln(wr.w, res.FinalText)
	fmt.Fprintln(wr.w)
	wr.writeValidationText(res.Validation)
	fmt.Fprintf(wr.w, "Bias score: %.2f\n", res.Bias.Score)
	for _, f := range res.Bias.Flags {
		fmt.Fprintf(wr.w, "  - %s\n", wr.severity(validate.SeverityWarning, f))
	}
}

// WriteFull outputs the result of a full guarded round trip.
func (wr *Writer) WriteFull(res guard.FullResult) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(res)
	case FormatTable:
		return wr.summaryTable(&res.Input, res.Output)
	default:
		wr.writePreText(res.Input)
		fmt.Fprintln(wr.w)
		if res.Output == nil {
			_, err := fmt.Fprintln(wr.w, "Request blocked before reaching the model.")
			return err
		}
		wr.writePostText(*res.Output)
		return nil
	}
}

// summaryTable prints one row per check that ran.
func (wr *Writer) summaryTable(pre *guard.PreResult, post *guard.PostResult) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tRESULT\tSCORE\tDETAILS")
	fmt.Fprintln(tw, "-----\t------\t-----\t-------")

	if pre != nil {
		fmt.Fprintf(tw, "pii\t%d redacted\t-\t%s\n", pre.Mapping.Len(), formatCounts(pre.Mapping.Counts()))
		fmt.Fprintf(tw, "injection\t%s\t%.2f\t%s\n", verdict(pre.Blocked), pre.Injection.Score, joinOrDash(pre.Injection.MatchedRules))
	}
	if post != nil {
		status := "valid"
		if !post.Validation.Valid {
			status = "invalid"
		}
		fmt.Fprintf(tw, "validation\t%s\t%.2f\t%d issue(s)\n", status, post.Validation.HallucinationScore, len(post.Validation.Issues))
		fmt.Fprintf(tw, "bias\t%d flag(s)\t%.2f\t%s\n", len(post.Bias.Flags), post.Bias.Score, joinOrDash(post.Bias.Flags))
	}
	return tw.Flush()
}

type lineJSON struct {
	Seq        int            `json:"seq"`
	Text       string         `json:"text"`
	Redactions map[string]int `json:"redactions,omitempty"`
}

// WriteLine outputs one tailed line. Original values never appear: JSON
// carries per-label counts instead of the mapping.
func (wr *Writer) WriteLine(l tail.Line) error {
	if wr.format == FormatJSON {
		enc := json.NewEncoder(wr.w)
		enc.SetEscapeHTML(false)
		return enc.Encode(lineJSON{Seq: l.Seq, Text: l.Redacted, Redactions: l.Mapping.Counts()})
	}
	_, err := fmt.Fprintln(wr.w, wr.placeholders(l.Redacted))
	return err
}

func (wr *Writer) verdict(blocked bool) string {
	return wr.status(blocked, verdict(blocked))
}

// status colors text red when bad and green otherwise.
func (wr *Writer) status(bad bool, text string) string {
	if !wr.colorize {
		return text
	}
	return ColorizeVerdict(bad, text)
}

func (wr *Writer) severity(sev, text string) string {
	if !wr.colorize {
		return text
	}
	return ColorizeSeverity(sev, text)
}

func (wr *Writer) placeholders(text string) string {
	if !wr.colorize {
		return text
	}
	return ColorizePlaceholders(text)
}

func verdict(blocked bool) string {
	if blocked {
		return "BLOCKED"
	}
	return "allowed"
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// formatCounts renders label counts as "EMAIL=2, NAME=1".
func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(counts))
	for _, label := range slices.Sorted(maps.Keys(counts)) {
		parts = append(parts, fmt.Sprintf("%s=%d", label, counts[label]))
	}
	return strings.Join(parts, ", ")
}
