// Package validate checks model output against structural and content
// rules: length, JSON shape, required and blocked keywords, and a
// hedging-language heuristic for likely hallucination.
package validate

import (
	"fmt"
	"strings"
)

// Severity levels for issues.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Rule names reported on issues.
const (
	RuleMaxLength       = "max_length"
	RuleJSONSchema      = "json_schema"
	RuleHallucination   = "hallucination"
	RuleRequiredKeyword = "required_keyword"
	RuleBlockedKeyword  = "blocked_keyword"
)

// DefaultHallucinationThreshold is the hedging score that raises a warning.
const DefaultHallucinationThreshold = 0.6

// Options selects the checks to run. The zero value runs no checks; use
// DefaultOptions for the usual defaults.
type Options struct {
	// JSONSchema, when set, requires the output to be JSON matching it.
	JSONSchema string
	// MaxLength limits the output length in bytes; zero or less disables it.
	MaxLength int

	CheckHallucination     bool
	HallucinationThreshold float64

	// Keywords are matched case-insensitively as substrings.
	RequiredKeywords []string
	BlockedKeywords  []string
}

// DefaultOptions enables the hallucination check at the default threshold.
func DefaultOptions() Options {
	return Options{
		CheckHallucination:     true,
		HallucinationThreshold: DefaultHallucinationThreshold,
	}
}

// Issue is a single failed check.
type Issue struct {
	Rule     string `json:"rule"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// Result is the outcome of validating one output.
type Result struct {
	Valid              bool    `json:"is_valid"`
	Issues             []Issue `json:"issues"`
	HallucinationScore float64 `json:"hallucination_score"`
}

// Errors returns the issues with error severity.
func (r Result) Errors() []Issue {
	var errs []Issue
	for _, i := range r.Issues {
		if i.Severity == SeverityError {
			errs = append(errs, i)
		}
	}
	return errs
}

// Validate runs the checks selected by opts against text. Output is valid
// when no issue has error severity; warnings do not fail it. Malformed
// JSON, in the output or in the schema, is reported as an issue.
func Validate(text string, opts Options) Result {
	issues := []Issue{}

	if opts.MaxLength > 0 && len(text) > opts.MaxLength {
		issues = append(issues, Issue{
			Rule:     RuleMaxLength,
			Message:  fmt.Sprintf("Output length (%d) exceeds maximum (%d)", len(text), opts.MaxLength),
			Severity: SeverityError,
		})
	}

	if opts.JSONSchema != "" {
		issues = append(issues, checkJSON(text, opts.JSONSchema)...)
	}

	var hScore float64
	if opts.CheckHallucination {
		hScore = HallucinationScore(text)
		if hScore >= opts.HallucinationThreshold {
			issues = append(issues, Issue{
				Rule:     RuleHallucination,
				Message:  fmt.Sprintf("High hedging-language score (%.2f), possible hallucination", hScore),
				Severity: SeverityWarning,
			})
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range opts.RequiredKeywords {
		if !strings.Contains(lower, strings.ToLower(kw)) {
			issues = append(issues, Issue{
				Rule:     RuleRequiredKeyword,
				Message:  fmt.Sprintf("Required keyword missing: '%s'", kw),
				Severity: SeverityError,
			})
		}
	}
	for _, kw := range opts.BlockedKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			issues = append(issues, Issue{
				Rule:     RuleBlockedKeyword,
				Message:  fmt.Sprintf("Blocked keyword found: '%s'", kw),
				Severity: SeverityError,
			})
		}
	}

	valid := true
	for _, i := range issues {
		if i.Severity == SeverityError {
			valid = false
			break
		}
	}

	return Result{
		Valid:              valid,
		Issues:             issues,
		HallucinationScore: hScore,
	}
}
