package pii

import (
	"regexp"
	"slices"
	"sync"
)

// Labels for the built-in rules.
const (
	LabelSSN         = "SSN"
	LabelCreditCard  = "CREDIT_CARD"
	LabelEmail       = "EMAIL"
	LabelPhone       = "PHONE"
	LabelIPAddress   = "IP_ADDRESS"
	LabelDateOfBirth = "DATE_OF_BIRTH"
	LabelName        = "NAME"
)

// Rule pairs a placeholder label with the pattern that detects it.
type Rule struct {
	Label       string
	Pattern     *regexp.Regexp
	Description string
}

// ruleSources lists the built-in rules in application order. Narrow shapes
// come first so that broader patterns later in the list cannot consume
// their characters: an SSN is digits too, and would otherwise feed the
// credit card pass.
var ruleSources = []struct {
	label       string
	expr        string
	description string
}{
	{
		// 123-45-6789
		label:       LabelSSN,
		expr:        `\b\d{3}-\d{2}-\d{4}\b`,
		description: "US social security numbers",
	},
	{
		// 13 to 19 digits, optionally grouped by spaces or dashes
		label:       LabelCreditCard,
		expr:        `\b(?:\d[ -]*?){13,19}\b`,
		description: "Payment card numbers",
	},
	{
		label:       LabelEmail,
		expr:        `\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`,
		description: "Email addresses",
	},
	{
		// 555-123-4567, (555) 123-4567, +1 555.123.4567
		label:       LabelPhone,
		expr:        `(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`,
		description: "North American phone numbers",
	},
	{
		label:       LabelIPAddress,
		expr:        `\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d\d?)\b`,
		description: "IPv4 addresses",
	},
	{
		// 04/12/1990, 4-12-90
		label:       LabelDateOfBirth,
		expr:        `\b\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}\b`,
		description: "Numeric calendar dates",
	},
	{
		// Two consecutive capitalised words. Matches "New York" and misses
		// "alice smith"; both are accepted.
		label:       LabelName,
		expr:        `\b[A-Z][a-z]+\s[A-Z][a-z]+\b`,
		description: "Personal names (two capitalised words)",
	},
}

var registry = sync.OnceValue(func() []Rule {
	rules := make([]Rule, len(ruleSources))
	for i, src := range ruleSources {
		rules[i] = Rule{
			Label:       src.label,
			Pattern:     regexp.MustCompile(src.expr),
			Description: src.description,
		}
	}
	return rules
})

// Registry returns the built-in rules in the order they are applied.
// The rules are compiled on first use and shared by every caller.
func Registry() []Rule {
	return slices.Clone(registry())
}

// Labels returns the rule labels in application order.
func Labels() []string {
	rules := registry()
	labels := make([]string, len(rules))
	for i, r := range rules {
		labels[i] = r.Label
	}
	return labels
}

// Lookup returns the rule registered under label.
func Lookup(label string) (Rule, bool) {
	for _, r := range registry() {
		if r.Label == label {
			return r, true
		}
	}
	return Rule{}, false
}

// labelRank orders labels by registry position; unknown labels sort last.
func labelRank(label string) int {
	for i, r := range registry() {
		if r.Label == label {
			return i
		}
	}
	return len(ruleSources)
}
