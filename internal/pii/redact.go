package pii

import (
	"fmt"
	"sync"
)

// Redactor replaces PII in text with reversible placeholder tokens.
// A Redactor holds no per-call state and is safe for concurrent use.
type Redactor struct {
	rules []Rule
}

var defaultRedactor = sync.OnceValue(func() *Redactor {
	return &Redactor{rules: registry()}
})

// NewRedactor creates a Redactor limited to the given labels. With no
// labels every built-in rule is used. Rules always run in registry order,
// whatever order the labels are given in.
func NewRedactor(labels ...string) (*Redactor, error) {
	if len(labels) == 0 {
		return defaultRedactor(), nil
	}

	want := make(map[string]bool, len(labels))
	for _, l := range labels {
		if _, ok := Lookup(l); !ok {
			return nil, fmt.Errorf("unknown pii label %q (available: %v)", l, Labels())
		}
		want[l] = true
	}

	var rules []Rule
	for _, r := range registry() {
		if want[r.Label] {
			rules = append(rules, r)
		}
	}
	return &Redactor{rules: rules}, nil
}

// Labels returns the labels this Redactor applies, in order.
func (r *Redactor) Labels() []string {
	labels := make([]string, len(r.rules))
	for i, rule := range r.rules {
		labels[i] = rule.Label
	}
	return labels
}

// Redact runs the built-in rules over text. See Redactor.Redact.
func Redact(text string) (string, Mapping) {
	return defaultRedactor().Redact(text)
}

// Redact replaces every rule match in text with a <<LABEL_N>> placeholder
// and returns the redacted text with the placeholder mapping.
//
// Rules run one after another over the evolving buffer. A match that is
// already a placeholder, or that overlaps a placeholder emitted earlier in
// this call, is left alone, so no span is redacted twice. Redact never
// fails; text without PII comes back unchanged with an empty mapping.
func (r *Redactor) Redact(text string) (string, Mapping) {
	mapping := make(Mapping)
	if text == "" {
		return text, mapping
	}

	buf := text
	for _, rule := range r.rules {
		buf = redactPass(buf, rule, mapping)
	}
	return buf, mapping
}

type replacement struct {
	start, end int
	token      string
}

// redactPass applies a single rule to buf. All spans are computed from the
// same snapshot and spliced in from the right so earlier offsets stay valid.
func redactPass(buf string, rule Rule, mapping Mapping) string {
	locs := rule.Pattern.FindAllStringIndex(buf, -1)
	if len(locs) == 0 {
		return buf
	}

	var taken [][]int
	if len(mapping) > 0 {
		taken = placeholderSpans(buf, mapping)
	}

	reps := make([]replacement, 0, len(locs))
	counter := 0
	for _, loc := range locs {
		match := buf[loc[0]:loc[1]]
		if isPlaceholderShaped(match) || overlapsAny(loc, taken) {
			continue
		}
		counter++
		token := Placeholder(rule.Label, counter)
		mapping[token] = match
		reps = append(reps, replacement{start: loc[0], end: loc[1], token: token})
	}

	for i := len(reps) - 1; i >= 0; i-- {
		rep := reps[i]
		buf = buf[:rep.start] + rep.token + buf[rep.end:]
	}
	return buf
}

// placeholderSpans locates the tokens in buf that this call has emitted.
func placeholderSpans(buf string, mapping Mapping) [][]int {
	var spans [][]int
	for _, loc := range placeholderPattern.FindAllStringIndex(buf, -1) {
		if _, ok := mapping[buf[loc[0]:loc[1]]]; ok {
			spans = append(spans, loc)
		}
	}
	return spans
}

func overlapsAny(loc []int, spans [][]int) bool {
	for _, s := range spans {
		if loc[0] < s[1] && s[0] < loc[1] {
			return true
		}
	}
	return false
}
