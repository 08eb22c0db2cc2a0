// Package injection scores text for prompt-injection attempts using a
// table of weighted patterns.
package injection

import (
	"math"
	"sync"
)

// DefaultThreshold is the score at or above which text is treated as an
// injection attempt.
const DefaultThreshold = 0.5

// multiMatchBonus is added when more than one rule matches.
const multiMatchBonus = 0.10

// Result is the outcome of analysing one text.
type Result struct {
	Score        float64  `json:"score"`
	IsInjection  bool     `json:"is_injection"`
	MatchedRules []string `json:"matched_rules"`
}

// Detector evaluates a fixed rule set. It is safe for concurrent use.
type Detector struct {
	rules []Rule
}

// New creates a Detector over rules. A nil or empty slice selects the
// built-in rules.
func New(rules []Rule) *Detector {
	if len(rules) == 0 {
		rules = builtinRules()
	}
	return &Detector{rules: rules}
}

var defaultDetector = sync.OnceValue(func() *Detector { return New(nil) })

// Default returns the Detector over the built-in rules.
func Default() *Detector {
	return defaultDetector()
}

// Score returns the injection likelihood of text in [0, 1].
func (d *Detector) Score(text string) float64 {
	score, _ := d.evaluate(text)
	return score
}

// Analyse scores text and reports whether it reaches threshold, along
// with the labels of every matching rule in rule order.
func (d *Detector) Analyse(text string, threshold float64) Result {
	score, labels := d.evaluate(text)
	if labels == nil {
		labels = []string{}
	}
	return Result{
		Score:        score,
		IsInjection:  score >= threshold,
		MatchedRules: labels,
	}
}

// Rules lists the rules without their patterns.
func (d *Detector) Rules() []RuleInfo {
	infos := make([]RuleInfo, len(d.rules))
	for i, r := range d.rules {
		infos[i] = RuleInfo{Label: r.Label, Weight: r.Weight, Explanation: r.Explanation}
	}
	return infos
}

func (d *Detector) evaluate(text string) (float64, []string) {
	if text == "" {
		return 0, nil
	}

	var labels []string
	maxWeight := 0.0
	for _, r := range d.rules {
		if r.Pattern.MatchString(text) {
			labels = append(labels, r.Label)
			maxWeight = math.Max(maxWeight, r.Weight)
		}
	}
	if len(labels) == 0 {
		return 0, nil
	}

	score := maxWeight
	if len(labels) >= 2 {
		score += multiMatchBonus
	}
	return math.Min(score, 1), labels
}

// Score scores text against the built-in rules.
func Score(text string) float64 {
	return Default().Score(text)
}

// Analyse analyses text against the built-in rules.
func Analyse(text string, threshold float64) Result {
	return Default().Analyse(text, threshold)
}

// ListRules describes the built-in rules.
func ListRules() []RuleInfo {
	return Default().Rules()
}
