// Package bias scores text for demographic-bias language: stereotyping
// phrases, lopsided gender references and absolute generalisations.
package bias

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Report is the outcome of scoring one text.
type Report struct {
	Score float64  `json:"score"`
	Flags []string `json:"flags"`
}

const (
	stereotypeWeight     = 0.40
	imbalanceWeight      = 0.25
	generalisationWeight = 0.35
	imbalanceThreshold   = 3.0
)

type stereotype struct {
	pattern     *regexp.Regexp
	description string
}

var stereotypes = []stereotype{
	{
		pattern:     regexp.MustCompile(`(?i)\b(women|men|girls|boys)\s+(are|aren't|can't|should|shouldn't)\s+(naturally|inherently|biologically|always|never)`),
		description: "Gender-stereotyping language detected",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(all|every|no)\s+(men|women|asians?|blacks?|whites?|latinos?|hispanics?|muslims?|christians?|jews?|hindus?)\s+(are|have|lack|need)`),
		description: "Absolute generalisation about a demographic group",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(typical|stereotypical|expected)\s+(of|for)\s+(a|an|the)\s+(man|woman|asian|black|white|latino|hispanic|muslim|christian|jew|hindu)`),
		description: "Explicit stereotyping framing detected",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(elderly|old\s+people|seniors?)\s+(are|can't|shouldn't|always|never)\b`),
		description: "Age-stereotyping language detected",
	},
	{
		pattern:     regexp.MustCompile(`(?i)\b(disabled|handicapped)\s+(people|persons?|individuals?)\s+(can't|are\s+unable|should\s+not|never)`),
		description: "Disability-stereotyping language detected",
	},
}

var generalisation = regexp.MustCompile(`(?i)\b(all|every|no|none\s+of\s+the|always|never)\s+(men|women|people\s+from|members\s+of|those\s+who)\b`)

// Gender tokens are counted by plain substring presence, once each, so
// "the" counts as a male reference. The imbalance check only fires when
// both sides are present, which keeps the effect of such hits small.
var (
	maleTokens   = []string{"he", "him", "his", "man", "men", "boy", "boys", "male", "father", "husband"}
	femaleTokens = []string{"she", "her", "hers", "woman", "women", "girl", "girls", "female", "mother", "wife"}
)

// Score rates text for bias in [0, 1], rounded to four decimals, and
// returns one human-readable flag per signal found.
func Score(text string) Report {
	flags := []string{}
	total := 0.0

	hits := 0
	for _, s := range stereotypes {
		if s.pattern.MatchString(text) {
			flags = append(flags, s.description)
			hits++
		}
	}
	if hits > 0 {
		total += math.Min(float64(hits)*0.5, 1) * stereotypeWeight
	}

	lower := strings.ToLower(text)
	male := countTokens(lower, maleTokens)
	female := countTokens(lower, femaleTokens)
	if male > 0 && female > 0 {
		hi, lo := float64(max(male, female)), float64(min(male, female))
		ratio := hi / lo
		if ratio >= imbalanceThreshold {
			dominant := "female"
			if male > female {
				dominant = "male"
			}
			flags = append(flags, fmt.Sprintf(
				"Gender-reference imbalance: %s references outnumber the other by %.1fx", dominant, ratio))
			total += math.Min((ratio-imbalanceThreshold)/5+0.3, 1) * imbalanceWeight
		}
	}

	if n := len(generalisation.FindAllStringIndex(text, -1)); n > 0 {
		flags = append(flags, fmt.Sprintf("Absolute generalisation marker(s) found (%d occurrence(s))", n))
		total += math.Min(float64(n)*0.4, 1) * generalisationWeight
	}

	return Report{Score: round4(math.Min(total, 1)), Flags: flags}
}

func countTokens(lower string, tokens []string) int {
	n := 0
	for _, tok := range tokens {
		if strings.Contains(lower, tok) {
			n++
		}
	}
	return n
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
