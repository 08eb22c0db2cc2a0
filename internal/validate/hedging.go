package validate

import (
	"math"
	"regexp"
)

// hedgingPhrases signal uncertainty. Many of them in one answer suggest
// the model is guessing.
var hedgingPhrases = []string{
	"I think",
	"I believe",
	"I'm not sure",
	"I am not sure",
	"it is possible that",
	"it might be",
	"probably",
	"perhaps",
	"maybe",
	"as far as I know",
	"to the best of my knowledge",
	"I cannot confirm",
	"I don't have access",
	"I do not have access",
	"reportedly",
	"allegedly",
	"it seems",
	"it appears",
}

var hedgingPatterns = func() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(hedgingPhrases))
	for i, p := range hedgingPhrases {
		patterns[i] = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(p))
	}
	return patterns
}()

// hedgesForMax is the number of distinct phrases that saturates the score.
const hedgesForMax = 5

// HallucinationScore returns the share of hedging phrases present in
// text, saturating at five distinct phrases and rounded to four decimals.
func HallucinationScore(text string) float64 {
	if text == "" {
		return 0
	}
	hits := 0
	for _, p := range hedgingPatterns {
		if p.MatchString(text) {
			hits++
		}
	}
	score := math.Min(float64(hits)/hedgesForMax, 1)
	return math.Round(score*10000) / 10000
}
