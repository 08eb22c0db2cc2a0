package injection

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed rules.yaml
var rulesYAML []byte

// Rule is a weighted prompt-injection pattern.
type Rule struct {
	Label       string
	Weight      float64
	Explanation string
	Pattern     *regexp.Regexp
}

// RuleInfo describes a rule without its pattern.
type RuleInfo struct {
	Label       string  `json:"label" yaml:"label"`
	Weight      float64 `json:"weight" yaml:"weight"`
	Explanation string  `json:"explanation" yaml:"explanation"`
}

type ruleFile struct {
	Rules []ruleDef `yaml:"rules"`
}

type ruleDef struct {
	Label       string  `yaml:"label"`
	Weight      float64 `yaml:"weight"`
	Pattern     string  `yaml:"pattern"`
	Explanation string  `yaml:"explanation"`
}

// ParseRules decodes and compiles a YAML rule file.
func ParseRules(data []byte) ([]Rule, error) {
	var rf ruleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parsing injection rules: %w", err)
	}
	if len(rf.Rules) == 0 {
		return nil, fmt.Errorf("parsing injection rules: no rules defined")
	}

	seen := make(map[string]bool, len(rf.Rules))
	rules := make([]Rule, 0, len(rf.Rules))
	for i, def := range rf.Rules {
		if def.Label == "" {
			return nil, fmt.Errorf("rule %d: label is required", i)
		}
		if seen[def.Label] {
			return nil, fmt.Errorf("rule %s: duplicate label", def.Label)
		}
		seen[def.Label] = true

		if def.Weight < 0 || def.Weight > 1 {
			return nil, fmt.Errorf("rule %s: weight %v outside [0, 1]", def.Label, def.Weight)
		}
		re, err := regexp.Compile(def.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", def.Label, err)
		}
		rules = append(rules, Rule{
			Label:       def.Label,
			Weight:      def.Weight,
			Explanation: def.Explanation,
			Pattern:     re,
		})
	}
	return rules, nil
}

// LoadRules reads a rule file from disk.
func LoadRules(path string) ([]Rule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading injection rules: %w", err)
	}
	return ParseRules(data)
}

var builtinRules = sync.OnceValue(func() []Rule {
	rules, err := ParseRules(rulesYAML)
	if err != nil {
		panic("injection: embedded rules: " + err.Error())
	}
	return rules
})
