package output

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/term"

	"github.com/melroyanthony/llm-guardrails/internal/validate"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode converts a --color flag value to a ColorMode.
func ParseColorMode(s string) (ColorMode, error) {
	switch strings.ToLower(s) {
	case "", "auto":
		return ColorAuto, nil
	case "always":
		return ColorAlways, nil
	case "never":
		return ColorNever, nil
	}
	return ColorAuto, fmt.Errorf("invalid color mode %q (expected auto, always, or never)", s)
}

// isTerminal checks if the given file is a terminal.
func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// shouldColorize determines if output should be colorized based on mode and TTY detection.
func shouldColorize(mode ColorMode, w any) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	case ColorAuto:
		if f, ok := w.(*os.File); ok {
			return isTerminal(f)
		}
		return false
	}
	return false
}

// ColorizeVerdict colors text bold red when blocked and green otherwise.
func ColorizeVerdict(blocked bool, text string) string {
	if blocked {
		return colorBold + colorRed + text + colorReset
	}
	return colorGreen + text + colorReset
}

// ColorizeSeverity colors text by issue severity.
func ColorizeSeverity(severity, text string) string {
	switch severity {
	case validate.SeverityError:
		return colorRed + text + colorReset
	case validate.SeverityWarning:
		return colorYellow + text + colorReset
	default:
		return text
	}
}

var placeholderToken = regexp.MustCompile(`<<[A-Z][A-Z_]*_\d+>>`)

// ColorizePlaceholders highlights every <<LABEL_N>> token in text.
func ColorizePlaceholders(text string) string {
	return placeholderToken.ReplaceAllStringFunc(text, func(tok string) string {
		return colorCyan + tok + colorReset
	})
}
