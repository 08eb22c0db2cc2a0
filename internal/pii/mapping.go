package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// placeholderPattern matches tokens emitted by Redact, e.g. <<EMAIL_1>>.
var placeholderPattern = regexp.MustCompile(`<<([A-Z][A-Z_]*)_(\d+)>>`)

// Mapping associates each placeholder emitted by a redaction with the
// original text it replaced. The caller owns it once returned.
type Mapping map[string]string

// Len returns the number of placeholders in the mapping.
func (m Mapping) Len() int {
	return len(m)
}

// Placeholders returns the keys ordered by rule, then by counter.
func (m Mapping) Placeholders() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		li, ni, oki := ParsePlaceholder(keys[i])
		lj, nj, okj := ParsePlaceholder(keys[j])
		if !oki || !okj {
			if oki != okj {
				return oki
			}
			return keys[i] < keys[j]
		}
		if ri, rj := labelRank(li), labelRank(lj); ri != rj {
			return ri < rj
		}
		if li != lj {
			return li < lj
		}
		return ni < nj
	})
	return keys
}

// Counts returns how many placeholders each label contributed.
func (m Mapping) Counts() map[string]int {
	counts := make(map[string]int)
	for k := range m {
		if label, _, ok := ParsePlaceholder(k); ok {
			counts[label]++
		}
	}
	return counts
}

// Placeholder formats the token for the n-th match of label.
func Placeholder(label string, n int) string {
	return fmt.Sprintf("<<%s_%d>>", label, n)
}

// ParsePlaceholder splits a token such as <<PHONE_2>> into its label and counter.
func ParsePlaceholder(token string) (label string, n int, ok bool) {
	m := placeholderPattern.FindStringSubmatch(token)
	if m == nil || m[0] != token {
		return "", 0, false
	}
	n, err := strconv.Atoi(m[2])
	if err != nil {
		return "", 0, false
	}
	return m[1], n, true
}

// isPlaceholderShaped reports whether s already looks like a <<...>> token.
func isPlaceholderShaped(s string) bool {
	return strings.HasPrefix(s, "<<") && strings.HasSuffix(s, ">>")
}
