package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Stdin is the path that stands for standard input in a file list.
const Stdin = "-"

// ExpandGlobs expands file paths and glob patterns into a sorted, unique
// list of regular files. Directories matched by a glob are skipped; naming
// one directly is an error. Stdin is passed through and sorts first.
func ExpandGlobs(patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, fmt.Errorf("no file patterns provided")
	}

	seen := make(map[string]struct{})
	add := func(path string) {
		seen[path] = struct{}{}
	}

	for _, pattern := range patterns {
		if pattern == Stdin {
			add(Stdin)
			continue
		}

		if !hasGlobMeta(pattern) {
			info, err := os.Stat(pattern)
			if err != nil {
				return nil, err
			}
			if info.IsDir() {
				return nil, fmt.Errorf("%s is a directory", pattern)
			}
			add(pattern)
			continue
		}

		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		found := 0
		for _, match := range matches {
			if info, err := os.Stat(match); err == nil && info.IsDir() {
				continue
			}
			add(match)
			found++
		}
		if found == 0 {
			return nil, fmt.Errorf("no files match pattern %q", pattern)
		}
	}

	files := make([]string, 0, len(seen))
	for path := range seen {
		files = append(files, path)
	}
	slices.SortFunc(files, func(a, b string) int {
		switch {
		case a == Stdin:
			return -1
		case b == Stdin:
			return 1
		}
		return strings.Compare(a, b)
	})
	return files, nil
}

func hasGlobMeta(s string) bool {
	return strings.ContainsAny(s, "*?[")
}
