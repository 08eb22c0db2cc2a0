package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

// ErrNoInput is returned when a command has no text to work on.
var ErrNoInput = errors.New("no input: pass text as an argument, use --file, or pipe it on stdin")

// readInput returns the command's text: the arguments joined by spaces,
// else the --file flag when the command has one, else stdin unless it is
// a terminal. One trailing newline is dropped from file and stdin input.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}

	if f := cmd.Flags().Lookup("file"); f != nil && f.Value.Type() == "string" && f.Value.String() != "" {
		return readSource(cmd, f.Value.String())
	}

	return readSource(cmd, config.Stdin)
}

// readSource reads path, or stdin for config.Stdin.
func readSource(cmd *cobra.Command, path string) (string, error) {
	var (
		data []byte
		err  error
	)
	if path == config.Stdin {
		in := cmd.InOrStdin()
		if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
			return "", ErrNoInput
		}
		data, err = io.ReadAll(in)
		if err == nil && len(data) == 0 {
			return "", ErrNoInput
		}
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return trimNewline(string(data)), nil
}

// trimNewline drops one trailing "\n" or "\r\n". A lone "\r" is content.
func trimNewline(s string) string {
	if s, ok := strings.CutSuffix(s, "\r\n"); ok {
		return s
	}
	return strings.TrimSuffix(s, "\n")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// writeMapping stores m at path as YAML for .yaml/.yml and JSON otherwise.
// The file holds original PII values, so it is created owner-only.
func writeMapping(path string, m pii.Mapping) error {
	if m == nil {
		m = pii.Mapping{}
	}

	var buf bytes.Buffer
	if isYAML(path) {
		data, err := yaml.Marshal(map[string]string(m))
		if err != nil {
			return fmt.Errorf("failed to encode mapping: %w", err)
		}
		buf.Write(data)
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode mapping: %w", err)
		}
	}

	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write mapping: %w", err)
	}
	return nil
}

// readMapping loads a mapping written by writeMapping.
func readMapping(path string) (pii.Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}

	m := pii.Mapping{}
	if isYAML(path) {
		err = yaml.Unmarshal(data, &m)
	} else {
		err = json.Unmarshal(data, &m)
	}
	if err != nil {
		return nil, fmt.Errorf("invalid mapping file %s: %w", path, err)
	}
	return m, nil
}
