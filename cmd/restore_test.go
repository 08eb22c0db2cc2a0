package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/viper"

	"github.com/melroyanthony/llm-guardrails/internal/pii"
)

func TestRestore(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	mapPath := filepath.Join(t.TempDir(), "map.json")
	if err := writeMapping(mapPath, pii.Mapping{"<<NAME_1>>": "Jane Doe"}); err != nil {
		t.Fatalf("writeMapping() error = %v", err)
	}

	tests := []struct {
		name  string
		args  []string
		stdin string
		want  string
	}{
		{name: "args", args: []string{"Dear <<NAME_1>>,"}, want: "Dear Jane Doe,\n"},
		{name: "stdin", stdin: "Bye <<NAME_1>>\n", want: "Bye Jane Doe\n"},
		{name: "unknown placeholder kept", args: []string{"<<NAME_2>>"}, want: "<<NAME_2>>\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			cmd := newTestCmd("restore", &out, addRestoreFlags)
			cmd.SetIn(strings.NewReader(tt.stdin))
			setFlag(t, cmd, "mapping", mapPath)

			if err := runRestore(cmd, tt.args); err != nil {
				t.Fatalf("runRestore() error = %v", err)
			}
			if got := out.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRestoreRoundTrip(t *testing.T) {
	viper.Reset()
	viper.Set("format", "text")

	dir := t.TempDir()
	mapPath := filepath.Join(dir, "map.yaml")
	original := "Send 4111 1111 1111 1111 receipts to jane@example.com"

	var out bytes.Buffer
	redact := newTestCmd("redact", &out, addRedactFlags)
	setFlag(t, redact, "mapping-out", mapPath)
	if err := runRedact(redact, []string{original}); err != nil {
		t.Fatalf("runRedact() error = %v", err)
	}
	redacted := strings.TrimSuffix(out.String(), "\n")

	out.Reset()
	restore := newTestCmd("restore", &out, addRestoreFlags)
	setFlag(t, restore, "mapping", mapPath)
	if err := runRestore(restore, []string{redacted}); err != nil {
		t.Fatalf("runRestore() error = %v", err)
	}
	if got := strings.TrimSuffix(out.String(), "\n"); got != original {
		t.Errorf("round trip = %q, want %q", got, original)
	}
}

func TestRestoreJSON(t *testing.T) {
	viper.Reset()
	viper.Set("format", "json")

	mapPath := filepath.Join(t.TempDir(), "map.json")
	if err := writeMapping(mapPath, pii.Mapping{"<<EMAIL_1>>": "a@example.com"}); err != nil {
		t.Fatalf("writeMapping() error = %v", err)
	}

	var out bytes.Buffer
	cmd := newTestCmd("restore", &out, addRestoreFlags)
	setFlag(t, cmd, "mapping", mapPath)
	if err := runRestore(cmd, []string{"to <<EMAIL_1>>"}); err != nil {
		t.Fatalf("runRestore() error = %v", err)
	}
	if !strings.Contains(out.String(), `"restored_text": "to a@example.com"`) {
		t.Errorf("json = %s", out.String())
	}
}

func TestRestoreBadMapping(t *testing.T) {
	viper.Reset()

	var out bytes.Buffer
	cmd := newTestCmd("restore", &out, addRestoreFlags)
	setFlag(t, cmd, "mapping", filepath.Join(t.TempDir(), "missing.json"))

	if err := runRestore(cmd, []string{"x"}); err == nil {
		t.Error("runRestore() should fail for a missing mapping file")
	}
}
