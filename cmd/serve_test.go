package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("addr", ":8080", "")
	cmd.Flags().Bool("llm", false, "")
}

func serveTest(t *testing.T, setLLM bool) http.Handler {
	t.Helper()

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() error = %v", err)
	}

	var out bytes.Buffer
	cmd := newTestCmd("serve", &out, addServeFlags)
	if setLLM {
		setFlag(t, cmd, "llm", "true")
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := newServer(t.Context(), cmd, cfg, logger)
	if err != nil {
		t.Fatalf("newServer() error = %v", err)
	}
	return srv.Routes(t.Context())
}

func postJSON(t *testing.T, h http.Handler, path, body string) map[string]any {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("POST %s = %d: %s", path, rec.Code, rec.Body.String())
	}
	var got map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	return got
}

func TestServeHealth(t *testing.T) {
	viper.Reset()
	h := serveTest(t, false)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"version":"`+version+`"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}

func TestServeSimulatedFull(t *testing.T) {
	viper.Reset()
	h := serveTest(t, false)

	got := postJSON(t, h, "/guard/full", `{"text":"please greet Jane Doe"}`)
	out, ok := got["output_guard"].(map[string]any)
	if !ok {
		t.Fatalf("output_guard missing: %v", got)
	}
	if out["final_text"] != "[Simulated LLM response to]: please greet Jane Doe" {
		t.Errorf("final_text = %v", out["final_text"])
	}

	// The collector behind /metrics sees the redaction.
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `label="NAME"`) {
		t.Errorf("metrics should count the NAME redaction:\n%s", rec.Body.String())
	}
}

func TestServeWithLLM(t *testing.T) {
	srv, sent := fakeOllama(t, []string{"Hi <<NAME_1>>, welcome."})

	viper.Reset()
	viper.Set("llm.ollama.host", srv.URL)
	h := serveTest(t, true)

	got := postJSON(t, h, "/guard/full", `{"text":"please greet Jane Doe"}`)
	out, ok := got["output_guard"].(map[string]any)
	if !ok {
		t.Fatalf("output_guard missing: %v", got)
	}
	if out["final_text"] != "Hi Jane Doe, welcome." {
		t.Errorf("final_text = %v", out["final_text"])
	}

	msgs := sent()
	if len(msgs) != 2 || msgs[1]["content"] != "please greet <<NAME_1>>" {
		t.Errorf("model got %v", msgs)
	}

	// A canned reply in the request still wins over the model.
	got = postJSON(t, h, "/guard/full", `{"text":"hi","simulated_llm_response":"canned"}`)
	if out := got["output_guard"].(map[string]any); out["final_text"] != "canned" {
		t.Errorf("final_text = %v, want canned", out["final_text"])
	}
}
