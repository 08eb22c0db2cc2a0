package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/melroyanthony/llm-guardrails/internal/guard"
	"github.com/melroyanthony/llm-guardrails/internal/injection"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
	"github.com/melroyanthony/llm-guardrails/internal/validate"
)

type inputRequest struct {
	Text *string `json:"text"`
}

type outputRequest struct {
	Text       *string     `json:"text"`
	PIIMapping pii.Mapping `json:"pii_mapping"`
}

type fullRequest struct {
	Text                 *string `json:"text"`
	SimulatedLLMResponse *string `json:"simulated_llm_response"`
}

type restoreRequest struct {
	Text    *string     `json:"text"`
	Mapping pii.Mapping `json:"mapping"`
}

type inputResponse struct {
	SanitisedText  string      `json:"sanitised_text"`
	PIIMapping     pii.Mapping `json:"pii_mapping"`
	InjectionScore float64     `json:"injection_score"`
	IsInjection    bool        `json:"is_injection"`
	MatchedRules   []string    `json:"matched_rules"`
	Blocked        bool        `json:"blocked"`
}

type outputResponse struct {
	FinalText          string           `json:"final_text"`
	IsValid            bool             `json:"is_valid"`
	ValidationIssues   []validate.Issue `json:"validation_issues"`
	HallucinationScore float64          `json:"hallucination_score"`
	BiasScore          float64          `json:"bias_score"`
	BiasFlags          []string         `json:"bias_flags"`
}

type fullResponse struct {
	InputGuard  inputResponse   `json:"input_guard"`
	OutputGuard *outputResponse `json:"output_guard"`
	Blocked     bool            `json:"blocked"`
}

type redactResponse struct {
	RedactedText string      `json:"redacted_text"`
	Mapping      pii.Mapping `json:"mapping"`
}

type restoreResponse struct {
	Text string `json:"text"`
}

type rulesResponse struct {
	Threshold float64              `json:"threshold"`
	Rules     []injection.RuleInfo `json:"rules"`
}

func toInputResponse(pre guard.PreResult) inputResponse {
	return inputResponse{
		SanitisedText:  pre.SanitisedText,
		PIIMapping:     pre.Mapping,
		InjectionScore: pre.Injection.Score,
		IsInjection:    pre.Injection.IsInjection,
		MatchedRules:   pre.Injection.MatchedRules,
		Blocked:        pre.Blocked,
	}
}

func toOutputResponse(post guard.PostResult) outputResponse {
	return outputResponse{
		FinalText:          post.FinalText,
		IsValid:            post.Validation.Valid,
		ValidationIssues:   post.Validation.Issues,
		HallucinationScore: post.Validation.HallucinationScore,
		BiasScore:          post.Bias.Score,
		BiasFlags:          post.Bias.Flags,
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errMissingText is reported as 422, like any other schema violation of a
// well-formed body.
var errMissingText = errors.New("field 'text' is required")

// decode reads a JSON body into v. It writes the error response itself
// and reports whether the handler should continue.
func decode(w http.ResponseWriter, r *http.Request, v any, text func() *string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}
	if text() == nil {
		writeError(w, http.StatusUnprocessableEntity, errMissingText.Error())
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Server) handleGuardInput(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !decode(w, r, &req, func() *string { return req.Text }) {
		return
	}
	writeJSON(w, http.StatusOK, toInputResponse(s.pipeline.PreProcess(*req.Text)))
}

func (s *Server) handleGuardOutput(w http.ResponseWriter, r *http.Request) {
	var req outputRequest
	if !decode(w, r, &req, func() *string { return req.Text }) {
		return
	}
	post := s.pipeline.PostProcess(*req.Text, req.PIIMapping)
	writeJSON(w, http.StatusOK, toOutputResponse(post))
}

func (s *Server) handleGuardFull(w http.ResponseWriter, r *http.Request) {
	var req fullRequest
	if !decode(w, r, &req, func() *string { return req.Text }) {
		return
	}

	var responder guard.Responder = guard.Simulated{}
	switch {
	case req.SimulatedLLMResponse != nil && *req.SimulatedLLMResponse != "":
		responder = guard.Simulated{Response: *req.SimulatedLLMResponse}
	case s.responder != nil:
		responder = s.timed(s.responder)
	}

	res, err := s.pipeline.Run(r.Context(), *req.Text, responder)
	if err != nil {
		s.logger.Error("model call failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	resp := fullResponse{
		InputGuard: toInputResponse(res.Input),
		Blocked:    res.Blocked,
	}
	if res.Output != nil {
		out := toOutputResponse(*res.Output)
		resp.OutputGuard = &out
	}
	writeJSON(w, http.StatusOK, resp)
}

// timed records the latency and outcome of each model call.
func (s *Server) timed(next guard.Responder) guard.Responder {
	return guard.ResponderFunc(func(ctx context.Context, prompt string) (string, error) {
		start := time.Now()
		reply, err := next.Respond(ctx, prompt)
		s.metrics.RecordLLMRequest(err, time.Since(start))
		return reply, err
	})
}

func (s *Server) handleInjectionRules(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rulesResponse{
		Threshold: s.pipeline.Threshold(),
		Rules:     s.pipeline.Rules(),
	})
}

func (s *Server) handleRedact(w http.ResponseWriter, r *http.Request) {
	var req inputRequest
	if !decode(w, r, &req, func() *string { return req.Text }) {
		return
	}
	text, mapping := s.pipeline.Redact(*req.Text)
	writeJSON(w, http.StatusOK, redactResponse{RedactedText: text, Mapping: mapping})
}

func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	var req restoreRequest
	if !decode(w, r, &req, func() *string { return req.Text }) {
		return
	}
	writeJSON(w, http.StatusOK, restoreResponse{Text: pii.Restore(*req.Text, req.Mapping)})
}
