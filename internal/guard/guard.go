// Package guard chains the guards around a model call: redaction and
// injection screening on the way in, validation, bias scoring and
// restoration on the way out.
package guard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/melroyanthony/llm-guardrails/internal/bias"
	"github.com/melroyanthony/llm-guardrails/internal/config"
	"github.com/melroyanthony/llm-guardrails/internal/injection"
	"github.com/melroyanthony/llm-guardrails/internal/pii"
	"github.com/melroyanthony/llm-guardrails/internal/validate"
)

// ErrBlocked is returned by callers that refuse to forward a blocked input.
var ErrBlocked = errors.New("input blocked by injection guard")

// Observer receives the outcome of each guard. It must be safe for
// concurrent use.
type Observer interface {
	ObserveRedaction(counts map[string]int)
	ObserveInjection(r injection.Result)
	ObserveValidation(r validate.Result)
}

// Pipeline runs the enabled guards. It holds no per-request state and is
// safe for concurrent use.
type Pipeline struct {
	pii        bool
	injection  bool
	bias       bool
	validation bool

	threshold float64
	redactor  *pii.Redactor
	detector  *injection.Detector
	vopts     validate.Options

	observer Observer
	logger   *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithPII turns redaction and restoration on or off.
func WithPII(enabled bool) Option { return func(p *Pipeline) { p.pii = enabled } }

// WithInjection turns the injection screen on or off.
func WithInjection(enabled bool) Option { return func(p *Pipeline) { p.injection = enabled } }

// WithBias turns bias scoring of replies on or off.
func WithBias(enabled bool) Option { return func(p *Pipeline) { p.bias = enabled } }

// WithValidation turns the output checks on or off.
func WithValidation(enabled bool) Option { return func(p *Pipeline) { p.validation = enabled } }

// WithInjectionThreshold sets the score at which input is blocked.
func WithInjectionThreshold(t float64) Option {
	return func(p *Pipeline) { p.threshold = t }
}

// WithValidationOptions replaces the output checks.
func WithValidationOptions(o validate.Options) Option {
	return func(p *Pipeline) { p.vopts = o }
}

// WithRedactor restricts redaction to the redactor's rules.
func WithRedactor(r *pii.Redactor) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.redactor = r
		}
	}
}

// WithDetector replaces the built-in injection rules.
func WithDetector(d *injection.Detector) Option {
	return func(p *Pipeline) {
		if d != nil {
			p.detector = d
		}
	}
}

// WithObserver reports every guard outcome to o.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) { p.observer = o }
}

// WithLogger sets the pipeline logger. A nil logger is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New returns a Pipeline with every guard enabled unless opts say
// otherwise.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		pii:        true,
		injection:  true,
		bias:       true,
		validation: true,
		threshold:  injection.DefaultThreshold,
		vopts:      validate.DefaultOptions(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.redactor == nil {
		p.redactor, _ = pii.NewRedactor()
	}
	if p.detector == nil {
		p.detector = injection.Default()
	}
	return p
}

// FromConfig builds a Pipeline from cfg. Extra opts are applied last.
func FromConfig(cfg *config.Config, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	redactor, err := pii.NewRedactor(cfg.PII.Labels...)
	if err != nil {
		return nil, fmt.Errorf("pii.labels: %w", err)
	}

	var detector *injection.Detector
	if cfg.Injection.RulesFile != "" {
		rules, err := injection.LoadRules(cfg.Injection.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("injection.rules_file: %w", err)
		}
		detector = injection.New(rules)
	}

	v := cfg.Validation
	base := []Option{
		WithPII(cfg.PII.Enabled),
		WithInjection(cfg.Injection.Enabled),
		WithBias(cfg.Bias.Enabled),
		WithValidation(v.Enabled),
		WithInjectionThreshold(cfg.Injection.Threshold),
		WithValidationOptions(validate.Options{
			JSONSchema:             v.JSONSchema,
			MaxLength:              v.MaxLength,
			CheckHallucination:     v.CheckHallucination,
			HallucinationThreshold: v.HallucinationThreshold,
			RequiredKeywords:       v.RequiredKeywords,
			BlockedKeywords:        v.BlockedKeywords,
		}),
		WithRedactor(redactor),
		WithDetector(detector),
	}
	return New(append(base, opts...)...), nil
}

// PreResult is the outcome of the input guards.
type PreResult struct {
	SanitisedText string           `json:"sanitised_text"`
	Mapping       pii.Mapping      `json:"pii_mapping"`
	Injection     injection.Result `json:"injection"`
	Blocked       bool             `json:"blocked"`
}

// PostResult is the outcome of the output guards.
type PostResult struct {
	FinalText  string          `json:"final_text"`
	Validation validate.Result `json:"validation"`
	Bias       bias.Report     `json:"bias"`
}

// FullResult is the outcome of Run. Output is nil when the input was
// blocked.
type FullResult struct {
	Input   PreResult   `json:"input_guard"`
	Output  *PostResult `json:"output_guard"`
	Blocked bool        `json:"blocked"`
}

// PreProcess redacts text and screens the redacted text for injection.
func (p *Pipeline) PreProcess(text string) PreResult {
	res := PreResult{
		SanitisedText: text,
		Mapping:       pii.Mapping{},
		Injection:     injection.Result{MatchedRules: []string{}},
	}

	if p.pii {
		res.SanitisedText, res.Mapping = p.redactor.Redact(text)
		if p.observer != nil {
			p.observer.ObserveRedaction(res.Mapping.Counts())
		}
	}

	if p.injection {
		res.Injection = p.detector.Analyse(res.SanitisedText, p.threshold)
		res.Blocked = res.Injection.IsInjection
		if p.observer != nil {
			p.observer.ObserveInjection(res.Injection)
		}
	}

	p.logger.Debug("input guard",
		"redacted", res.Mapping.Len(),
		"injection_score", res.Injection.Score,
		"blocked", res.Blocked)
	if res.Blocked {
		p.logger.Warn("input blocked", "rules", res.Injection.MatchedRules, "score", res.Injection.Score)
	}
	return res
}

// PostProcess validates and scores text, then restores placeholders from
// mapping. The checks see the text as the model wrote it.
func (p *Pipeline) PostProcess(text string, mapping pii.Mapping) PostResult {
	res := PostResult{
		FinalText:  text,
		Validation: validate.Result{Valid: true, Issues: []validate.Issue{}},
		Bias:       bias.Report{Flags: []string{}},
	}

	if p.validation {
		res.Validation = validate.Validate(text, p.vopts)
		if p.observer != nil {
			p.observer.ObserveValidation(res.Validation)
		}
	}
	if p.bias {
		res.Bias = bias.Score(text)
	}
	if p.pii && mapping.Len() > 0 {
		res.FinalText = pii.Restore(text, mapping)
	}

	p.logger.Debug("output guard",
		"valid", res.Validation.Valid,
		"issues", len(res.Validation.Issues),
		"bias_score", res.Bias.Score)
	return res
}

// Run pre-processes text, asks r for a reply to the sanitised text unless
// the input is blocked, and post-processes the reply.
func (p *Pipeline) Run(ctx context.Context, text string, r Responder) (FullResult, error) {
	pre := p.PreProcess(text)
	if pre.Blocked {
		return FullResult{Input: pre, Blocked: true}, nil
	}

	reply, err := r.Respond(ctx, pre.SanitisedText)
	if err != nil {
		return FullResult{Input: pre}, fmt.Errorf("model call failed: %w", err)
	}

	post := p.PostProcess(reply, pre.Mapping)
	return FullResult{Input: pre, Output: &post}, nil
}

// Redact replaces PII in text with the pipeline's redactor whether or not
// the pii guard is enabled.
func (p *Pipeline) Redact(text string) (string, pii.Mapping) {
	out, m := p.redactor.Redact(text)
	if p.observer != nil {
		p.observer.ObserveRedaction(m.Counts())
	}
	return out, m
}

// Rules describes the injection rules in use.
func (p *Pipeline) Rules() []injection.RuleInfo {
	return p.detector.Rules()
}

// Threshold is the injection score at which input is blocked.
func (p *Pipeline) Threshold() float64 {
	return p.threshold
}
