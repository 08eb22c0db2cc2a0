package guard

import (
	"context"
	"errors"

	"github.com/melroyanthony/llm-guardrails/internal/llm"
)

// Responder produces the model reply to a sanitised prompt.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// ResponderFunc adapts a function to Responder.
type ResponderFunc func(ctx context.Context, prompt string) (string, error)

func (f ResponderFunc) Respond(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// SimulatedPrefix starts the reply of a Simulated responder with no
// canned response.
const SimulatedPrefix = "[Simulated LLM response to]: "

// Simulated replies without calling a model. An empty Response echoes
// the prompt after SimulatedPrefix.
type Simulated struct {
	Response string
}

func (s Simulated) Respond(_ context.Context, prompt string) (string, error) {
	if s.Response != "" {
		return s.Response, nil
	}
	return SimulatedPrefix + prompt, nil
}

// LLMResponder asks a Provider for a complete reply.
type LLMResponder struct {
	Provider llm.Provider
	Options  *llm.ChatOptions

	// System, when set, is sent as a system message before the prompt.
	System string
}

func (l LLMResponder) Respond(ctx context.Context, prompt string) (string, error) {
	if l.Provider == nil {
		return "", errors.New("no llm provider configured")
	}
	msgs := make([]llm.Message, 0, 2)
	if l.System != "" {
		msgs = append(msgs, llm.Message{Role: "system", Content: l.System})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: prompt})

	resp, err := l.Provider.Chat(ctx, msgs, l.Options)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
