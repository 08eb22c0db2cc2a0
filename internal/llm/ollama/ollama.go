// Package ollama talks to a local or remote Ollama server.
//
// The types here mirror those in the parent llm package so that llm can
// wrap a Provider without an import cycle.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultModel is used when Config.Model is empty.
const DefaultModel = "llama3.2"

// Provider sends chat requests to Ollama.
type Provider struct {
	client    *api.Client
	model     string
	keepAlive *api.Duration
	numCtx    int
	logger    *slog.Logger
}

// Config holds Ollama-specific configuration.
type Config struct {
	// Host is the Ollama API endpoint (e.g., "http://localhost:11434").
	// Empty falls back to OLLAMA_HOST.
	Host string

	// Model is the default model to use (e.g., "llama3.2")
	Model string

	// KeepAlive is how long the server keeps the model loaded, e.g. "5m".
	KeepAlive string

	// NumCtx overrides the model's context window when positive.
	NumCtx int

	// HTTPClient is used for requests when Host is set. Defaults to
	// http.DefaultClient.
	HTTPClient *http.Client
}

// Message is a single chat turn.
type Message struct {
	Role    string
	Content string
}

// ChatOptions configures one request.
type ChatOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Response is a complete, non-streamed reply.
type Response struct {
	Content      string
	Model        string
	TokensPrompt int
	TokensTotal  int
}

// StreamEvent is one chunk of a streamed reply.
type StreamEvent struct {
	Content string
	Done    bool
	Error   error
}

var (
	ErrProviderUnavailable = errors.New("llm provider is not reachable")
	ErrModelNotFound       = errors.New("requested model is not available")
	ErrContextCanceled     = errors.New("operation was canceled")
)

// New creates a Provider. If cfg.Host is empty the client is built from
// the environment (OLLAMA_HOST, defaulting to http://localhost:11434).
func New(cfg Config, logger *slog.Logger) (*Provider, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	var client *api.Client
	if cfg.Host != "" {
		u, err := url.Parse(cfg.Host)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama host: %w", err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid ollama host %q: scheme and host are required", cfg.Host)
		}
		httpClient := cfg.HTTPClient
		if httpClient == nil {
			httpClient = http.DefaultClient
		}
		client = api.NewClient(u, httpClient)
		logger.Debug("created ollama client", "host", cfg.Host)
	} else {
		c, err := api.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		client = c
		logger.Debug("created ollama client from environment")
	}

	p := &Provider{
		client: client,
		model:  cfg.Model,
		numCtx: cfg.NumCtx,
		logger: logger,
	}
	if p.model == "" {
		p.model = DefaultModel
	}
	if cfg.KeepAlive != "" {
		d, err := time.ParseDuration(cfg.KeepAlive)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama keep_alive %q: %w", cfg.KeepAlive, err)
		}
		p.keepAlive = &api.Duration{Duration: d}
	}
	return p, nil
}

// Model returns the default model name.
func (p *Provider) Model() string {
	return p.model
}

func (p *Provider) request(messages []Message, opts *ChatOptions, stream bool) *api.ChatRequest {
	model := p.model
	options := map[string]any{"temperature": float32(0)}
	if opts != nil {
		if opts.Model != "" {
			model = opts.Model
		}
		options["temperature"] = opts.Temperature
		if opts.MaxTokens > 0 {
			options["num_predict"] = opts.MaxTokens
		}
	}
	if p.numCtx > 0 {
		options["num_ctx"] = p.numCtx
	}

	msgs := make([]api.Message, len(messages))
	for i, m := range messages {
		msgs[i] = api.Message{Role: m.Role, Content: m.Content}
	}

	return &api.ChatRequest{
		Model:     model,
		Messages:  msgs,
		Options:   options,
		Stream:    &stream,
		KeepAlive: p.keepAlive,
	}
}

// Chat sends messages and waits for the whole reply.
func (p *Provider) Chat(ctx context.Context, messages []Message, opts *ChatOptions) (*Response, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	req := p.request(messages, opts, false)
	p.logger.Debug("sending chat request", "model", req.Model, "messages", len(messages))

	var last api.ChatResponse
	err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		last = resp
		return nil
	})
	if err != nil {
		p.logger.Error("chat request failed", "error", err, "model", req.Model)
		return nil, p.wrap(err, req.Model)
	}

	return &Response{
		Content:      last.Message.Content,
		Model:        last.Model,
		TokensPrompt: last.PromptEvalCount,
		TokensTotal:  last.PromptEvalCount + last.EvalCount,
	}, nil
}

// ChatStream sends messages and returns a channel of reply chunks. The
// channel is closed when the reply ends, fails, or ctx is canceled. A
// failure is delivered as a final event with Error set.
func (p *Provider) ChatStream(ctx context.Context, messages []Message, opts *ChatOptions) (<-chan StreamEvent, error) {
	if len(messages) == 0 {
		return nil, errors.New("messages cannot be empty")
	}
	req := p.request(messages, opts, true)
	p.logger.Debug("starting chat stream", "model", req.Model, "messages", len(messages))

	events := make(chan StreamEvent, 16)
	send := func(ev StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(events)

		err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content == "" && !resp.Done {
				return nil
			}
			if !send(StreamEvent{Content: resp.Message.Content, Done: resp.Done}) {
				return ctx.Err()
			}
			if resp.Done {
				p.logger.Debug("chat stream completed",
					"model", resp.Model,
					"prompt_tokens", resp.PromptEvalCount,
					"eval_tokens", resp.EvalCount)
			}
			return nil
		})
		if err != nil {
			if ctx.Err() == nil {
				p.logger.Error("chat stream failed", "error", err, "model", req.Model)
			}
			// The receiver may have gone; don't block on a canceled context.
			select {
			case events <- StreamEvent{Error: p.wrap(err, req.Model), Done: true}:
			default:
			}
		}
	}()

	return events, nil
}

// Heartbeat checks that the server answers.
func (p *Provider) Heartbeat(ctx context.Context) error {
	if err := p.client.Heartbeat(ctx); err != nil {
		p.logger.Debug("ollama heartbeat failed", "error", err)
		return p.wrap(err, "")
	}
	return nil
}

// ModelAvailable reports whether model has been pulled.
func (p *Provider) ModelAvailable(ctx context.Context, model string) (bool, error) {
	list, err := p.client.List(ctx)
	if err != nil {
		return false, p.wrap(err, model)
	}
	for _, m := range list.Models {
		if m.Name == model || m.Model == model {
			return true, nil
		}
	}
	p.logger.Debug("model not found", "model", model, "available", len(list.Models))
	return false, nil
}

func (p *Provider) wrap(err error, model string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrContextCanceled, err)
	}
	var status api.StatusError
	if errors.As(err, &status) && status.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %v", ErrModelNotFound, model, err)
	}
	return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
}
