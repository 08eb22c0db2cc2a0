// Package llm provides the model call that sits between the input and
// output guards.
//
// # Overview
//
// Prompts reach a Provider only after redaction, so a Provider sees
// placeholders such as <<EMAIL_1>> rather than the values they stand for.
// Replies are restored by the caller, usually through a
// pii.RestoringWriter so that streamed tokens are restored as they arrive.
//
// Provider implementations live in subpackages. To avoid import cycles a
// subpackage defines its own types mirroring Provider, and this package
// wraps it in an adapter.
//
//	┌──────────────┐
//	│ llm package  │  ← Provider interface
//	│              │  ← NewProvider() factory and adapters
//	└──────┬───────┘
//	       │
//	┌──────▼──────┐
//	│ llm/ollama  │
//	└─────────────┘
//
// # Usage
//
//	provider, err := llm.NewProvider(cfg, logger)
//	if err != nil {
//	    return err
//	}
//	if err := provider.Heartbeat(ctx); err != nil {
//	    return err
//	}
//
//	rw := pii.NewRestoringWriter(os.Stdout, pre.Mapping)
//	stream, err := provider.ChatStream(ctx, []llm.Message{
//	    {Role: "system", Content: systemPrompt},
//	    {Role: "user", Content: pre.SanitisedText},
//	}, llm.OptionsFromConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	for event := range stream {
//	    if event.Error != nil {
//	        return event.Error
//	    }
//	    rw.Write([]byte(event.Content))
//	}
//	rw.Close()
//
// # Error Handling
//
//   - ErrProviderUnavailable: the service is not reachable
//   - ErrModelNotFound: the requested model has not been pulled
//   - ErrContextCanceled: the request was canceled or timed out
//
// Use errors.Is to check for them.
//
// # Configuration
//
//	llm:
//	  provider: ollama
//	  temperature: 0
//	  max_tokens: 0
//	  ollama:
//	    host: http://localhost:11434
//	    model: llama3.2
//	    keep_alive: 5m
//	    num_ctx: 8192
//
// Environment variables use the GUARDRAILS_ prefix, for example
// GUARDRAILS_LLM_OLLAMA_HOST.
package llm
