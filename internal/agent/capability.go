package agent

import (
	"context"
	"errors"
	"strings"
)

// ChatClient is the minimal capability the plan/act/reflect/write loop needs
// from a model provider: a single synchronous completion. It is satisfied by
// any LLMProvider via chatClientAdapter, draining that provider's streaming
// Complete into one string the way the teacher's providers already do
// internally for non-streaming callers.
type ChatClient interface {
	Chat(ctx context.Context, system string, messages []CompletionMessage, temperature float64, maxTokens int) (string, error)
}

// StreamingClient is an optional capability: providers that can hand back
// tokens as they are produced implement it so the loop can forward them to
// a progress callback instead of blocking for the full completion.
type StreamingClient interface {
	ChatClient
	Stream(ctx context.Context, system string, messages []CompletionMessage, temperature float64, onToken func(string)) (string, error)
}

// ToolCallingClient is an optional capability: providers with native
// function/tool calling implement it so the legacy single-pass fallback
// (SPEC_FULL.md's "no plan/reflect JSON" path, grounded on gateway.py's
// _run_legacy_turn) can ask the provider to pick a tool itself instead of
// going through the structured-output parser.
type ToolCallingClient interface {
	ChatClient
	ChatWithTools(ctx context.Context, system string, messages []CompletionMessage, tools []Tool, temperature float64) (string, []ToolCallRequest, error)
}

// ToolCallRequest is one native tool-call the provider asked for.
type ToolCallRequest struct {
	ID   string
	Name string
	Args map[string]any
}

var ErrNoCompletion = errors.New("agent: provider returned no completion")

// providerChatClient adapts any LLMProvider (the teacher's streaming
// abstraction, still used for the raw wire call to Anthropic/OpenAI) into a
// ChatClient by draining Complete's channel and concatenating text deltas.
type providerChatClient struct {
	provider LLMProvider
	model    string
}

// NewChatClient wraps an LLMProvider for the agent loop's synchronous calls.
func NewChatClient(provider LLMProvider, model string) ChatClient {
	return &providerChatClient{provider: provider, model: model}
}

func (c *providerChatClient) Chat(ctx context.Context, system string, messages []CompletionMessage, temperature float64, maxTokens int) (string, error) {
	req := &CompletionRequest{
		Model:     c.model,
		System:    system,
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	chunks, err := c.provider.Complete(ctx, req)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for chunk := range chunks {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return "", chunk.Error
		}
		sb.WriteString(chunk.Text)
	}
	if sb.Len() == 0 {
		return "", ErrNoCompletion
	}
	return sb.String(), nil
}
