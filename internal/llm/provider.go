// Package llm defines a minimal chat-completion provider interface used by
// the search pipeline's reranker. It is a
// narrow replacement for a full chat-agent provider abstraction: streaming
// responses, a single system+messages prompt, and a model list.
package llm

import "context"

// Message is one turn of a completion request.
type Message struct {
	Role    string // "system", "user", or "assistant"
	Content string
}

// CompletionRequest is a single non-conversational completion call: a model
// name, a system prompt, a message list, and a token budget.
type CompletionRequest struct {
	Model     string
	System    string
	Messages  []Message
	MaxTokens int
}

// Chunk is one piece of a streamed completion. A provider that does not
// stream natively may emit the full response as a single chunk with Done
// set to true.
type Chunk struct {
	Text     string
	Done     bool
	Error    error
	ToolCall *ToolCall
}

// ToolCall signals that the provider attempted to invoke a tool rather than
// return text. The reranker treats this as an error: its prompt never
// offers tools.
type ToolCall struct {
	Name string
}

// ModelInfo describes one model a Provider can serve.
type ModelInfo struct {
	ID string
}

// Provider is a chat-completion backend. Implementations wrap a specific
// API (OpenAI-compatible, Ollama, ...).
type Provider interface {
	// Complete starts a completion and streams its output on the returned
	// channel. The channel is closed after a chunk with Done set to true,
	// or after an error chunk.
	Complete(ctx context.Context, req *CompletionRequest) (<-chan *Chunk, error)

	// Models lists the models this provider can serve, most-preferred first.
	Models() []ModelInfo
}
