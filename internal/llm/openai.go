package llm

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIProvider implements Provider against the OpenAI chat-completions
// API (or any OpenAI-compatible endpoint reachable via BaseURL).
type OpenAIProvider struct {
	client *openai.Client
	models []ModelInfo
}

// NewOpenAIProvider builds a Provider backed by an OpenAI-compatible API.
// baseURL may be empty to use the default OpenAI endpoint; defaultModel is
// returned first from Models().
func NewOpenAIProvider(apiKey, baseURL, defaultModel string) *OpenAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(cfg),
		models: []ModelInfo{{ID: defaultModel}},
	}
}

func (p *OpenAIProvider) Models() []ModelInfo { return p.models }

// Complete issues a non-streamed chat completion and delivers it as a
// single chunk, which suits the reranker's single-number replies.
func (p *OpenAIProvider) Complete(ctx context.Context, req *CompletionRequest) (<-chan *Chunk, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	for _, m := range req.Messages {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     req.Model,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("openai completion: %w", err)
	}

	ch := make(chan *Chunk, 1)
	var text string
	if len(resp.Choices) > 0 {
		text = resp.Choices[0].Message.Content
	}
	ch <- &Chunk{Text: text, Done: true}
	close(ch)
	return ch, nil
}
