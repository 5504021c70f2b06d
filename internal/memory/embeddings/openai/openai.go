// Package openai embeds through the OpenAI embeddings API, or any
// API-compatible endpoint via BaseURL.
package openai

import (
	"context"
	"fmt"

	"github.com/kubiyabot/skill-engine/internal/memory/embeddings"
	"github.com/sashabaranov/go-openai"
)

// Provider calls the OpenAI embeddings endpoint.
type Provider struct {
	client *openai.Client
	model  string
}

var _ embeddings.Provider = (*Provider)(nil)

// Config selects credentials, endpoint, and model.
type Config struct {
	APIKey  string
	BaseURL string // optional OpenAI-compatible endpoint
	Model   string // default text-embedding-3-small
}

// New builds a Provider. The key is required up front so a misconfigured
// engine fails at startup, not on the first query.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai embedding provider requires an API key")
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Provider{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}, nil
}

func (p *Provider) Name() string { return "openai" }

// Dimension maps the published model widths; unknown models assume the
// small-model width and fail loudly at the store on mismatch.
func (p *Provider) Dimension() int {
	switch p.model {
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-3-small", "text-embedding-ada-002":
		return 1536
	default:
		return 1536
	}
}

// MaxBatchSize follows the API's documented per-request input cap.
func (p *Provider) MaxBatchSize() int { return 2048 }

// Embed maps one text; a single-element batch under the hood.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai returned no embedding")
	}
	return vectors[0], nil
}

// EmbedBatch maps texts in one request, reordered by the response's index
// field so results line up with the input regardless of API ordering.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(p.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	vectors := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(vectors) {
			return nil, fmt.Errorf("openai returned out-of-range embedding index %d", data.Index)
		}
		vectors[data.Index] = data.Embedding
	}
	return vectors, nil
}
