// Package ollama embeds through a local Ollama server, the default
// provider: no API key, no data leaving the host.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kubiyabot/skill-engine/internal/memory/embeddings"
)

// Provider calls Ollama's embedding endpoints.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client
}

var _ embeddings.Provider = (*Provider)(nil)

// Config selects the Ollama endpoint and model.
type Config struct {
	BaseURL string // default http://localhost:11434
	Model   string // default nomic-embed-text
}

// New builds a Provider. The server is not contacted until the first
// embed call.
func New(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Model == "" {
		cfg.Model = "nomic-embed-text"
	}
	return &Provider{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: 60 * time.Second},
	}, nil
}

func (p *Provider) Name() string { return "ollama" }

// Dimension maps the known local models to their output width. Unknown
// models assume the nomic default; a mismatch surfaces as a dimension
// error on the first upsert rather than silently truncated vectors.
func (p *Provider) Dimension() int {
	switch p.model {
	case "nomic-embed-text":
		return 768
	case "mxbai-embed-large":
		return 1024
	case "all-minilm":
		return 384
	default:
		return 768
	}
}

func (p *Provider) MaxBatchSize() int { return 100 }

// Embed maps one text through /api/embeddings.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := struct {
		Model  string `json:"model"`
		Prompt string `json:"prompt"`
	}{Model: p.model, Prompt: text}

	var result struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := p.post(ctx, "/api/embeddings", payload, &result); err != nil {
		return nil, err
	}
	return result.Embedding, nil
}

// EmbedBatch maps texts through /api/embed, which accepts a batch in one
// request on current Ollama versions; older servers that reject it get a
// per-text fallback.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	payload := struct {
		Model string   `json:"model"`
		Input []string `json:"input"`
	}{Model: p.model, Input: texts}

	var result struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := p.post(ctx, "/api/embed", payload, &result); err == nil && len(result.Embeddings) == len(texts) {
		return result.Embeddings, nil
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vector, err := p.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed text %d of %d: %w", i+1, len(texts), err)
		}
		vectors[i] = vector
	}
	return vectors, nil
}

func (p *Provider) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("ollama %s returned %d: %s", path, resp.StatusCode, detail)
	}
	return json.NewDecoder(resp.Body).Decode(result)
}
