// Package rerank scores fused candidates jointly against the query using an
// LLM, extracting a numeric score from each reply.
package rerank

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kubiyabot/skill-engine/internal/llm"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

const defaultMaxTokens = 16

var scorePattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)

// Document is the minimal view of a candidate a reranker needs: its id and
// the text to score against the query.
type Document struct {
	ID      string
	Content string
}

// Reranker scores (query, document) pairs with a cross-encoder-style LLM
// prompt and reorders results accordingly.
type Reranker struct {
	provider     llm.Provider
	model        string
	maxDocuments int
	minScore     float32
}

// Config tunes a Reranker.
type Config struct {
	Model        string
	MaxDocuments int // default 50
	MinScore     float32
}

// New creates a Reranker backed by provider.
func New(provider llm.Provider, cfg Config) *Reranker {
	if cfg.MaxDocuments <= 0 {
		cfg.MaxDocuments = 50
	}
	return &Reranker{provider: provider, model: cfg.Model, maxDocuments: cfg.MaxDocuments, minScore: cfg.MinScore}
}

// Rerank scores at most r.maxDocuments of candidates against query and
// returns them reordered by rerank_score descending, dropping any below
// r.minScore.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []models.SearchResult, docs map[string]Document) ([]models.SearchResult, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	truncated := candidates
	if len(truncated) > r.maxDocuments {
		truncated = truncated[:r.maxDocuments]
	}

	reranked := make([]models.SearchResult, 0, len(truncated))
	for _, c := range truncated {
		doc, ok := docs[c.ID]
		if !ok {
			continue
		}
		score, err := r.scorePair(ctx, query, doc.Content)
		if err != nil {
			return nil, fmt.Errorf("rerank %s: %w", c.ID, err)
		}
		if score < r.minScore {
			continue
		}
		c.RerankScore = &score
		reranked = append(reranked, c)
	}

	sort.Slice(reranked, func(i, j int) bool { return *reranked[i].RerankScore > *reranked[j].RerankScore })
	return reranked, nil
}

func (r *Reranker) scorePair(ctx context.Context, query, document string) (float32, error) {
	req := &llm.CompletionRequest{
		Model: r.model,
		System: "You are a strict relevance grader. Given a query and a tool description, " +
			"return only a single number between 0 and 1: how well the tool satisfies the query.",
		Messages: []llm.Message{{
			Role:    "user",
			Content: fmt.Sprintf("Query:\n%s\n\nTool:\n%s\n\nRelevance (0-1):", query, document),
		}},
		MaxTokens: defaultMaxTokens,
	}
	ch, err := r.provider.Complete(ctx, req)
	if err != nil {
		return 0, err
	}
	var sb strings.Builder
	for chunk := range ch {
		if chunk == nil {
			continue
		}
		if chunk.Error != nil {
			return 0, chunk.Error
		}
		sb.WriteString(chunk.Text)
		if chunk.Done {
			break
		}
	}
	return parseScore(sb.String())
}

func parseScore(text string) (float32, error) {
	trimmed := strings.TrimSpace(text)
	match := scorePattern.FindString(trimmed)
	if match == "" {
		return 0, fmt.Errorf("no numeric score in response: %q", trimmed)
	}
	val, err := strconv.ParseFloat(match, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid score %q: %w", match, err)
	}
	if val < 0 {
		val = 0
	}
	if val > 1 {
		val = 1
	}
	return float32(val), nil
}
