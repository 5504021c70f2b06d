// Package search builds and serves the query -> ranked tools function: query
// processing, dense + sparse retrieval, fusion, and optional reranking.
// Context compression is not part of the search path: the Pipeline holds a
// compressor, but Search and SearchFiltered do not run it.
package search

import (
	"context"
	"fmt"
	"sync"

	"github.com/kubiyabot/skill-engine/internal/memory/embeddings"
	"github.com/kubiyabot/skill-engine/internal/search/bm25"
	"github.com/kubiyabot/skill-engine/internal/search/compress"
	"github.com/kubiyabot/skill-engine/internal/search/fusion"
	"github.com/kubiyabot/skill-engine/internal/search/query"
	"github.com/kubiyabot/skill-engine/internal/search/rerank"
	"github.com/kubiyabot/skill-engine/internal/search/vectorstore"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// OverretrievalMultiplier is how many more candidates than top_k each
// retriever returns before fusion, default 3.
const OverretrievalMultiplier = 3

// Config tunes the pipeline's fusion and reranking behaviour.
type Config struct {
	FusionMethod fusion.Method
	RRFK         int
	Rerank       bool
	Compress     bool
}

// Pipeline wires together the dense store, sparse index, embedding
// provider, and the optional reranker and compressor.
type Pipeline struct {
	cfg        Config
	dense      vectorstore.Store
	sparse     *bm25.Index
	embedder   embeddings.Provider
	reranker   *rerank.Reranker
	compressor *compress.Compressor

	mu   sync.RWMutex
	docs map[string]models.IndexedDocument
}

// New builds a Pipeline. reranker may be nil to disable reranking
// regardless of cfg. compressor is stored but never run by Search or
// SearchFiltered, so cfg.Compress has no effect.
func New(cfg Config, dense vectorstore.Store, sparse *bm25.Index, embedder embeddings.Provider, reranker *rerank.Reranker, compressor *compress.Compressor) *Pipeline {
	return &Pipeline{
		cfg:        cfg,
		dense:      dense,
		sparse:     sparse,
		embedder:   embedder,
		reranker:   reranker,
		compressor: compressor,
		docs:       make(map[string]models.IndexedDocument),
	}
}

// Index upserts documents into the dense store and replaces their sparse
// entries. Dimension mismatches fail the whole batch; nothing is partially
// applied. Re-indexing identical content is a semantic no-op.
func (p *Pipeline) Index(ctx context.Context, documents []models.IndexedDocument) error {
	if len(documents) == 0 {
		return nil
	}

	texts := make([]string, len(documents))
	for i, d := range documents {
		texts[i] = d.Content
	}
	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("search: embed batch: %w", err)
	}
	if len(vectors) != len(documents) {
		return fmt.Errorf("search: embedding provider returned %d vectors for %d documents", len(vectors), len(documents))
	}

	denseDocs := make([]vectorstore.Document, len(documents))
	for i, d := range documents {
		denseDocs[i] = vectorstore.Document{IndexedDocument: d, Vector: vectors[i]}
	}
	if _, err := p.dense.Upsert(ctx, denseDocs); err != nil {
		return fmt.Errorf("search: dense upsert: %w", err)
	}

	p.mu.Lock()
	for _, d := range documents {
		p.sparse.Add(d)
		p.docs[d.ID] = d
	}
	p.mu.Unlock()
	p.sparse.Commit()
	return nil
}

// Search runs the full pipeline and returns at most topK results. Scores
// are non-NaN and ordering is monotonically non-increasing. If reranking is
// enabled and configured, RerankScore is populated and orders the results;
// otherwise Score orders them.
func (p *Pipeline) Search(ctx context.Context, rawQuery string, topK int) ([]models.SearchResult, error) {
	return p.SearchFiltered(ctx, rawQuery, topK, models.SearchFilter{})
}

// SearchFiltered is Search constrained to documents matching filter, the
// caller-facing `filters: {skill}` knob of the query protocol.
func (p *Pipeline) SearchFiltered(ctx context.Context, rawQuery string, topK int, filter models.SearchFilter) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = 10
	}
	processed := query.Process(rawQuery)
	overretrieveK := topK * OverretrievalMultiplier

	queryVec, err := p.embedder.Embed(ctx, processed.Expanded)
	if err != nil {
		return nil, fmt.Errorf("search: embed query: %w", err)
	}

	dense, err := p.dense.Search(ctx, queryVec, filter, overretrieveK)
	if err != nil {
		return nil, fmt.Errorf("search: dense search: %w", err)
	}
	sparse := p.sparse.Search(processed.Expanded, filter, overretrieveK)

	fused := fusion.Fuse(p.cfg.FusionMethod, dense, sparse, p.cfg.RRFK)

	if p.cfg.Rerank && p.reranker != nil {
		p.mu.RLock()
		rerankDocs := make(map[string]rerank.Document, len(fused))
		for _, r := range fused {
			if d, ok := p.docs[r.ID]; ok {
				rerankDocs[r.ID] = rerank.Document{ID: d.ID, Content: d.Content}
			}
		}
		p.mu.RUnlock()
		fused, err = p.reranker.Rerank(ctx, processed.Expanded, fused, rerankDocs)
		if err != nil {
			return nil, fmt.Errorf("search: rerank: %w", err)
		}
	}

	if len(fused) > topK {
		fused = fused[:topK]
	}
	return fused, nil
}

// Document looks up the indexed document backing a search result id.
func (p *Pipeline) Document(id string) (models.IndexedDocument, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	d, ok := p.docs[id]
	return d, ok
}
