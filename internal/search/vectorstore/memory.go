package vectorstore

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// MemoryStore is an in-memory Store backed by a linear cosine-similarity
// scan with no persistence: suitable for the local tool catalogues this engine indexes
// (typically well under 10^4 documents).
type MemoryStore struct {
	dimension int

	mu   sync.RWMutex
	docs map[string]Document
}

// NewMemoryStore creates an in-memory store with a fixed embedding
// dimension. The dimension is set by the first upsert if 0.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{dimension: dimension, docs: make(map[string]Document)}
}

func (s *MemoryStore) Upsert(ctx context.Context, docs []Document) (models.UpsertStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	if dim == 0 {
		for _, d := range docs {
			dim = len(d.Vector)
			break
		}
	}
	for _, d := range docs {
		if len(d.Vector) != dim {
			return models.UpsertStats{}, &ErrDimensionMismatch{Want: dim, Got: len(d.Vector)}
		}
	}

	var stats models.UpsertStats
	for _, d := range docs {
		if _, exists := s.docs[d.ID]; exists {
			stats.Updated++
		} else {
			stats.Inserted++
		}
		s.docs[d.ID] = d
	}
	s.dimension = dim
	return stats, nil
}

func (s *MemoryStore) Search(ctx context.Context, queryVec models.Vector, filter models.SearchFilter, topK int) ([]models.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]models.SearchResult, 0, len(s.docs))
	for _, d := range s.docs {
		if !filter.Match(d.IndexedDocument) {
			continue
		}
		score := cosineSimilarity(queryVec, d.Vector)
		results = append(results, models.SearchResult{ID: d.ID, Score: score, DenseScore: ptr(score), Metadata: d.Meta})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *MemoryStore) Delete(ctx context.Context, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, id := range ids {
		if _, ok := s.docs[id]; ok {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DeleteByFilter(ctx context.Context, filter models.SearchFilter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, d := range s.docs {
		if filter.Match(d.IndexedDocument) {
			delete(s.docs, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

func (s *MemoryStore) Health(ctx context.Context) HealthStatus {
	return HealthStatus{Healthy: true, Detail: "in-memory store"}
}

func cosineSimilarity(a, b models.Vector) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func ptr(f float32) *float32 { return &f }
