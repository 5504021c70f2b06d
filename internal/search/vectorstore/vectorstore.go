// Package vectorstore defines the dense document store used by the search
// pipeline and an in-memory implementation suitable for small tool
// catalogues.
package vectorstore

import (
	"context"
	"fmt"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// HealthStatus summarises a store's readiness.
type HealthStatus struct {
	Healthy bool
	Detail  string
}

// Store is the dense vector store interface. Implementations back it with
// an in-memory linear scan (suitable for <=10^4 documents, see MemoryStore)
// or a persisted pgvector-backed table (see PGStore).
type Store interface {
	// Upsert inserts or replaces documents by id. All documents in one call
	// must share the store's configured dimension or the whole batch fails.
	Upsert(ctx context.Context, docs []Document) (models.UpsertStats, error)

	// Search returns up to topK results ordered by descending cosine
	// similarity, restricted to documents matching filter.
	Search(ctx context.Context, queryVec models.Vector, filter models.SearchFilter, topK int) ([]models.SearchResult, error)

	// Delete removes documents by id and reports how many existed.
	Delete(ctx context.Context, ids []string) (int, error)

	// DeleteByFilter removes every document matching filter.
	DeleteByFilter(ctx context.Context, filter models.SearchFilter) (int, error)

	Count(ctx context.Context) (int, error)
	Health(ctx context.Context) HealthStatus
}

// Document is one dense record: an indexed tool description plus its
// embedding.
type Document struct {
	models.IndexedDocument
	Vector models.Vector
}

// ErrDimensionMismatch is returned when a document's vector length does not
// match the store's configured dimension.
type ErrDimensionMismatch struct {
	Want, Got int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("vectorstore: dimension mismatch: want %d, got %d", e.Want, e.Got)
}
