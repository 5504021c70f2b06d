// Package embeddings abstracts the models that map tool documentation and
// search queries to fixed-length vectors. The search pipeline only ever
// sees this interface; which model runs, and where, is a construction-time
// decision wired from configuration.
package embeddings

import "context"

// Provider is one embedding model. Dimension is declared up front and
// never changes for the life of the provider; the vector store sizes its
// collection from it and refuses vectors of any other length.
type Provider interface {
	// Embed maps one text to a vector. Used for queries.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch maps texts to vectors in one round trip where the backend
	// allows it. Used for document indexing; len(result) == len(texts).
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Name identifies the provider in logs and health output.
	Name() string

	// Dimension is the fixed length of every vector this provider emits.
	Dimension() int

	// MaxBatchSize caps how many texts one EmbedBatch call may carry; the
	// indexer chunks document sets to it.
	MaxBatchSize() int
}
