package models

// IndexedDocument is the unit the search pipeline indexes: one per tool in
// the active manifest, id of the form "<skill>/<tool>".
type IndexedDocument struct {
	ID      string            `json:"id"`
	Content string            `json:"content"`
	Skill   string            `json:"skill"`
	Tool    string            `json:"tool"`
	Meta    map[string]string `json:"metadata,omitempty"`
}

// Vector is a fixed-dimension embedding.
type Vector = []float32

// SearchFilter is a conjunction over indexed-document metadata fields.
type SearchFilter struct {
	Skill string `json:"skill,omitempty"`
}

// Match reports whether doc satisfies the filter.
func (f SearchFilter) Match(doc IndexedDocument) bool {
	if f.Skill != "" && doc.Skill != f.Skill {
		return false
	}
	return true
}

// SearchResult is one ranked hit returned by the search pipeline.
type SearchResult struct {
	ID          string            `json:"id"`
	Score       float32           `json:"score"`
	DenseScore  *float32          `json:"dense_score,omitempty"`
	SparseScore *float32          `json:"sparse_score,omitempty"`
	RerankScore *float32          `json:"rerank_score,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// UpsertStats summarises the outcome of a vector-store upsert batch.
type UpsertStats struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}
