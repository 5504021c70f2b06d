package search

import (
	"context"
	"strings"
	"testing"

	"github.com/kubiyabot/skill-engine/internal/search/bm25"
	"github.com/kubiyabot/skill-engine/internal/search/fusion"
	"github.com/kubiyabot/skill-engine/internal/search/vectorstore"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// fakeEmbedder maps text to a 2-dimensional vector based on whether it
// mentions "weather" or "calendar", letting tests assert dense ranking
// without a real embedding model.
type fakeEmbedder struct{}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		lower := strings.ToLower(t)
		switch {
		case strings.Contains(lower, "weather"):
			out[i] = []float32{1, 0}
		case strings.Contains(lower, "calendar"):
			out[i] = []float32{0, 1}
		default:
			out[i] = []float32{0.5, 0.5}
		}
	}
	return out, nil
}

func (f *fakeEmbedder) Name() string      { return "fake" }
func (f *fakeEmbedder) Dimension() int    { return 2 }
func (f *fakeEmbedder) MaxBatchSize() int { return 100 }

func newTestPipeline() *Pipeline {
	return New(Config{FusionMethod: fusion.ReciprocalRank, RRFK: fusion.DefaultRRFK},
		vectorstore.NewMemoryStore(2), bm25.New(bm25.DefaultConfig()), &fakeEmbedder{}, nil, nil)
}

func TestPipelineIndexAndSearch(t *testing.T) {
	p := newTestPipeline()
	err := p.Index(context.Background(), []models.IndexedDocument{
		{ID: "weather/forecast", Skill: "weather", Tool: "forecast", Content: "get the weather forecast for a city"},
		{ID: "calendar/add", Skill: "calendar", Tool: "add", Content: "add an event to the calendar"},
	})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	results, err := p.Search(context.Background(), "what's the weather today", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 || results[0].ID != "weather/forecast" {
		t.Fatalf("Search() = %+v, want weather/forecast ranked first", results)
	}
}

func TestPipelineSearchRespectsTopK(t *testing.T) {
	p := newTestPipeline()
	p.Index(context.Background(), []models.IndexedDocument{
		{ID: "a", Skill: "s", Tool: "a", Content: "weather a"},
		{ID: "b", Skill: "s", Tool: "b", Content: "weather b"},
		{ID: "c", Skill: "s", Tool: "c", Content: "weather c"},
	})

	results, err := p.Search(context.Background(), "weather", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) > 2 {
		t.Fatalf("len(results) = %d, want at most 2", len(results))
	}
}

func TestPipelineIndexFailsWholeBatchOnDimensionMismatch(t *testing.T) {
	p := New(Config{}, vectorstore.NewMemoryStore(3), bm25.New(bm25.DefaultConfig()), &fakeEmbedder{}, nil, nil)
	err := p.Index(context.Background(), []models.IndexedDocument{
		{ID: "a", Content: "weather"},
	})
	if err == nil {
		t.Fatal("Index() error = nil, want a dimension mismatch against the 3-dim store")
	}
}

func TestPipelineReindexIsNoOp(t *testing.T) {
	p := newTestPipeline()
	docs := []models.IndexedDocument{{ID: "weather/forecast", Skill: "weather", Tool: "forecast", Content: "weather forecast"}}
	if err := p.Index(context.Background(), docs); err != nil {
		t.Fatalf("first Index() error = %v", err)
	}
	if err := p.Index(context.Background(), docs); err != nil {
		t.Fatalf("second Index() error = %v", err)
	}

	results, err := p.Search(context.Background(), "weather forecast", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("len(results) = %d, want 1 (re-indexing must not duplicate)", len(results))
	}
}

func TestPipelineSearchFilteredBySkill(t *testing.T) {
	p := newTestPipeline()
	err := p.Index(context.Background(), []models.IndexedDocument{
		{ID: "weather/forecast", Skill: "weather", Tool: "forecast", Content: "get the weather forecast"},
		{ID: "calendar/weather", Skill: "calendar", Tool: "weather", Content: "weather themed calendar"},
	})
	if err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	results, err := p.SearchFiltered(context.Background(), "weather", 5, models.SearchFilter{Skill: "calendar"})
	if err != nil {
		t.Fatalf("SearchFiltered() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("filtered search returned nothing")
	}
	for _, r := range results {
		if r.ID != "calendar/weather" {
			t.Fatalf("result %q escaped the skill filter", r.ID)
		}
	}
}
