package bm25

import (
	"testing"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

func TestSearchRanksExactTermMatchHigher(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add(models.IndexedDocument{ID: "weather/forecast", Skill: "weather", Tool: "forecast", Content: "returns the weather forecast for a city"})
	idx.Add(models.IndexedDocument{ID: "calendar/add", Skill: "calendar", Tool: "add", Content: "adds an event to the calendar"})
	idx.Commit()

	results := idx.Search("weather forecast", models.SearchFilter{}, 10)
	if len(results) == 0 || results[0].ID != "weather/forecast" {
		t.Fatalf("Search() = %+v, want weather/forecast first", results)
	}
}

func TestSearchRespectsFilter(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add(models.IndexedDocument{ID: "weather/forecast", Skill: "weather", Tool: "forecast", Content: "weather forecast"})
	idx.Add(models.IndexedDocument{ID: "calendar/weather", Skill: "calendar", Tool: "weather", Content: "weather themed calendar event"})
	idx.Commit()

	results := idx.Search("weather", models.SearchFilter{Skill: "calendar"}, 10)
	if len(results) != 1 || results[0].ID != "calendar/weather" {
		t.Fatalf("Search() = %+v, want only calendar/weather", results)
	}
}

func TestCommitIsAtomicAndBuffered(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add(models.IndexedDocument{ID: "a", Content: "alpha"})
	if idx.Count() != 0 {
		t.Fatalf("Count() before Commit = %d, want 0", idx.Count())
	}
	idx.Commit()
	if idx.Count() != 1 {
		t.Fatalf("Count() after Commit = %d, want 1", idx.Count())
	}
}

func TestDeleteRemovesFromNextCommit(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add(models.IndexedDocument{ID: "a", Content: "alpha"})
	idx.Commit()
	idx.Delete("a")
	idx.Commit()
	if idx.Count() != 0 {
		t.Fatalf("Count() after delete+commit = %d, want 0", idx.Count())
	}
}

func TestSearchScoresAreNonIncreasing(t *testing.T) {
	idx := New(DefaultConfig())
	idx.Add(models.IndexedDocument{ID: "a", Content: "deploy the service to production"})
	idx.Add(models.IndexedDocument{ID: "b", Content: "deploy deploy deploy service"})
	idx.Add(models.IndexedDocument{ID: "c", Content: "unrelated content about weather"})
	idx.Commit()

	results := idx.Search("deploy service", models.SearchFilter{}, 10)
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Fatalf("results not monotonically non-increasing at %d: %+v", i, results)
		}
	}
}
