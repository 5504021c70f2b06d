package compress

import (
	"strings"
	"testing"
)

func TestCompressIncludesRequiredParameters(t *testing.T) {
	c := New(DefaultConfig())
	result := c.Compress([]Tool{
		{SkillName: "weather", ToolName: "forecast", Description: "gets a forecast", Required: []string{"city"}},
	})
	if result.ToolsUsed != 1 {
		t.Fatalf("ToolsUsed = %d, want 1", result.ToolsUsed)
	}
	if !strings.Contains(result.Summary, "Required: city") {
		t.Errorf("Summary = %q, want it to mention the required parameter", result.Summary)
	}
}

func TestCompressDropsToolsThatExceedBudget(t *testing.T) {
	c := New(Config{MaxTokens: 1, MaxExamplesPerTool: 2})
	result := c.Compress([]Tool{
		{SkillName: "weather", ToolName: "forecast", Description: "a fairly long description that will not fit"},
	})
	if result.ToolsUsed != 0 {
		t.Fatalf("ToolsUsed = %d, want 0 when nothing fits the budget", result.ToolsUsed)
	}
}

func TestCompressCapsExamplesPerTool(t *testing.T) {
	c := New(Config{MaxTokens: 10000, MaxExamplesPerTool: 1})
	result := c.Compress([]Tool{
		{SkillName: "s", ToolName: "t", Description: "d", Examples: []string{"one", "two", "three"}},
	})
	if strings.Count(result.Summary, "Example:") != 1 {
		t.Errorf("Summary = %q, want exactly one Example line", result.Summary)
	}
}
