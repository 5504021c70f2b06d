// Package compress produces a compact textual summary of selected tools
// within a token budget (char/4 token estimate, template rendering, hard
// cutoff).
package compress

import (
	"fmt"
	"strings"

	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Tool is the minimal description a compressor needs.
type Tool struct {
	SkillName   string
	ToolName    string
	Description string
	Required    []string // required parameter names, never elided
	Examples    []string
}

// Config tunes the compressor's budget and template.
type Config struct {
	// MaxTokens bounds the total compressed output. Default 2000.
	MaxTokens int
	// MaxExamplesPerTool caps how many canonical examples are kept per
	// tool. Default 2.
	MaxExamplesPerTool int
}

// DefaultConfig allows 2000 tokens and two examples per tool.
func DefaultConfig() Config {
	return Config{MaxTokens: 2000, MaxExamplesPerTool: 2}
}

// Compressor renders ranked tool descriptions into a token-bounded summary.
type Compressor struct {
	cfg Config
}

// New creates a Compressor. A zero Config is replaced with DefaultConfig.
func New(cfg Config) *Compressor {
	if cfg.MaxTokens <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.MaxExamplesPerTool <= 0 {
		cfg.MaxExamplesPerTool = DefaultConfig().MaxExamplesPerTool
	}
	return &Compressor{cfg: cfg}
}

// Result is the compressor's output.
type Result struct {
	Summary    string
	ToolsUsed  int
	TokensUsed int
}

// Compress renders tools, most relevant first, into a summary that fits the
// configured token budget. A tool's required-parameter metadata is never
// elided: if a tool's full entry would not fit, it is skipped entirely
// rather than truncated mid-entry.
func (c *Compressor) Compress(tools []Tool) Result {
	var sb strings.Builder
	used := 0
	tokens := 0

	for _, t := range tools {
		entry := renderTool(t, c.cfg.MaxExamplesPerTool)
		entryTokens := estimateTokens(entry)
		if tokens+entryTokens > c.cfg.MaxTokens {
			continue
		}
		sb.WriteString(entry)
		tokens += entryTokens
		used++
	}

	return Result{Summary: sb.String(), ToolsUsed: used, TokensUsed: tokens}
}

// CompressResults is a convenience wrapper for fused search results paired
// with their underlying indexed documents.
func (c *Compressor) CompressResults(ranked []models.SearchResult, docs map[string]Tool) Result {
	tools := make([]Tool, 0, len(ranked))
	for _, r := range ranked {
		if t, ok := docs[r.ID]; ok {
			tools = append(tools, t)
		}
	}
	return c.Compress(tools)
}

func renderTool(t Tool, maxExamples int) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "### %s/%s\n%s\n", t.SkillName, t.ToolName, t.Description)
	if len(t.Required) > 0 {
		fmt.Fprintf(&sb, "Required: %s\n", strings.Join(t.Required, ", "))
	}
	examples := t.Examples
	if len(examples) > maxExamples {
		examples = examples[:maxExamples]
	}
	for _, ex := range examples {
		fmt.Fprintf(&sb, "Example: %s\n", ex)
	}
	sb.WriteString("\n")
	return sb.String()
}

func estimateTokens(s string) int {
	return len(s) / 4
}
