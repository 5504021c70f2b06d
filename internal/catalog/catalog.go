// Package catalog owns the loaded skill set for the lifetime of the
// process. The manifest loader produces skills; the catalog holds them and
// hands read-only views to the engine (skill/tool lookup) and to the
// search pipeline (indexed documents), so neither ever re-parses the
// manifest or holds a reference to the other.
package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/kubiyabot/skill-engine/internal/manifest"
	"github.com/kubiyabot/skill-engine/pkg/models"
)

// Catalog is the long-lived registry of skills loaded from a manifest
// root. Reload swaps the whole set atomically; readers never observe a
// partially loaded catalog.
type Catalog struct {
	root   string
	logger *slog.Logger

	mu        sync.RWMutex
	skills    map[string]models.Skill
	checksums map[string]string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the catalog's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// Open loads the manifest under root and returns a ready catalog. The
// manifest must parse and every skill must pass validation; a catalog is
// never returned half-populated.
func Open(root string, opts ...Option) (*Catalog, error) {
	c := &Catalog{
		root:   root,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if _, err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the manifest root and atomically replaces the skill set.
// It returns the names of skills whose content checksum changed (including
// added and removed skills), which callers use to decide whether a reindex
// run is worth enqueueing.
func (c *Catalog) Reload() ([]string, error) {
	skills, err := manifest.Load(c.root)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]models.Skill, len(skills))
	for _, s := range skills {
		if err := validateSkill(&s); err != nil {
			return nil, err
		}
		byName[s.Name] = s
	}
	checksums := make(map[string]string, len(byName))
	for name, s := range byName {
		checksums[name] = skillChecksum(&s)
	}

	c.mu.Lock()
	prev := c.checksums
	c.skills = byName
	c.checksums = checksums
	c.mu.Unlock()

	changed := diffChecksums(prev, checksums)
	if len(changed) > 0 {
		c.logger.Info("catalog reloaded",
			"root", c.root,
			"skills", len(byName),
			"changed", changed)
	}
	return changed, nil
}

// Skill returns a copy of the named skill.
func (c *Catalog) Skill(name string) (*models.Skill, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.skills[name]
	if !ok {
		return nil, false
	}
	return &s, true
}

// Tool returns a copy of the named tool of the named skill.
func (c *Catalog) Tool(skillName, toolName string) (*models.Tool, bool) {
	skill, ok := c.Skill(skillName)
	if !ok {
		return nil, false
	}
	for i := range skill.Tools {
		if skill.Tools[i].Name == toolName {
			return &skill.Tools[i], true
		}
	}
	return nil, false
}

// Skills returns every skill, sorted by name.
func (c *Catalog) Skills() []models.Skill {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Skill, 0, len(c.skills))
	for _, s := range c.skills {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Documents renders one indexed document per tool in the catalog, id
// "<skill>/<tool>", with embedding text derived from the skill and tool
// descriptions, parameter docs, and examples.
func (c *Catalog) Documents() []models.IndexedDocument {
	skills := c.Skills()
	var docs []models.IndexedDocument
	for _, skill := range skills {
		for _, tool := range skill.Tools {
			docs = append(docs, toolDocument(&skill, &tool))
		}
	}
	return docs
}

// Source adapts the catalog to the reindexer's document source: each
// reindex run reads whatever the catalog holds at lease time, not a
// snapshot from enqueue time.
func (c *Catalog) Source() func(context.Context) ([]models.IndexedDocument, error) {
	return func(ctx context.Context) ([]models.IndexedDocument, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return c.Documents(), nil
	}
}

// toolDocument builds the embedding text for one tool. Required parameter
// names always appear in the text so keyword retrieval can match on them.
func toolDocument(skill *models.Skill, tool *models.Tool) models.IndexedDocument {
	var b strings.Builder
	b.WriteString(tool.Name)
	b.WriteString(": ")
	b.WriteString(tool.Description)
	if skill.Description != "" {
		b.WriteString("\nSkill: ")
		b.WriteString(skill.Name)
		b.WriteString(": ")
		b.WriteString(skill.Description)
	}
	for _, p := range tool.Parameters {
		b.WriteString("\n")
		b.WriteString(p.Name)
		if p.Required {
			b.WriteString(" (required)")
		}
		if p.Description != "" {
			b.WriteString(": ")
			b.WriteString(p.Description)
		}
	}
	for _, ex := range tool.Examples {
		b.WriteString("\nExample: ")
		b.WriteString(ex)
	}
	return models.IndexedDocument{
		ID:      tool.ID(),
		Content: b.String(),
		Skill:   skill.Name,
		Tool:    tool.Name,
		Meta: map[string]string{
			"skill":   skill.Name,
			"tool":    tool.Name,
			"runtime": string(skill.Runtime),
		},
	}
}

// validateSkill enforces the manifest invariants the loader itself cannot:
// tool names unique within a skill, required parameters carrying no
// default, and a resolvable source for anything the engine could dispatch.
func validateSkill(s *models.Skill) *models.ExecError {
	if s.Name == "" {
		return models.NewInvalidManifest("skill with empty name")
	}
	if s.Source == "" {
		return models.NewInvalidManifest(fmt.Sprintf("skill %q declares no source", s.Name))
	}
	seen := make(map[string]struct{}, len(s.Tools))
	for _, t := range s.Tools {
		if _, dup := seen[t.Name]; dup {
			return models.NewInvalidManifest(fmt.Sprintf("skill %q declares tool %q twice", s.Name, t.Name))
		}
		seen[t.Name] = struct{}{}
		for _, p := range t.Parameters {
			if p.Required && p.Default != nil {
				return models.NewInvalidManifest(fmt.Sprintf("tool %s/%s: required parameter %q has a default", s.Name, t.Name, p.Name))
			}
		}
	}
	return nil
}

// skillChecksum hashes everything that feeds a skill's indexed documents,
// so an unchanged checksum means a reindex would be a semantic no-op.
func skillChecksum(s *models.Skill) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", s.Name, s.Runtime, s.Source, s.Description)
	for _, t := range s.Tools {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00", t.Name, t.Description, t.Command)
		for _, p := range t.Parameters {
			fmt.Fprintf(h, "%s\x00%s\x00%v\x00%s\x00", p.Name, p.Type, p.Required, p.Description)
		}
		for _, ex := range t.Examples {
			fmt.Fprintf(h, "%s\x00", ex)
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

// diffChecksums returns the sorted set of skill names present in exactly
// one map or present in both with different checksums.
func diffChecksums(prev, next map[string]string) []string {
	changed := make(map[string]struct{})
	for name, sum := range next {
		if prev == nil {
			changed[name] = struct{}{}
			continue
		}
		if old, ok := prev[name]; !ok || old != sum {
			changed[name] = struct{}{}
		}
	}
	for name := range prev {
		if _, ok := next[name]; !ok {
			changed[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(changed))
	for name := range changed {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
