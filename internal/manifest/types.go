// Package manifest parses the two on-disk artefacts that describe a skill:
// the declarative ".skill-engine.toml" table and the per-skill "SKILL.md"
// frontmatter-plus-markdown document.
package manifest

import "github.com/kubiyabot/skill-engine/pkg/models"

// File is the top-level ".skill-engine.toml" manifest: a map of skill name
// to its declared source, runtime, and configuration.
type File struct {
	Skills map[string]SkillEntry `toml:"skills"`
}

// SkillEntry is one "[skills.<name>]" table.
type SkillEntry struct {
	Source      string                 `toml:"source"`
	Runtime     models.RuntimeKind     `toml:"runtime"`
	Description string                 `toml:"description"`
	Services    []ServiceEntry         `toml:"services,omitempty"`
	Container   *models.ContainerConfig `toml:"container,omitempty"`
	Instances   map[string]InstanceOverride `toml:"instances,omitempty"`
}

// ServiceEntry is one "[[skills.<name>.services]]" table.
type ServiceEntry struct {
	Name        string `toml:"name"`
	Optional    bool   `toml:"optional"`
	DefaultPort int    `toml:"default_port"`
}

// InstanceOverride carries per-skill default instance settings declared in
// the manifest rather than in an instance's own config.toml.
type InstanceOverride struct {
	Config map[string]string `toml:"config"`
}

// SkillDoc is the parsed "SKILL.md": YAML frontmatter plus tool sections.
type SkillDoc struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Author        string   `yaml:"author,omitempty"`
	Version       string   `yaml:"version,omitempty"`
	Tags          []string `yaml:"tags,omitempty"`
	AllowedTools  []string `yaml:"allowed-tools,omitempty"`

	// Body is the markdown content after the frontmatter, used to derive
	// tool sections and the search pipeline's embedding text.
	Body string `yaml:"-"`

	// Path is the directory the SKILL.md was discovered in.
	Path string `yaml:"-"`
}
