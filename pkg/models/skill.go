// Package models defines the core data types shared across the engine,
// the instance manager, and the search pipeline.
package models

import "time"

// RuntimeKind identifies how a skill's tools are executed.
type RuntimeKind string

const (
	RuntimeModule    RuntimeKind = "module"
	RuntimeContainer RuntimeKind = "container"
	RuntimeNative    RuntimeKind = "native"
)

// Skill is a named collection of tools backed by a module, container image,
// or native command.
type Skill struct {
	Name        string      `json:"name"`
	Runtime     RuntimeKind `json:"runtime"`
	Source      string      `json:"source"`
	Description string      `json:"description,omitempty"`
	Services    []Service   `json:"services,omitempty"`
	Container   *ContainerConfig `json:"container,omitempty"`

	// AllowedCommands is populated from SKILL.md's allowed-tools frontmatter
	// and is only consulted by the native runtime.
	AllowedCommands []string `json:"allowed_commands,omitempty"`

	Tools []Tool `json:"tools,omitempty"`
}

// Service describes a host service a skill depends on (e.g. a local port
// proxy it expects to reach).
type Service struct {
	Name        string `json:"name"`
	Optional    bool   `json:"optional"`
	DefaultPort int    `json:"default_port,omitempty"`
}

// ContainerConfig is the per-skill `[skills.<name>.container]` table.
type ContainerConfig struct {
	Image       string            `json:"image" toml:"image"`
	Entrypoint  string            `json:"entrypoint,omitempty" toml:"entrypoint"`
	Volumes     []string          `json:"volumes,omitempty" toml:"volumes"`
	Environment []string          `json:"environment,omitempty" toml:"environment"`
	Memory      string            `json:"memory,omitempty" toml:"memory"`
	CPUs        string            `json:"cpus,omitempty" toml:"cpus"`
	GPUs        string            `json:"gpus,omitempty" toml:"gpus"`
	Network     string            `json:"network,omitempty" toml:"network"`
	WorkingDir  string            `json:"working_dir,omitempty" toml:"working_dir"`
	User        string            `json:"user,omitempty" toml:"user"`
	Platform    string            `json:"platform,omitempty" toml:"platform"`
	ReadOnly    bool              `json:"read_only,omitempty" toml:"read_only"`
	Rm          bool              `json:"rm,omitempty" toml:"rm"`
	ExtraArgs   []string          `json:"extra_args,omitempty" toml:"extra_args"`
	Command     []string          `json:"command,omitempty" toml:"command"`
}

// ParamType enumerates the supported tool parameter types.
type ParamType string

const (
	ParamString ParamType = "string"
	ParamInt    ParamType = "int"
	ParamBool   ParamType = "bool"
	ParamArray  ParamType = "array"
	ParamObject ParamType = "object"
)

// Parameter describes one argument a tool accepts.
type Parameter struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Default     any       `json:"default,omitempty"`
	Description string    `json:"description,omitempty"`
}

// Tool is a named parameterised operation exposed by a skill.
type Tool struct {
	Name        string      `json:"name"`
	SkillName   string      `json:"skill_name"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters,omitempty"`
	Streaming   bool        `json:"streaming,omitempty"`
	Examples    []string    `json:"examples,omitempty"`

	// Command is a "$name"-substituted argv template (e.g. "echo $msg"),
	// consumed by the native runtime (allowlist-checked against the whole
	// command) and the container runtime (rendered into the entrypoint's
	// argv tail). Empty for module skills, whose tools are dispatched by
	// name through the module's registered handlers instead.
	Command string `json:"command,omitempty"`
}

// ID returns the indexed-document id for this tool: "<skill>/<tool>".
func (t Tool) ID() string {
	return t.SkillName + "/" + t.Name
}

// nowUTC centralises the clock reference used by constructors across this
// package so that tests can substitute it uniformly if ever needed.
var nowUTC = func() time.Time { return time.Now().UTC() }
