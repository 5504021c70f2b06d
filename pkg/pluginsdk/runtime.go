package pluginsdk

import (
	"context"
	"encoding/json"
)

// ToolDefinition describes a tool exposed by a skill.
type ToolDefinition struct {
	Name        string
	Description string
	Schema      json.RawMessage
}

// ToolResult contains the output from a tool execution.
type ToolResult struct {
	Content string
	IsError bool
}

// ToolHandler executes a tool with JSON arguments.
type ToolHandler func(ctx context.Context, params json.RawMessage) (*ToolResult, error)

// ToolRegistry allows a runtime plugin to register the tools it exposes.
type ToolRegistry interface {
	RegisterTool(def ToolDefinition, handler ToolHandler) error
}

// PluginLogger provides logging scoped to a loaded skill.
type PluginLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// PluginAPI is handed to a RuntimePlugin during registration.
type PluginAPI struct {
	Tools  ToolRegistry
	Config map[string]any
	Logger PluginLogger

	// ResolvePath resolves a path relative to the skill's source directory.
	ResolvePath func(path string) string
}

// RuntimePlugin is the interface a module-runtime skill's compiled artefact
// must export: its manifest, plus a way to register the tools it implements.
type RuntimePlugin interface {
	Manifest() *Manifest
	RegisterTools(registry ToolRegistry, cfg map[string]any) error
}
